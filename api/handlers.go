package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// maxBodySize bounds request bodies; every request here is a small JSON
// document.
const maxBodySize = 4 << 10

func decodeJSON[T any](w http.ResponseWriter, r *http.Request, limit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return v, false
	}
	return v, true
}

// Enroll handles POST /enroll. The saga's progress is streamed back as
// newline-delimited JSON, one state per line, ending with a terminal state.
func (a *API) Enroll(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[EnrollRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if req.TempSecret == "" {
		writeError(w, http.StatusBadRequest, "temp_secret is required")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	enc := json.NewEncoder(w)
	for state := range a.core.Enroll.Enroll(r.Context(), req.Email, req.TempSecret) {
		p := EnrollProgress{Step: state.Step.String()}
		if state.User.UserID != "" {
			p.UserID = state.User.UserID
			p.Email = state.User.Email
		}
		if state.Err != nil {
			p.Error = state.Err.Error()
			p.FailedAt = state.FailedAt.String()
		}
		if err := enc.Encode(p); err != nil {
			a.log.Warn("writing enrollment progress", slog.Any("error", err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Unenroll handles POST /unenroll.
func (a *API) Unenroll(w http.ResponseWriter, r *http.Request) {
	if err := a.core.Enroll.Unenroll(r.Context()); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /status.
func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	cur := a.core.Session.Current()
	resp := StatusResponse{
		Enrolled:      a.core.Enroll.IsDeviceEnrolled(r.Context()),
		State:         cur.Kind.String(),
		Authenticated: a.core.Session.IsAuthenticated(),
	}
	if resp.Authenticated {
		resp.UserID = cur.User.UserID
	}
	writeJSON(w, http.StatusOK, resp)
}

// Authenticate handles POST /authenticate.
func (a *API) Authenticate(w http.ResponseWriter, r *http.Request) {
	user, err := a.core.Session.Authenticate(r.Context())
	if err != nil {
		a.log.Warn("authentication failed", slog.Any("error", err))
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthenticateResponse{UserID: user.UserID, Email: user.Email})
}

// Logout handles POST /logout.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.core.Session.Logout(r.Context()); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Background handles POST /lifecycle/background.
func (a *API) Background(w http.ResponseWriter, r *http.Request) {
	a.core.Session.OnAppBackground(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Foreground handles POST /lifecycle/foreground.
func (a *API) Foreground(w http.ResponseWriter, r *http.Request) {
	a.core.Session.OnAppForeground(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
