package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jtmarsh/latchkey/biometric"
	"github.com/jtmarsh/latchkey/enroll"
	"github.com/jtmarsh/latchkey/identity"
	"github.com/jtmarsh/latchkey/keyvault"
	"github.com/jtmarsh/latchkey/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotEnrolled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrOperationInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, enroll.ErrInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, enroll.ErrAlreadyEnrolled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrNoSessionToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, session.ErrDeviceRevoked):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, session.ErrIdentityUnavailable):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, identity.ErrInvalidCredential):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, identity.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, keyvault.ErrKeyInvalidated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case biometric.IsUserAction(err):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
