package api

// EnrollRequest is the JSON body for POST /enroll.
type EnrollRequest struct {
	Email      string `json:"email"`
	TempSecret string `json:"temp_secret"`
}

// EnrollProgress is one line of the ndjson progress stream returned from
// POST /enroll.
type EnrollProgress struct {
	Step     string `json:"step"`
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Error    string `json:"error,omitempty"`
	FailedAt string `json:"failed_at,omitempty"`
}

// AuthenticateResponse is returned from POST /authenticate.
type AuthenticateResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// StatusResponse is returned from GET /status.
type StatusResponse struct {
	Enrolled      bool   `json:"enrolled"`
	State         string `json:"state"`
	UserID        string `json:"user_id,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
