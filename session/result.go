package session

import "github.com/jtmarsh/latchkey/identity"

// ResultKind enumerates the process-wide authentication states.
type ResultKind int

const (
	// KindLoading is the state at construction, before the first resolution.
	KindLoading ResultKind = iota
	KindAuthenticated
	KindUnauthenticated
	KindError
)

func (k ResultKind) String() string {
	switch k {
	case KindLoading:
		return "Loading"
	case KindAuthenticated:
		return "Authenticated"
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Result is the current authentication state. There is one instance per
// Manager, mutated only by the Manager and read by any number of observers.
type Result struct {
	Kind ResultKind
	// User is set when Kind is KindAuthenticated.
	User identity.Identity
	// Err is set when Kind is KindError.
	Err error
}
