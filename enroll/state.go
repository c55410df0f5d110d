package enroll

import "github.com/jtmarsh/latchkey/identity"

// Step identifies a position in the enrollment saga.
type Step int

const (
	StepIdle Step = iota
	StepValidatingCredentials
	StepInvalidatingTemporaryCredential
	StepGeneratingKey
	StepAwaitingBiometric
	StepBindingDevice
	StepSuccess
	StepFailed
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "Idle"
	case StepValidatingCredentials:
		return "ValidatingCredentials"
	case StepInvalidatingTemporaryCredential:
		return "InvalidatingTemporaryCredential"
	case StepGeneratingKey:
		return "GeneratingKey"
	case StepAwaitingBiometric:
		return "AwaitingBiometric"
	case StepBindingDevice:
		return "BindingDevice"
	case StepSuccess:
		return "Success"
	case StepFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// State is one emission of the enrollment progress stream. A run emits each
// state as it is entered and ends with exactly one terminal state
// (StepSuccess or StepFailed).
type State struct {
	Step Step
	// User is set on StepSuccess.
	User identity.Identity
	// Err is set on StepFailed.
	Err error
	// FailedAt names the step whose action failed, on StepFailed.
	FailedAt Step
}

// Terminal reports whether the state ends the run.
func (s State) Terminal() bool {
	return s.Step == StepSuccess || s.Step == StepFailed
}
