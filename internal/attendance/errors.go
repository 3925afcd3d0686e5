package attendance

import "errors"

var (
	// ErrLoginFailed marks every failure of the login phase.
	ErrLoginFailed = errors.New("login failed")
	// ErrInteractionRejected is returned when both the pointer click and the
	// script click of a control fail.
	ErrInteractionRejected = errors.New("interaction rejected")
	// ErrControlNotFound is returned when no strategy located the target control.
	ErrControlNotFound = errors.New("control not found")
	// ErrUnexpectedFault wraps a panic recovered during a run.
	ErrUnexpectedFault = errors.New("unexpected fault")
)
