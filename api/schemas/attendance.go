package schemas

import (
	"fmt"
	"strings"
)

// -- Attendance Action --

// Action is one of the two attendance operations. It is a closed set: the
// only values are ActionCheckIn and ActionCheckOut.
type Action int

const (
	ActionCheckIn Action = iota + 1
	ActionCheckOut
)

// String returns the logical name used in logs, config keys and diagnostic tags.
func (a Action) String() string {
	switch a {
	case ActionCheckIn:
		return "checkin"
	case ActionCheckOut:
		return "checkout"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Valid reports whether a is one of the two defined actions.
func (a Action) Valid() bool {
	return a == ActionCheckIn || a == ActionCheckOut
}

// RequiresCheckIn reports whether the action is only legal after a check-in
// has been recorded. Checking out before checking in is an invalid transition.
func (a Action) RequiresCheckIn() bool {
	return a == ActionCheckOut
}

// DisabledResult is the classification for a target control that is found
// with its disabled affordance set. For both actions this means the action
// was already performed.
func (a Action) DisabledResult() Result {
	return ResultAlreadyDone
}

// ClickedResult is the classification after the target control accepted a click.
func (a Action) ClickedResult() Result {
	return ResultSuccess
}

// ParseAction maps a command line word to an Action. Both the English short
// forms and the Japanese labels used by the attendance system are accepted.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "checkin", "check-in", "出勤":
		return ActionCheckIn, nil
	case "out", "checkout", "check-out", "退勤":
		return ActionCheckOut, nil
	}
	return 0, fmt.Errorf("unknown action %q (expected in|out|出勤|退勤)", s)
}

// -- Target Specifier --

// TargetSpecifier describes a control abstractly. It never refers to a live
// element; resolution turns it into a ResolvedControl.
type TargetSpecifier struct {
	// Name is the logical name ("checkin" / "checkout").
	Name string `mapstructure:"name" yaml:"name" json:"name"`
	// Label is the expected visible text or value. Matching is exact.
	Label string `mapstructure:"label" yaml:"label" json:"label"`
	// ID is the fallback stable element identifier.
	ID string `mapstructure:"id" yaml:"id" json:"id"`
	// Selector is an optional generic CSS selector used as a last resort.
	Selector string `mapstructure:"selector" yaml:"selector" json:"selector,omitempty"`
}

// String renders the specifier for logs.
func (t TargetSpecifier) String() string {
	return fmt.Sprintf("%s(label=%q id=%q selector=%q)", t.Name, t.Label, t.ID, t.Selector)
}

// -- Attendance State --

// AttendanceState is derived from the check-in control every time it is needed.
type AttendanceState int

const (
	StateNotDone AttendanceState = iota
	StateAlreadyDone
)

func (s AttendanceState) String() string {
	switch s {
	case StateNotDone:
		return "NOT_DONE"
	case StateAlreadyDone:
		return "ALREADY_DONE"
	default:
		return fmt.Sprintf("AttendanceState(%d)", int(s))
	}
}

// -- Workflow Result --

// Result is the terminal classification of one workflow invocation.
type Result int

const (
	ResultFailed Result = iota
	ResultSuccess
	ResultAlreadyDone
	ResultNotCheckedIn
	ResultLoginFailed
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "SUCCESS"
	case ResultAlreadyDone:
		return "ALREADY_DONE"
	case ResultNotCheckedIn:
		return "NOT_CHECKED_IN"
	case ResultLoginFailed:
		return "LOGIN_FAILED"
	case ResultFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Tag is the lower-case form used in diagnostic file names.
func (r Result) Tag() string {
	return strings.ToLower(r.String())
}

// OK reports whether the result counts as a successful invocation.
func (r Result) OK() bool {
	return r == ResultSuccess || r == ResultAlreadyDone
}

// ExitCode maps the result onto the process exit status.
func (r Result) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 1
}
