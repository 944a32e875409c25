package executor

import (
	"fmt"
	"time"

	"github.com/v0xg/surveydriver/internal/locate"
)

// ActionType is what to do with a resolved element
type ActionType int

const (
	Click ActionType = iota
	TypeAndSubmit
)

func (t ActionType) String() string {
	switch t {
	case Click:
		return "click"
	case TypeAndSubmit:
		return "type"
	default:
		return fmt.Sprintf("ActionType(%d)", int(t))
	}
}

// Action represents a single interaction with a target.
// TypeAndSubmit clicks the target, then types Text into the input that
// appears in the target's cell and presses Enter.
type Action struct {
	Type   ActionType
	Target locate.Target
	Text   string
}

// StartLatch records the instant of the first successful click.
// It is set at most once.
type StartLatch struct {
	at  time.Time
	set bool
}

// Mark latches t if nothing was latched yet and reports whether it did
func (l *StartLatch) Mark(t time.Time) bool {
	if l.set {
		return false
	}
	l.at, l.set = t, true
	return true
}

// Time returns the latched instant
func (l *StartLatch) Time() (time.Time, bool) {
	return l.at, l.set
}

// StepError is a terminal failure of one action
type StepError struct {
	Action Action
	URL    string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s on row %s cell %s tag %s in %s: %v",
		e.Action.Type, e.Action.Target.RowKey, e.Action.Target.Cell, e.Action.Target.Tag, e.URL, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// SoftError is a tolerated failure while entering a new value; the
// scenario moves on to the next step
type SoftError struct {
	Action Action
	URL    string
	Err    error
}

func (e *SoftError) Error() string {
	return fmt.Sprintf("entering %q on row %s in %s: %v", e.Action.Text, e.Action.Target.RowKey, e.URL, e.Err)
}

func (e *SoftError) Unwrap() error { return e.Err }
