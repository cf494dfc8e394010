package simulation

import (
	"errors"
	"fmt"

	"github.com/simscript/simscript/internal/core/physics"
)

// Event types published for reports.
const (
	EventReport = "simulation.report"
	EventHalted = "simulation.halted"
)

type Severity uint8

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return fmt.Sprintf("severity(%d)", uint8(s))
	}
}

// Report is the structured record of a recoverable or fatal condition, handed to the
// host instead of unwinding its frame loop.
type Report struct {
	Code     physics.ErrorCode
	Severity Severity
	Op       string
	Step     uint64
	Bodies   []physics.BodyID
	Err      error
}

func (r Report) String() string {
	return fmt.Sprintf("%s %s at step %d (%s): %v", r.Severity, r.Code, r.Step, r.Op, r.Err)
}

func newReport(op string, step uint64, err error) Report {
	r := Report{
		Code:     physics.GetErrorCode(err),
		Severity: SeverityError,
		Op:       op,
		Step:     step,
		Err:      err,
	}
	var simErr *physics.Error
	if errors.As(err, &simErr) {
		r.Bodies = append(r.Bodies, simErr.Bodies...)
	}
	switch {
	case physics.IsFatal(err):
		r.Severity = SeverityFatal
	case r.Code == physics.ErrorCodeNumericInstability:
		r.Severity = SeverityWarning
	}
	return r
}
