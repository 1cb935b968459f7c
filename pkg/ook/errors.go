package ook

import (
	"errors"
	"fmt"
)

// Rejection reasons. A rejection means "not this protocol", it is never a fault.
var (
	ErrLengthOutOfRange  = errors.New("pulse count out of range")
	ErrPulseOutOfRange   = errors.New("pulse duration out of range")
	ErrInvalidManchester = errors.New("invalid manchester transition")
	ErrChecksumMismatch  = errors.New("checksum mismatch")
)

// Stage is a step of a decode attempt. Attempts only ever move forward through the stages.
type Stage int

const (
	StagePreCheck Stage = iota
	StageClassify
	StageAssemble
	StageManchester
	StageValidate
	StageExtract
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StagePreCheck:
		return "precheck"
	case StageClassify:
		return "classify"
	case StageAssemble:
		return "assemble"
	case StageManchester:
		return "manchester"
	case StageValidate:
		return "validate"
	case StageExtract:
		return "extract"
	case StageDone:
		return "done"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Rejection is the error returned by a decode attempt that did not match.
type Rejection struct {
	Stage  Stage
	Reason error
	Detail string
}

func Reject(stage Stage, reason error, format string, args ...interface{}) *Rejection {
	return &Rejection{
		Stage:  stage,
		Reason: reason,
		Detail: fmt.Sprintf(format, args...),
	}
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("%s: %v", r.Stage, r.Reason)
	}
	return fmt.Sprintf("%s: %v: %s", r.Stage, r.Reason, r.Detail)
}

func (r *Rejection) Unwrap() error {
	return r.Reason
}

// ReasonTag returns a short, label friendly name for a rejection reason.
func ReasonTag(err error) string {
	switch {
	case errors.Is(err, ErrLengthOutOfRange):
		return "length_out_of_range"
	case errors.Is(err, ErrPulseOutOfRange):
		return "pulse_out_of_range"
	case errors.Is(err, ErrInvalidManchester):
		return "invalid_manchester"
	case errors.Is(err, ErrChecksumMismatch):
		return "checksum_mismatch"
	case err == nil:
		return "none"
	}
	return "other"
}
