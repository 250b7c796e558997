// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// SelectorExhaustedError reports that every candidate for a logical target
// failed its probe. Callers decide whether that is fatal (a mandatory lookup)
// or expected (probing for an optional element).
type SelectorExhaustedError struct {
	Target string
	Tried  int
}

func (e *SelectorExhaustedError) Error() string {
	return fmt.Sprintf("selector exhausted for %q: all %d candidates failed", e.Target, e.Tried)
}

// ProbeError reports an abnormal probe failure: the underlying automation
// primitive broke (crash, disconnect), as opposed to a clean timeout.
// Conflating the two was the root cause of the failures this engine replaces.
type ProbeError struct {
	Target    string
	Candidate string
	Err       error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe for %q (candidate %q) failed abnormally: %v", e.Target, e.Candidate, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// FillError reports that a form field could not be confirmed to hold the
// intended value after the dismissal action.
type FillError struct {
	Field string
	Want  string
	Got   string
}

func (e *FillError) Error() string {
	return fmt.Sprintf("field %q holds %q after fill, want %q", e.Field, e.Got, e.Want)
}

// VariantIndeterminateError reports that the variant probe failed abnormally
// rather than timing out cleanly. Fatal: absence-confirmed SilentExport and
// "UI shape unknown" must never be conflated.
type VariantIndeterminateError struct {
	Err error
}

func (e *VariantIndeterminateError) Error() string {
	return fmt.Sprintf("UI variant indeterminate: %v", e.Err)
}

func (e *VariantIndeterminateError) Unwrap() error { return e.Err }

// ErrRowMissing marks poll failures caused by the exported-queries list never
// showing a row within the grace period.
var ErrRowMissing = errors.New("no row present in exported-queries list")

// PollError reports that the export never reached a finished state within the
// retry budget. LastStatus and LastFilter carry the final observed row text
// for diagnosis.
type PollError struct {
	Attempts   int
	LastStatus string
	LastFilter string
	Err        error
}

func (e *PollError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("export not ready after %d attempts: %v (last status %q, last filter %q)",
			e.Attempts, e.Err, e.LastStatus, e.LastFilter)
	}
	return fmt.Sprintf("export not ready after %d attempts (last status %q, last filter %q)",
		e.Attempts, e.LastStatus, e.LastFilter)
}

func (e *PollError) Unwrap() error { return e.Err }

// CycleError is the caller-facing failure of one export cycle. The
// orchestrator attaches the stage and UI variant that were active, so one
// terminal message identifies where and under which UI shape the cycle died.
type CycleError struct {
	Stage   Stage
	Variant UIVariant
	Err     error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("export cycle failed at stage %s (variant %s): %v", e.Stage, e.Variant, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// IsNotFound reports whether err means "no candidate matched" as opposed to an
// abnormal failure.
func IsNotFound(err error) bool {
	var exhausted *SelectorExhaustedError
	return errors.As(err, &exhausted)
}
