package verify

import (
	"fmt"
	"time"
)

// Step names one stage of a verification run.
type Step string

// Verification steps in execution order.
const (
	StepLaunch        Step = "launch"
	StepNavigate      Step = "navigate"
	StepAssertVisible Step = "assert_visible"
	StepCapture       Step = "capture"
	StepShutdown      Step = "shutdown"
)

// StepError is an error raised by a single step.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Result describes the outcome of one run.
type Result struct {
	RunID string
	URL   string

	// ScreenshotPath is set only after the screenshot was written.
	ScreenshotPath string

	Durations map[Step]time.Duration

	// FailedStep and Err describe the first failure, if any.
	FailedStep Step
	Err        error

	// CloseErr is the shutdown error. It does not affect OK.
	CloseErr error

	Started  time.Time
	Finished time.Time
}

// OK reports whether every step up to and including capture succeeded.
func (r *Result) OK() bool {
	return r.Err == nil
}
