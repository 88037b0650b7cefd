// Package verify runs the landing page verification: launch a browser,
// load the target, wait for the heading, capture a screenshot and shut the
// browser down.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/ajsharma/page_verify/internal/browser"
	"github.com/ajsharma/page_verify/internal/config"
	"github.com/ajsharma/page_verify/internal/events"
	"github.com/ajsharma/page_verify/internal/locator"
	"github.com/ajsharma/page_verify/internal/report"
)

// EventSink receives run events.
type EventSink interface {
	WriteEvent(event *events.Event) error
}

// Runner executes one verification against a target URL.
type Runner struct {
	cfg      *config.Config
	launcher browser.Launcher
	log      logrus.FieldLogger
	sink     EventSink
	out      io.Writer
	runID    string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default is logrus' standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Runner) { r.log = log }
}

// WithEventSink records run events to sink.
func WithEventSink(sink EventSink) Option {
	return func(r *Runner) { r.sink = sink }
}

// WithOutput sets where the status line is printed. The default is stdout.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithRunID fixes the run ID instead of generating one.
func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// NewRunner creates a Runner that launches browsers through launcher.
func NewRunner(cfg *config.Config, launcher browser.Launcher, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		launcher: launcher,
		log:      logrus.StandardLogger(),
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = report.NewRunID()
	}
	return r
}

// Run performs the verification.
//
// A launch failure is returned as an error and nothing is left to close.
// Once the browser is up, failures while navigating, waiting for the
// heading, or capturing are recorded in the Result, logged and printed,
// and Run returns a nil error. The browser is closed exactly once on every
// path out of Run, panics included.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:     r.runID,
		URL:       r.cfg.TargetURL,
		Durations: make(map[Step]time.Duration),
		Started:   time.Now(),
	}
	site := report.ExtractSite(r.cfg.TargetURL)
	log := r.log.WithFields(logrus.Fields{
		"run_id": res.RunID,
		"url":    res.URL,
	})

	r.emit(log, events.NewRunStartEvent(res.RunID, site, res.URL, r.cfg.Driver, config.Version))
	log.Infof("Starting verification with %s driver", r.cfg.Driver)

	var session browser.Session
	err := r.step(log, site, res, StepLaunch, func() error {
		var err error
		session, err = r.launcher.Launch(ctx)
		return err
	})
	if err != nil {
		r.finish(log, site, res)
		return res, res.Err
	}

	defer func() {
		r.shutdown(log, site, res, session)
		r.finish(log, site, res)
	}()

	if err := r.runSteps(ctx, log, site, res, session); err != nil {
		log.WithField("step", string(res.FailedStep)).WithError(err).Error("Verification failed")
		r.printf(color.FgRed, "An error occurred: %v\n", err)
		return res, nil
	}

	r.printf(color.FgGreen, "Screenshot saved to %s\n", res.ScreenshotPath)
	return res, nil
}

// runSteps runs navigate, assert_visible and capture, stopping at the
// first failure.
func (r *Runner) runSteps(ctx context.Context, log logrus.FieldLogger, site string, res *Result, session browser.Session) error {
	err := r.step(log, site, res, StepNavigate, func() error {
		navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavigateTimeout)
		defer cancel()
		return session.Navigate(navCtx, r.cfg.TargetURL)
	})
	if err != nil {
		return err
	}

	q := locator.Query{Role: r.cfg.Role, Name: r.cfg.Heading, Exact: r.cfg.Exact}
	err = r.step(log, site, res, StepAssertVisible, func() error {
		return session.WaitVisible(ctx, q, r.cfg.VisibleTimeout)
	})
	if err != nil {
		return err
	}

	err = r.step(log, site, res, StepCapture, func() error {
		data, err := session.Screenshot(ctx, r.cfg.FullPage)
		if err != nil {
			return err
		}
		return WriteScreenshot(r.cfg.ScreenshotPath, data)
	})
	if err != nil {
		return err
	}

	res.ScreenshotPath = r.cfg.ScreenshotPath
	return nil
}

// step times fn and records its outcome in res, the log and the event sink.
func (r *Runner) step(log logrus.FieldLogger, site string, res *Result, step Step, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	res.Durations[step] = elapsed

	entry := log.WithFields(logrus.Fields{
		"step":     string(step),
		"duration": elapsed,
	})

	if err != nil {
		stepErr := &StepError{Step: step, Err: err}
		res.FailedStep = step
		res.Err = stepErr
		entry.WithError(err).Debug("Step failed")
		r.emit(log, events.NewStepFailedEvent(res.RunID, site, string(step), elapsed, err))
		return stepErr
	}

	entry.Debug("Step completed")
	r.emit(log, events.NewStepOKEvent(res.RunID, site, string(step), elapsed))
	return nil
}

// shutdown closes the session. A close error is logged but never replaces
// the outcome of the earlier steps.
func (r *Runner) shutdown(log logrus.FieldLogger, site string, res *Result, session browser.Session) {
	start := time.Now()
	err := session.Close()
	elapsed := time.Since(start)
	res.Durations[StepShutdown] = elapsed

	if err != nil {
		res.CloseErr = err
		log.WithField("step", string(StepShutdown)).WithError(err).Warn("Failed to close browser cleanly")
		r.emit(log, events.NewStepFailedEvent(res.RunID, site, string(StepShutdown), elapsed, err))
		return
	}

	log.WithField("step", string(StepShutdown)).Debug("Browser closed")
	r.emit(log, events.NewStepOKEvent(res.RunID, site, string(StepShutdown), elapsed))
}

func (r *Runner) finish(log logrus.FieldLogger, site string, res *Result) {
	res.Finished = time.Now()
	r.emit(log, events.NewRunFinishEvent(res.RunID, site, res.OK(), res.ScreenshotPath, res.Finished.Sub(res.Started)))
	log.WithField("ok", res.OK()).Infof("Verification finished in %v", res.Finished.Sub(res.Started).Round(time.Millisecond))
}

func (r *Runner) emit(log logrus.FieldLogger, event *events.Event) {
	if r.sink == nil {
		return
	}
	if err := r.sink.WriteEvent(event); err != nil {
		log.WithError(err).Warn("Failed to write run event")
	}
}

func (r *Runner) printf(attr color.Attribute, format string, args ...interface{}) {
	_, _ = color.New(attr).Fprintf(r.out, format, args...)
}

// WriteScreenshot writes PNG data to path, creating parent directories and
// replacing any existing file.
func WriteScreenshot(path string, data []byte) error {
	if len(data) == 0 {
		return errors.New("screenshot is empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create screenshot directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}

	return nil
}
