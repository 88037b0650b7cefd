// Package browser drives a headless browser through one of several
// automation libraries behind a common Session interface.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ajsharma/page_verify/internal/config"
	"github.com/ajsharma/page_verify/internal/locator"
)

// ErrNotVisible is returned by WaitVisible when no matching element
// became visible before the timeout.
var ErrNotVisible = errors.New("element not visible")

// ErrStrictMode is returned by WaitVisible when the query matches more
// than one element. It is not retried.
var ErrStrictMode = errors.New("strict mode violation")

// Session is one browser with one open page.
type Session interface {
	// Navigate loads url and returns once DOMContentLoaded has fired.
	Navigate(ctx context.Context, url string) error
	// WaitVisible polls until an element matching q is visible.
	WaitVisible(ctx context.Context, q locator.Query, timeout time.Duration) error
	// Screenshot captures the page as PNG.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	// Close shuts the browser down. Calls after the first are no-ops.
	Close() error
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Options configures a driver.
type Options struct {
	Headless     bool
	ExecPath     string
	RemotePort   string
	PollInterval time.Duration
	Logger       logrus.FieldLogger
}

// NewLauncher returns the launcher for cfg.Driver.
func NewLauncher(cfg *config.Config, log logrus.FieldLogger) (Launcher, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	opts := Options{
		Headless:     cfg.Headless,
		ExecPath:     cfg.ChromePath,
		RemotePort:   cfg.RemotePort,
		PollInterval: cfg.PollInterval,
		Logger:       log.WithField("driver", cfg.Driver),
	}

	switch cfg.Driver {
	case config.DriverChromedp:
		if opts.ExecPath == "" {
			opts.ExecPath = FindChrome()
		}
		return &chromedpLauncher{opts: opts}, nil
	case config.DriverPlaywright:
		// Playwright runs its own pinned Chromium unless a binary is given explicitly.
		return &playwrightLauncher{opts: opts}, nil
	case config.DriverRod:
		if opts.ExecPath == "" {
			opts.ExecPath = FindChrome()
		}
		return &rodLauncher{opts: opts}, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Driver)
	}
}

// pollVisible calls check every interval until it reports true or timeout
// elapses. Check errors are retried; the last one is attached to the
// timeout error.
func pollVisible(ctx context.Context, timeout, interval time.Duration, check func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		visible, err := check(pollCtx)
		if err == nil && visible {
			return nil
		}
		if errors.Is(err, ErrStrictMode) {
			return err
		}
		if err != nil && pollCtx.Err() == nil {
			lastErr = err
		}

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if lastErr != nil {
				return fmt.Errorf("%w after %v: %v", ErrNotVisible, timeout, lastErr)
			}
			return fmt.Errorf("%w after %v", ErrNotVisible, timeout)
		case <-ticker.C:
		}
	}
}

// strictMatch returns the only node in matches, nil when there is none, or
// ErrStrictMode when the query is ambiguous.
func strictMatch(matches []locator.Node, q locator.Query) (*locator.Node, error) {
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s resolved to %d elements", ErrStrictMode, q, len(matches))
	}
}

// visibleBox reports whether a layout box has a non-empty area.
func visibleBox(width, height float64) bool {
	return width > 0 && height > 0
}
