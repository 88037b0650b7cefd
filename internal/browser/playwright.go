package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/ajsharma/page_verify/internal/locator"
)

type playwrightLauncher struct {
	opts Options
}

// runOptions skips the bundled browser download when a Chrome binary is
// given explicitly. The driver itself is always installed.
func (l *playwrightLauncher) runOptions() *playwright.RunOptions {
	return &playwright.RunOptions{
		SkipInstallBrowsers: l.opts.ExecPath != "",
	}
}

// Launch installs the Playwright driver if needed, then starts Chromium.
func (l *playwrightLauncher) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runOpts := l.runOptions()
	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
	}
	if l.opts.ExecPath != "" {
		launchOpts.ExecutablePath = playwright.String(l.opts.ExecPath)
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	pg, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	return &playwrightSession{pw: pw, browser: browser, page: pg}, nil
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page

	closeOnce sync.Once
	closeErr  error
}

// Navigate goes to url and waits for domcontentloaded.
func (s *playwrightSession) Navigate(ctx context.Context, url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(millisUntilDeadline(ctx, 30*time.Second)),
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// WaitVisible asserts that the role locator becomes visible.
func (s *playwrightSession) WaitVisible(ctx context.Context, q locator.Query, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := playwright.PageGetByRoleOptions{}
	if q.Name != "" {
		opts.Name = q.Name
		opts.Exact = playwright.Bool(q.Exact)
	}
	loc := s.page.GetByRole(playwright.AriaRole(q.Role), opts)

	wait := min(timeout, time.Duration(millisUntilDeadline(ctx, timeout))*time.Millisecond)
	err := playwright.NewPlaywrightAssertions(float64(wait.Milliseconds())).
		Locator(loc).
		ToBeVisible()
	if err != nil {
		if strings.Contains(err.Error(), "strict mode violation") {
			return fmt.Errorf("%w: %s: %v", ErrStrictMode, q, err)
		}
		return fmt.Errorf("%w: %s: %v", ErrNotVisible, q, err)
	}
	return nil
}

// Screenshot captures the page as PNG.
func (s *playwrightSession) Screenshot(_ context.Context, fullPage bool) ([]byte, error) {
	data, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

// Close closes the browser and stops the Playwright driver process.
func (s *playwrightSession) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// millisUntilDeadline converts ctx's remaining time into the millisecond
// timeouts Playwright expects, or fallback when ctx has no deadline.
func millisUntilDeadline(ctx context.Context, fallback time.Duration) float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return float64(fallback.Milliseconds())
	}
	remaining := time.Until(deadline)
	if remaining < time.Millisecond {
		// Zero disables the timeout in Playwright.
		return 1
	}
	return float64(remaining.Milliseconds())
}
