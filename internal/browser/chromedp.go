package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/ajsharma/page_verify/internal/locator"
)

// remoteReadyTimeout bounds the wait for an already running Chrome to answer.
const remoteReadyTimeout = 10 * time.Second

type chromedpLauncher struct {
	opts Options
}

// Launch starts a local Chrome, or attaches to one on RemotePort.
func (l *chromedpLauncher) Launch(ctx context.Context) (Session, error) {
	var (
		allocatorCtx    context.Context
		allocatorCancel context.CancelFunc
	)

	if l.opts.RemotePort != "" {
		if err := WaitForChrome(l.opts.RemotePort, remoteReadyTimeout); err != nil {
			return nil, err
		}
		info, err := DiscoverBrowserInfo(l.opts.RemotePort)
		if err != nil {
			return nil, err
		}
		l.opts.Logger.Debugf("Attaching to %s on port %s", info.Browser, l.opts.RemotePort)
		allocatorCtx, allocatorCancel = chromedp.NewRemoteAllocator(ctx, info.WebSocketDebuggerURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", l.opts.Headless),
		)
		if l.opts.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
		}
		allocatorCtx, allocatorCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// An empty Run starts the browser and opens the first tab.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &chromedpSession{
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		interval:        l.opts.PollInterval,
	}, nil
}

// chromedpSession drives one tab through chromedp.
type chromedpSession struct {
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	interval        time.Duration

	closeOnce sync.Once
	closeErr  error
}

// runCtx derives a chromedp context from the tab that also honors the
// caller's cancellation and deadline.
func (s *chromedpSession) runCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.browserCtx)
	stop := context.AfterFunc(ctx, cancel)

	if deadline, ok := ctx.Deadline(); ok {
		deadlineCtx, deadlineCancel := context.WithDeadline(runCtx, deadline)
		return deadlineCtx, func() {
			deadlineCancel()
			stop()
			cancel()
		}
	}

	return runCtx, func() {
		stop()
		cancel()
	}
}

// Navigate navigates to url and waits for DOMContentLoaded.
func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.runCtx(ctx)
	defer cancel()

	return chromedp.Run(runCtx, navigateDOMContentLoaded(url))
}

// navigateDOMContentLoaded is chromedp.Navigate without the wait for the
// load event.
func navigateDOMContentLoaded(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		loaded := make(chan struct{}, 1)

		listenCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(listenCtx, func(ev interface{}) {
			if _, ok := ev.(*page.EventDomContentEventFired); ok {
				select {
				case loaded <- struct{}{}:
				default:
				}
			}
		})

		var res page.NavigateReturns
		if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return fmt.Errorf("page load error %s", res.ErrorText)
		}
		if res.LoaderID == "" {
			// Same-document navigation, no new document to wait for.
			return nil
		}

		select {
		case <-loaded:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitVisible polls the accessibility tree until the single node matching q
// has a non-empty layout box.
func (s *chromedpSession) WaitVisible(ctx context.Context, q locator.Query, timeout time.Duration) error {
	runCtx, cancel := s.runCtx(ctx)
	defer cancel()

	return pollVisible(runCtx, timeout, s.interval, func(pollCtx context.Context) (bool, error) {
		var visible bool
		err := chromedp.Run(pollCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			v, err := axVisible(ctx, q)
			visible = v
			return err
		}))
		return visible, err
	})
}

func axVisible(ctx context.Context, q locator.Query) (bool, error) {
	root, err := dom.GetDocument().WithDepth(0).Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get document: %w", err)
	}

	axNodes, err := accessibility.QueryAXTree().
		WithBackendNodeID(root.BackendNodeID).
		WithRole(q.Role).
		Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to query accessibility tree: %w", err)
	}

	nodes := make([]locator.Node, 0, len(axNodes))
	for _, n := range axNodes {
		nodes = append(nodes, locator.Node{
			Role:          axValue(n.Role),
			Name:          axValue(n.Name),
			BackendNodeID: int64(n.BackendDOMNodeID),
			Ignored:       n.Ignored,
		})
	}

	n, err := strictMatch(locator.Filter(nodes, q), q)
	if err != nil || n == nil {
		return false, err
	}

	box, err := dom.GetBoxModel().WithBackendNodeID(cdp.BackendNodeID(n.BackendNodeID)).Do(ctx)
	if err != nil {
		// No layout object, so not rendered.
		return false, nil
	}
	return visibleBox(float64(box.Width), float64(box.Height)), nil
}

func axValue(v *accessibility.Value) string {
	if v == nil {
		return ""
	}
	return locator.DecodeValue([]byte(v.Value))
}

// Screenshot captures the viewport, or the whole page when fullPage is set.
func (s *chromedpSession) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	runCtx, cancel := s.runCtx(ctx)
	defer cancel()

	var buf []byte
	var action chromedp.Action = chromedp.CaptureScreenshot(&buf)
	if fullPage {
		// Quality 100 keeps the capture in PNG format.
		action = chromedp.FullScreenshot(&buf, 100)
	}

	if err := chromedp.Run(runCtx, action); err != nil {
		return nil, err
	}

	return buf, nil
}

// Close closes the browser, or only the tab when attached remotely.
func (s *chromedpSession) Close() error {
	s.closeOnce.Do(func() {
		err := chromedp.Cancel(s.browserCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = fmt.Errorf("failed to close chrome: %w", err)
		}
		s.browserCancel()
		s.allocatorCancel()
	})
	return s.closeErr
}
