package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/ajsharma/page_verify/internal/locator"
)

type rodLauncher struct {
	opts Options
}

// Launch starts Chrome through rod's launcher and opens a blank page.
func (l *rodLauncher) Launch(ctx context.Context) (Session, error) {
	ln := launcher.New().
		Context(ctx).
		Headless(l.opts.Headless)
	if l.opts.ExecPath != "" {
		ln = ln.Bin(l.opts.ExecPath)
	}

	controlURL, err := ln.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		ln.Kill()
		ln.Cleanup()
		return nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}

	pg, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		ln.Kill()
		ln.Cleanup()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	return &rodSession{
		launcher: ln,
		browser:  browser,
		page:     pg,
		interval: l.opts.PollInterval,
	}, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	interval time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Navigate loads url and waits for the DOMContentLoaded lifecycle event.
func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)

	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	wait()

	return ctx.Err()
}

// WaitVisible polls the accessibility tree until the single node matching q
// has a non-empty layout box.
func (s *rodSession) WaitVisible(ctx context.Context, q locator.Query, timeout time.Duration) error {
	return pollVisible(ctx, timeout, s.interval, func(pollCtx context.Context) (bool, error) {
		return rodAXVisible(s.page.Context(pollCtx), q)
	})
}

func rodAXVisible(p *rod.Page, q locator.Query) (bool, error) {
	doc, err := proto.DOMGetDocument{Depth: gson.Int(0)}.Call(p)
	if err != nil {
		return false, fmt.Errorf("failed to get document: %w", err)
	}

	res, err := proto.AccessibilityQueryAXTree{
		BackendNodeID: doc.Root.BackendNodeID,
		Role:          q.Role,
	}.Call(p)
	if err != nil {
		return false, fmt.Errorf("failed to query accessibility tree: %w", err)
	}

	nodes := make([]locator.Node, 0, len(res.Nodes))
	for _, n := range res.Nodes {
		nodes = append(nodes, locator.Node{
			Role:          rodAXValue(n.Role),
			Name:          rodAXValue(n.Name),
			BackendNodeID: int64(n.BackendDOMNodeID),
			Ignored:       n.Ignored,
		})
	}

	n, err := strictMatch(locator.Filter(nodes, q), q)
	if err != nil || n == nil {
		return false, err
	}

	box, err := proto.DOMGetBoxModel{BackendNodeID: proto.DOMBackendNodeID(n.BackendNodeID)}.Call(p)
	if err != nil {
		return false, nil
	}
	return visibleBox(float64(box.Model.Width), float64(box.Model.Height)), nil
}

func rodAXValue(v *proto.AccessibilityAXValue) string {
	if v == nil {
		return ""
	}
	return v.Value.Str()
}

// Screenshot captures the page as PNG.
func (s *rodSession) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	data, err := s.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

// Close closes the browser, kills the process and removes its profile dir.
func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		if err := s.browser.Close(); err != nil {
			s.closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		s.launcher.Kill()
		s.launcher.Cleanup()
	})
	return s.closeErr
}
