// File: internal/browser/cdp/session.go
package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/michaelkaye/trafficlight-agent/internal/browser"
	"github.com/michaelkaye/trafficlight-agent/internal/config"
)

// Session drives a Chrome instance over the DevTools protocol via chromedp.
// It owns one browser process and one page context for its whole lifetime.
type Session struct {
	browserCtx context.Context
	cancels    []context.CancelFunc
	logger     *zap.Logger

	elementTimeout time.Duration
	navTimeout     time.Duration

	closeOnce sync.Once
}

var _ browser.Session = (*Session)(nil)

// New launches a Chrome instance and returns a Session bound to its first tab.
// The caller must Close the session to release the browser process.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	opts := append([]chromedp.ExecAllocatorOption{},
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	if cfg.Browser.Headless {
		opts = append(opts, chromedp.Headless)
	}
	for _, arg := range cfg.Browser.Args {
		name, value, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		opts = append(opts, chromedp.Flag(name, value))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &Session{
		browserCtx:     browserCtx,
		cancels:        []context.CancelFunc{cancelBrowser, cancelAlloc},
		logger:         logger.Named("cdp"),
		elementTimeout: cfg.Browser.ElementTimeout,
		navTimeout:     cfg.Browser.NavigationTimeout,
	}

	// An empty task list forces the browser process to start now, so launch
	// failures surface here rather than on the first action.
	if err := chromedp.Run(browserCtx); err != nil {
		s.teardown()
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	s.logger.Debug("Chrome launched.", zap.Bool("headless", cfg.Browser.Headless))
	return s, nil
}

// run executes chromedp actions with the given per-operation timeout, combining
// the caller's context with the session context that carries the CDP target.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	// Derive from the browser context so CDP connection values are preserved.
	opCtx, cancel := context.WithTimeout(s.browserCtx, timeout)
	defer cancel()

	// Link the caller's cancellation to the operation.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(opCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Navigate implements browser.Session.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))
	err := s.run(ctx, s.navTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// WaitVisible implements browser.Session.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	err := s.run(ctx, s.elementTimeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err != nil {
		return s.elementErr(selector, err)
	}
	return nil
}

// Click implements browser.Session.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.logger.Debug("Clicking.", zap.String("selector", selector))
	err := s.run(ctx, s.elementTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return s.elementErr(selector, err)
	}
	return nil
}

// Type implements browser.Session.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	s.logger.Debug("Typing.", zap.String("selector", selector), zap.Int("chars", len(text)))
	err := s.run(ctx, s.elementTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return s.elementErr(selector, err)
	}
	return nil
}

// elementErr maps a timed-out element wait onto browser.ErrElementNotFound,
// preserving the selector and the underlying cause.
func (s *Session) elementErr(selector string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %q after %v", browser.ErrElementNotFound, selector, s.elementTimeout)
	}
	return fmt.Errorf("browser operation on %q: %w", selector, err)
}

// Close implements browser.Session. It cancels the chromedp contexts, which
// terminates the browser process launched by the allocator.
func (s *Session) Close(_ context.Context) error {
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing Chrome session.")
		s.teardown()
	})
	return nil
}

func (s *Session) teardown() {
	// Cancel in reverse of creation order: page/browser first, allocator last.
	for _, cancel := range s.cancels {
		cancel()
	}
}
