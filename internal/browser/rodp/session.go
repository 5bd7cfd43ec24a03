// File: internal/browser/rodp/session.go

// Package rodp adapts go-rod to the browser.Session interface. It is the
// alternative back end to the chromedp adapter; the dispatcher is written once
// against the interface and works with either.
package rodp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/michaelkaye/trafficlight-agent/internal/browser"
	"github.com/michaelkaye/trafficlight-agent/internal/config"
)

// Session drives a Chrome instance through go-rod. One browser, one page.
type Session struct {
	browser *rod.Browser
	page    *rod.Page
	logger  *zap.Logger

	elementTimeout time.Duration
	navTimeout     time.Duration

	closeOnce sync.Once
	closeErr  error
}

var _ browser.Session = (*Session)(nil)

// New launches Chrome via the rod launcher and opens a single blank page.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	l := launcher.New().
		Headless(cfg.Browser.Headless).
		Set("no-sandbox").
		Set("disable-gpu")
	for _, arg := range cfg.Browser.Args {
		name, value, ok := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if ok {
			l.Set(flags.Flag(name), value)
		} else {
			l.Set(flags.Flag(name))
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	log := logger.Named("rod")
	log.Debug("Chrome launched.", zap.Bool("headless", cfg.Browser.Headless))

	return &Session{
		browser:        b,
		page:           page,
		logger:         log,
		elementTimeout: cfg.Browser.ElementTimeout,
		navTimeout:     cfg.Browser.NavigationTimeout,
	}, nil
}

// Navigate implements browser.Session.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))
	p := s.page.Context(ctx).Timeout(s.navTimeout)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait for load of %s: %w", url, err)
	}
	return nil
}

// element resolves a selector and waits for it to become visible within the
// element timeout.
func (s *Session) element(ctx context.Context, selector string) (*rod.Element, error) {
	p := s.page.Context(ctx).Timeout(s.elementTimeout)
	el, err := p.Element(selector)
	if err != nil {
		return nil, s.elementErr(selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return nil, s.elementErr(selector, err)
	}
	return el, nil
}

// WaitVisible implements browser.Session.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	_, err := s.element(ctx, selector)
	return err
}

// Click implements browser.Session.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.logger.Debug("Clicking.", zap.String("selector", selector))
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return s.elementErr(selector, err)
	}
	return nil
}

// Type implements browser.Session.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	s.logger.Debug("Typing.", zap.String("selector", selector), zap.Int("chars", len(text)))
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Input(text); err != nil {
		return s.elementErr(selector, err)
	}
	return nil
}

// elementErr normalizes rod's timeout errors onto browser.ErrElementNotFound
// so the dispatcher sees one failure shape. rod's Element waits for the node to
// appear, so an absent element surfaces as the deadline firing.
func (s *Session) elementErr(selector string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %q after %v", browser.ErrElementNotFound, selector, s.elementTimeout)
	}
	return fmt.Errorf("browser operation on %q: %w", selector, err)
}

// Close implements browser.Session.
func (s *Session) Close(_ context.Context) error {
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing Chrome session.")
		s.closeErr = s.browser.Close()
	})
	return s.closeErr
}
