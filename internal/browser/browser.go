// File: internal/browser/browser.go
package browser

import (
	"context"
	"errors"
)

// ErrElementNotFound indicates a selector did not resolve to an interactable
// element within the per-operation timeout. The dispatcher converts any step
// failure, this one included, into the "error" result reported upstream.
var ErrElementNotFound = errors.New("element not found or not interactable")

// Session exposes the browser operations the action dispatcher is written
// against. Exactly one page/tab is owned per Session; implementations adapt a
// concrete automation driver (chromedp or rod).
//
// Click and Type wait for the target element to become visible before acting.
// That implicit synchronization is required: without it every sequence races
// the application's render cycle.
type Session interface {
	// Navigate loads the given URL in the session's page and waits for the
	// document to become ready.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until the element matching the CSS selector is
	// visible, or the element timeout elapses (ErrElementNotFound).
	WaitVisible(ctx context.Context, selector string) error

	// Click waits for the element to be visible, then clicks it.
	Click(ctx context.Context, selector string) error

	// Type waits for the element to be visible, then sends the text to it as
	// keyboard input.
	Type(ctx context.Context, selector, text string) error

	// Close tears down the page and the browser instance. Safe to call more
	// than once.
	Close(ctx context.Context) error
}

// Factory creates a fresh Session. The agent loop calls it once per
// registration cycle; sessions are never reused across cycles.
type Factory func(ctx context.Context) (Session, error)
