package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/taskify/pkg/logging"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("browser")
	if err != nil {
		debugLog.Warnf("Failed to initialize browser logger, using stderr fallback: %v", err)
	}
}

// HideOverlaysScript hides modal masks that intercept clicks on dialog buttons.
const HideOverlaysScript = `() => {
	document.querySelectorAll('.ui-widget-overlay, .ui-dialog-mask').forEach(function (overlay) {
		overlay.style.display = 'none';
	});
	return true;
}`

// DefaultClickTimeout bounds a native click before the script fallback is used.
const DefaultClickTimeout = 5 * time.Second

// Actor resolves locators to elements and acts on them with fallbacks:
// alternate locators when the primary one is absent, and a script-level click
// when a native click is blocked.
type Actor struct {
	page         Page
	clickTimeout time.Duration
}

// NewActor creates an actor for page.
func NewActor(page Page) *Actor {
	return &Actor{page: page, clickTimeout: DefaultClickTimeout}
}

// WithClickTimeout returns a copy of the actor using timeout for native clicks.
func (a *Actor) WithClickTimeout(timeout time.Duration) *Actor {
	cp := *a
	cp.clickTimeout = timeout
	return &cp
}

// Page returns the page the actor works on.
func (a *Actor) Page() Page {
	return a.page
}

// Locate waits up to timeout for primary, then probes each alternate once.
// It returns the element and the locator that matched. When nothing matches
// the error is the primary's locate-timeout.
func (a *Actor) Locate(ctx context.Context, timeout time.Duration, primary Locator, alternates ...Locator) (Element, Locator, error) {
	el, err := a.page.Find(ctx, primary, timeout)
	if err == nil {
		return el, primary, nil
	}
	if !IsLocateTimeout(err) {
		return nil, primary, err
	}

	for _, alt := range alternates {
		altEl, altErr := a.page.Find(ctx, alt, 0)
		if altErr == nil {
			debugLog.Debugf("Located %s using alternate %s", primary, alt)
			return altEl, alt, nil
		}
		if !IsLocateTimeout(altErr) {
			return nil, alt, altErr
		}
	}
	return nil, primary, err
}

// Present probes loc once. A missing element is not an error.
func (a *Actor) Present(ctx context.Context, loc Locator) (bool, error) {
	_, err := a.page.Find(ctx, loc, 0)
	if err == nil {
		return true, nil
	}
	if IsLocateTimeout(err) {
		return false, nil
	}
	return false, err
}

// Click clicks el natively and falls back to scrolling it into view and
// dispatching a script click. An unreachable endpoint is never retried.
func (a *Actor) Click(ctx context.Context, el Element) error {
	err := el.Click(ctx, a.clickTimeout)
	if err == nil {
		return nil
	}
	if IsUnreachable(err) {
		return err
	}

	debugLog.Debugf("Native click failed (%v), using script click", err)
	if scrollErr := el.ScrollIntoView(ctx); scrollErr != nil && IsUnreachable(scrollErr) {
		return scrollErr
	}
	if scriptErr := el.ScriptClick(ctx); scriptErr != nil {
		return fmt.Errorf("click failed: %w", errors.Join(err, scriptErr))
	}
	return nil
}

// ClickLocated locates an element with alternates and clicks it.
func (a *Actor) ClickLocated(ctx context.Context, timeout time.Duration, primary Locator, alternates ...Locator) error {
	el, _, err := a.Locate(ctx, timeout, primary, alternates...)
	if err != nil {
		return err
	}
	return a.Click(ctx, el)
}

// HideOverlays hides modal masks in the current context.
func (a *Actor) HideOverlays(ctx context.Context) error {
	if _, err := a.page.Eval(ctx, HideOverlaysScript); err != nil {
		return fmt.Errorf("hide overlays: %w", err)
	}
	return nil
}
