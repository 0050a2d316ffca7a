package browser

import (
	"context"
	"time"
)

// Page is the attached tab of the remote automation endpoint.
//
// A Page has a current execution context: the top-level document, or an
// embedded frame entered with SwitchToFrame. Find, FindAll and Eval operate
// on the current context. Location always reads the top-level document.
// Use EnterFrame rather than calling SwitchToFrame directly so the top-level
// context is restored on every exit path.
type Page interface {
	// Location reads the current location of the top-level document. It is
	// also the liveness read: an unreachable endpoint fails with KindUnreachable.
	Location(ctx context.Context) (string, error)

	// Navigate loads url and waits for the document to finish loading.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// Find waits up to timeout for the first element matching loc. A zero
	// timeout probes once. A missing element fails with KindLocateTimeout.
	Find(ctx context.Context, loc Locator, timeout time.Duration) (Element, error)

	// FindAll returns every element currently matching loc, possibly none.
	FindAll(ctx context.Context, loc Locator) ([]Element, error)

	// Eval runs a script in the current context and returns its result.
	Eval(ctx context.Context, script string) (interface{}, error)

	// SwitchToFrame makes the frame element matching loc the current context.
	SwitchToFrame(ctx context.Context, loc Locator, timeout time.Duration) error

	// SwitchToTop makes the top-level document the current context.
	SwitchToTop()

	// Detach drops the control connection and leaves the endpoint running.
	Detach() error

	// Shutdown terminates the endpoint process.
	Shutdown(ctx context.Context) error
}

// Element is a live element of the page.
type Element interface {
	// Click performs a native click, waiting up to timeout for actionability.
	Click(ctx context.Context, timeout time.Duration) error

	// ScriptClick dispatches a click from script, bypassing overlays and
	// actionability checks.
	ScriptClick(ctx context.Context) error

	// ScrollIntoView centres the element in the viewport.
	ScrollIntoView(ctx context.Context) error

	// Attribute returns the attribute value, or "" when absent.
	Attribute(ctx context.Context, name string) (string, error)

	// Text returns the element's text content.
	Text(ctx context.Context) (string, error)

	// Checked reports whether a checkbox or radio input is checked.
	Checked(ctx context.Context) (bool, error)

	// Disabled reports whether the element is disabled.
	Disabled(ctx context.Context) (bool, error)
}

// Connector attaches to a running endpoint.
type Connector interface {
	// Connect attaches to the endpoint at address (for example
	// "http://127.0.0.1:9222") and returns its active page.
	Connect(ctx context.Context, address string) (Page, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, address string) (Page, error)

// Connect implements Connector.
func (f ConnectorFunc) Connect(ctx context.Context, address string) (Page, error) {
	return f(ctx, address)
}
