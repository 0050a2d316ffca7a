// Package browser is the element locator and actor layer between the workflow
// and the remote automation endpoint.
//
// # Model
//
// A Page is the attached tab of a running browser. Locators are logical
// references (XPath, CSS or exact id) resolved against the page's current
// execution context within a bounded wait. Elements are live handles that
// support the small set of actions the approval flow needs.
//
// # Errors
//
// Every failure coming back from the endpoint is classified exactly once, in
// the Playwright adapter, into a Kind:
//
//   - KindUnreachable: the endpoint is gone; callers drop their handle
//   - KindLocateTimeout: the element did not appear in time
//   - KindNavigation: a page failed to load
//   - KindBlocked: the element exists but refused the action
//
// Downstream code reads the kind with KindOf and never inspects error text.
//
// # Frames
//
// Some elements live in an embedded frame. EnterFrame switches into it and
// returns a release function that restores the top-level document; defer it
// so every exit path, including errors, leaves the page at the top level.
//
// # Fallbacks
//
// Actor wraps a Page with the fallbacks the portal needs: alternate locators
// probed after the primary one times out, and a scroll plus script click when
// a native click is intercepted by an overlay.
package browser
