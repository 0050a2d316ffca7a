package session

import (
	"context"
	"time"

	"github.com/entrhq/taskify/pkg/browser"
)

// DefaultPollInterval is how often the login gate reads the location.
const DefaultPollInterval = 2 * time.Second

// DefaultLoginTimeout is how long the login gate waits for the operator.
const DefaultLoginTimeout = 300 * time.Second

// LoginGate waits for a human operator to log in. There is no event to
// subscribe to, so it polls the endpoint.
type LoginGate struct {
	classifier *Classifier
	markers    []browser.Locator
	interval   time.Duration
}

// NewLoginGate creates a gate. markers are elements that only exist once
// logged in; any of them being present counts as authenticated.
func NewLoginGate(classifier *Classifier, interval time.Duration, markers ...browser.Locator) *LoginGate {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &LoginGate{classifier: classifier, markers: markers, interval: interval}
}

// Wait polls h until the operator is authenticated or timeout elapses.
//
// Authentication is observed when the location differs from the location at
// the start of the wait and is not the login page, or when a marker element
// is present on a non-login page. Wait returns false with ErrAuthTimeout on
// timeout, and false with the read error as soon as the endpoint becomes
// unreachable. On success h.Authenticated is set.
func (g *LoginGate) Wait(ctx context.Context, h *Handle, timeout time.Duration) (bool, error) {
	if h == nil {
		return false, ErrNoSession
	}
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}

	initial, err := h.Page.Location(ctx)
	if err != nil {
		debugLog.Errorf("Cannot read current location: %v", err)
		return false, err
	}
	debugLog.Infof("Waiting up to %s for login (starting at %s)", timeout, initial)

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		ok, err := g.observe(ctx, h.Page, initial)
		if err != nil {
			return false, err
		}
		if ok {
			h.Authenticated = true
			return true, nil
		}

		if !time.Now().Before(deadline) {
			debugLog.Warnf("Login timeout after %s", timeout)
			return false, ErrAuthTimeout
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// observe checks once for the authentication signal.
func (g *LoginGate) observe(ctx context.Context, page browser.Page, initial string) (bool, error) {
	location, err := page.Location(ctx)
	if err != nil {
		if browser.IsUnreachable(err) {
			debugLog.Errorf("Lost connection to browser (was it closed?)")
			return false, err
		}
		// A navigation in progress makes the read fail; try again on the next tick
		debugLog.Debugf("Location read failed: %v", err)
		return false, nil
	}

	if g.classifier.IsLogin(location) {
		return false, nil
	}
	if location != initial {
		debugLog.Infof("Login acknowledged, location changed to %s", location)
		return true, nil
	}

	for _, marker := range g.markers {
		_, err := page.Find(ctx, marker, 0)
		if err == nil {
			debugLog.Infof("Login acknowledged, found %s", marker)
			return true, nil
		}
		if browser.IsUnreachable(err) {
			return false, err
		}
	}
	return false, nil
}
