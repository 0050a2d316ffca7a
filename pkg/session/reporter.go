package session

import (
	"context"
	"errors"
)

// Status is the observed state of the browser session.
type Status struct {
	SessionOpen   bool
	Authenticated bool
	Location      string
	Message       string
}

// Status messages.
const (
	MsgNoBrowser       = "No browser instance found. Click 'Start' to open browser."
	MsgCannotConnect   = "Cannot connect to browser"
	MsgNotResponding   = "Browser instance is not responding"
	MsgLoggedIn        = "Browser is open and user is logged in"
	MsgOpenNotLoggedIn = "Browser is open but user is not logged in"
)

// Reporter answers whether a session exists and is authenticated. It may
// adopt an endpoint that is already running but never creates one.
type Reporter struct {
	manager    *Manager
	classifier *Classifier
	store      *Store
}

// NewReporter creates a status reporter.
func NewReporter(manager *Manager, classifier *Classifier, store *Store) *Reporter {
	return &Reporter{manager: manager, classifier: classifier, store: store}
}

// Check inspects the live session.
//
// Without a handle it probes the control port and reports closed if nothing
// listens. If an endpoint listens it attaches and adopts the handle. A handle
// that fails its liveness read is dropped and the session record cleared.
// Otherwise the authentication state is classified from the location, stored
// on the handle and persisted.
func (r *Reporter) Check(ctx context.Context) Status {
	h := r.manager.Handle()
	if h == nil {
		var err error
		h, err = r.manager.Attach(ctx)
		if errors.Is(err, ErrNoEndpoint) {
			debugLog.Infof("No browser with a control port found")
			return Status{Message: MsgNoBrowser}
		}
		if err != nil {
			debugLog.Warnf("Control port active but cannot attach: %v", err)
			return Status{Message: MsgCannotConnect}
		}
		debugLog.Infof("Reattached to existing browser")
	}

	location, err := h.Page.Location(ctx)
	if err != nil {
		debugLog.Warnf("Browser check failed: %v", err)
		r.manager.Drop()
		if clearErr := r.store.Clear(); clearErr != nil {
			debugLog.Warnf("Failed to clear session record: %v", clearErr)
		}
		return Status{Message: MsgNotResponding}
	}

	authenticated := r.classifier.Authenticated(location)
	h.Authenticated = authenticated
	if err := r.store.Save(true, authenticated); err != nil {
		debugLog.Warnf("Failed to save session record: %v", err)
	}

	st := Status{SessionOpen: true, Authenticated: authenticated, Location: location, Message: MsgOpenNotLoggedIn}
	if authenticated {
		st.Message = MsgLoggedIn
	}
	debugLog.Infof("Browser is open at %s (authenticated=%t)", location, authenticated)
	return st
}
