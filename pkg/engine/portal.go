package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/entrhq/taskify/pkg/browser"
	"github.com/entrhq/taskify/pkg/config"
	"github.com/entrhq/taskify/pkg/session"
)

// errUnexpectedLocation means the page loaded somewhere other than the portal.
var errUnexpectedLocation = errors.New("unexpected location")

// portalSettings controls loading the portal into a new browser.
type portalSettings struct {
	url          string
	retries      int
	loadTimeout  time.Duration
	retryDelay   time.Duration
	networkDelay time.Duration
}

func newPortalSettings(cfg config.PortalConfig) portalSettings {
	retries := cfg.NavigationRetries
	if retries < 1 {
		retries = 1
	}
	return portalSettings{
		url:          cfg.URL,
		retries:      retries,
		loadTimeout:  cfg.PageLoadTimeout.Std(),
		retryDelay:   cfg.RetryDelay.Std(),
		networkDelay: cfg.NetworkRetryDelay.Std(),
	}
}

// portalBackOff waits longer after a network-class failure than after a
// load timeout or an unexpected location.
type portalBackOff struct {
	delay        time.Duration
	networkDelay time.Duration
	network      bool
}

func (b *portalBackOff) Reset() {
	b.network = false
}

func (b *portalBackOff) NextBackOff() time.Duration {
	if b.network {
		return b.networkDelay
	}
	return b.delay
}

// openPortal loads the portal into page, retrying failed loads. The page is
// accepted once it shows a portal page or the login page.
func openPortal(ctx context.Context, page browser.Page, portal portalSettings, classifier *session.Classifier) (string, error) {
	delays := &portalBackOff{delay: portal.retryDelay, networkDelay: portal.networkDelay}
	attempt := 0

	load := func() (string, error) {
		attempt++
		debugLog.Infof("Opening portal (attempt %d/%d): %s", attempt, portal.retries, portal.url)

		err := page.Navigate(ctx, portal.url, portal.loadTimeout)
		delays.network = browser.KindOf(err) == browser.KindNavigation
		if err != nil {
			if browser.IsUnreachable(err) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}

		location, err := page.Location(ctx)
		if err != nil {
			if browser.IsUnreachable(err) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		if !classifier.OnPortal(location) && !classifier.IsLogin(location) {
			return "", fmt.Errorf("%w: %s", errUnexpectedLocation, location)
		}
		return location, nil
	}

	location, err := backoff.Retry(ctx, load,
		backoff.WithBackOff(delays),
		backoff.WithMaxTries(uint(portal.retries)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			debugLog.Warnf("Portal not loaded: %v (retrying in %s)", err, next)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("open portal after %d attempt(s): %w", attempt, err)
	}
	debugLog.Infof("Portal loaded at %s", location)
	return location, nil
}
