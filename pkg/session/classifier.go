package session

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Classifier decides from a location whether the operator is logged in.
// Patterns are globs matched against the lowercased location.
type Classifier struct {
	host  glob.Glob
	login glob.Glob
}

// NewClassifier compiles the portal host and login page patterns. An empty
// host pattern accepts every location.
func NewClassifier(hostPattern, loginPattern string) (*Classifier, error) {
	c := &Classifier{}
	if hostPattern != "" {
		g, err := glob.Compile(strings.ToLower(hostPattern))
		if err != nil {
			return nil, fmt.Errorf("invalid host pattern %q: %w", hostPattern, err)
		}
		c.host = g
	}
	g, err := glob.Compile(strings.ToLower(loginPattern))
	if err != nil {
		return nil, fmt.Errorf("invalid login pattern %q: %w", loginPattern, err)
	}
	c.login = g
	return c, nil
}

// IsLogin reports whether location is the login page.
func (c *Classifier) IsLogin(location string) bool {
	return c.login.Match(strings.ToLower(location))
}

// OnPortal reports whether location belongs to the portal.
func (c *Classifier) OnPortal(location string) bool {
	if c.host == nil {
		return true
	}
	return c.host.Match(strings.ToLower(location))
}

// Authenticated reports whether location is a portal page other than the
// login page.
func (c *Classifier) Authenticated(location string) bool {
	return c.OnPortal(location) && !c.IsLogin(location)
}
