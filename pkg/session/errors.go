package session

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoEndpoint means nothing listens on the control port.
	ErrNoEndpoint = errors.New("no browser endpoint on the control port")

	// ErrAuthTimeout means the operator did not log in before the timeout.
	ErrAuthTimeout = errors.New("login timeout")

	// ErrNoSession means an operation needs a session and none is attached.
	ErrNoSession = errors.New("no browser session")
)

// CreationRemediation is shown to the operator when no strategy could
// create a browser.
const CreationRemediation = `Browser initialization failed.

This is typically caused by a version mismatch between the installed browser
and the automation driver.

Solutions (try in order):
1. UPDATE BROWSER: update Chrome to the latest version
2. RESTART: close all Chrome windows and restart your computer
3. UPDATE PACKAGES: reinstall the automation driver (taskify start downloads it on first use)`

// Attempt is one failed creation strategy.
type Attempt struct {
	Strategy string
	Err      error
}

// CreationError reports that every creation strategy failed.
type CreationError struct {
	Attempts []Attempt
}

func (e *CreationError) Error() string {
	if len(e.Attempts) == 0 {
		return "browser creation failed: no strategies configured"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return "browser creation failed: " + strings.Join(parts, "; ")
}

// Remediation returns the operator checklist.
func (e *CreationError) Remediation() string {
	return CreationRemediation
}

// Unwrap exposes the attempt errors to errors.Is and errors.As.
func (e *CreationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}
