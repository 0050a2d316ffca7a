package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/entrhq/taskify/pkg/browser"
)

// Kind selects how the sequencer executes a step.
type Kind int

const (
	// Linear locates a target, skips it when its Done check already holds,
	// then acts on it
	Linear Kind = iota

	// Gate waits for a work-item container and acts on the first item. An
	// empty container is the terminal "no more work" signal.
	Gate

	// Sweep enters Frame and acts on every item matching Target that is
	// enabled and not yet checked
	Sweep

	// Optional acts only when its probe is present. Absence is not an error.
	Optional
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Linear:
		return "linear"
	case Gate:
		return "gate"
	case Sweep:
		return "sweep"
	case Optional:
		return "optional"
	default:
		return "unknown"
	}
}

// Action is what a step does to its located element.
type Action int

const (
	// NativeClick clicks natively and falls back to a script click
	NativeClick Action = iota
	// ScriptClick dispatches the click from script only
	ScriptClick
	// NoAction only waits for the element
	NoAction
)

// DoneFunc reports whether the desired state of a located element already
// holds, in which case the action is skipped.
type DoneFunc func(ctx context.Context, el browser.Element) (bool, error)

// VerifyFunc checks the outcome of a step after its action.
type VerifyFunc func(ctx context.Context, a *browser.Actor) (bool, error)

// Step is one named unit of the workflow.
type Step struct {
	Name string
	Kind Kind

	// Code and Message are surfaced when the step cannot locate its element
	Code    string
	Message string

	// ActCode is surfaced when the element was found but acting on it failed.
	// Empty means CodeError.
	ActCode string

	// Anchor must be present before Target is located. For Optional steps the
	// anchor is the presence probe.
	Anchor browser.Locator

	Target    browser.Locator
	Fallbacks []browser.Locator

	// Frame is the embedded document a Sweep step works in
	Frame browser.Locator

	// Container is the element a Gate step waits for before counting items
	Container browser.Locator

	// Expanded, when present, means the step is already done
	Expanded browser.Locator

	Done   DoneFunc
	Verify VerifyFunc
	Action Action

	// HideOverlays hides modal masks before acting
	HideOverlays bool

	// Timeout bounds locating the anchor, container, frame and target
	Timeout time.Duration

	// Delay pauses before the step, Settle after its action
	Delay  time.Duration
	Settle time.Duration
}

// actCode returns the code for a step that located its element but could
// not act on it.
func (s Step) actCode() string {
	if s.ActCode != "" {
		return s.ActCode
	}
	return CodeError
}

// probe returns the locator an Optional step checks for presence.
func (s Step) probe() browser.Locator {
	if !s.Anchor.IsZero() {
		return s.Anchor
	}
	return s.Target
}

// ClassContains returns a DoneFunc that holds when the element's class
// attribute contains class.
func ClassContains(class string) DoneFunc {
	return func(ctx context.Context, el browser.Element) (bool, error) {
		v, err := el.Attribute(ctx, "class")
		if err != nil {
			return false, err
		}
		for _, c := range strings.Fields(v) {
			if c == class {
				return true, nil
			}
		}
		return false, nil
	}
}

// Affordance is an element whose presence means the portal bounced to a
// landing page. Clicking it returns to the home view.
type Affordance struct {
	Locator browser.Locator

	// Text, when set, must appear (case-insensitively) in the element text
	Text string
}

// Flow is an ordered list of steps plus the recovery affordances checked
// when a step times out.
type Flow struct {
	Steps    []Step
	Recovery []Affordance

	// RecoverySettle pauses after a recovery click
	RecoverySettle time.Duration
}
