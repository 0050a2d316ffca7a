package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/taskify/pkg/browser"
	"github.com/entrhq/taskify/pkg/logging"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("workflow")
	if err != nil {
		debugLog.Warnf("Failed to initialize workflow logger, using stderr fallback: %v", err)
	}
}

// DefaultRecoveryBudget is how many recovery clicks one pass may spend.
const DefaultRecoveryBudget = 2

// MsgBrowserGone is reported when the endpoint disappears mid-run.
const MsgBrowserGone = "Browser is not open. Please click 'Start' to open the browser and login first."

// sweepItemPause lets the embedded application process each checkbox click.
const sweepItemPause = 700 * time.Millisecond

// Sequencer runs a Flow against a page, one pass at a time.
type Sequencer struct {
	flow         Flow
	scale        float64
	clickTimeout time.Duration
}

// SequencerOption configures a Sequencer.
type SequencerOption func(*Sequencer)

// WithTimingScale multiplies every delay and settle pause. Zero disables them.
func WithTimingScale(scale float64) SequencerOption {
	return func(s *Sequencer) {
		if scale >= 0 {
			s.scale = scale
		}
	}
}

// WithClickTimeout bounds native clicks before the script fallback.
func WithClickTimeout(timeout time.Duration) SequencerOption {
	return func(s *Sequencer) {
		if timeout > 0 {
			s.clickTimeout = timeout
		}
	}
}

// NewSequencer creates a sequencer for flow.
func NewSequencer(flow Flow, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		flow:         flow,
		scale:        1,
		clickTimeout: browser.DefaultClickTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Flow returns the flow the sequencer runs.
func (s *Sequencer) Flow() Flow {
	return s.flow
}

// RunOnce executes every step of the flow in order.
//
// When a step times out locating its element and a recovery affordance is
// present, the affordance is clicked and the pass restarts from the first
// step. At most budget restarts happen per call; an affordance still present
// after that yields FatalFailure with CodeRecoveryExhausted. A timeout with
// no affordance yields FatalFailure with the step's own code.
func (s *Sequencer) RunOnce(ctx context.Context, page browser.Page, budget int) StepResult {
	if budget < 0 {
		budget = 0
	}
	a := browser.NewActor(page).WithClickTimeout(s.clickTimeout)

	recoveries := 0
	for {
		res := s.pass(ctx, a)
		res.Recoveries = recoveries
		if res.Outcome != FatalFailure || !browser.IsLocateTimeout(res.Err) {
			return res
		}

		el, err := s.findAffordance(ctx, a)
		if err != nil {
			if browser.IsUnreachable(err) {
				return s.gone(res.Step, err, recoveries)
			}
			debugLog.Warnf("Recovery check failed: %v", err)
		}
		if el == nil {
			debugLog.Errorf("Step %q timed out: %s", res.Step, res.Code)
			return res
		}

		if recoveries >= budget {
			debugLog.Errorf("Step %q timed out after %d recoveries", res.Step, recoveries)
			return StepResult{
				Outcome:    FatalFailure,
				Code:       CodeRecoveryExhausted,
				Message:    ReasonRecoveryExhausted,
				Step:       res.Step,
				Recoveries: recoveries,
				Err:        res.Err,
			}
		}

		if err := a.Click(ctx, el); err != nil {
			if browser.IsUnreachable(err) {
				return s.gone(res.Step, err, recoveries)
			}
			debugLog.Warnf("Could not click the home page button: %v", err)
			return res
		}
		recoveries++
		debugLog.Infof("Returned to home page, restarting from the first step (recovery %d/%d)", recoveries, budget)
		if err := s.pause(ctx, s.flow.RecoverySettle); err != nil {
			return s.canceled(res.Step, err, recoveries)
		}
	}
}

// pass runs every step once and stops at the first that does not succeed.
func (s *Sequencer) pass(ctx context.Context, a *browser.Actor) StepResult {
	for i, step := range s.flow.Steps {
		if err := ctx.Err(); err != nil {
			return s.canceled(step.Name, err, 0)
		}
		debugLog.Infof("Step %d/%d: %s", i+1, len(s.flow.Steps), step.Name)
		if err := s.pause(ctx, step.Delay); err != nil {
			return s.canceled(step.Name, err, 0)
		}

		var (
			res  StepResult
			stop bool
		)
		switch step.Kind {
		case Gate:
			res, stop = s.gate(ctx, a, step)
		case Sweep:
			res, stop = s.sweep(ctx, a, step)
		case Optional:
			res, stop = s.optional(ctx, a, step)
		default:
			res, stop = s.linear(ctx, a, step)
		}
		if stop {
			return res
		}
	}
	return succeeded(0)
}

func (s *Sequencer) linear(ctx context.Context, a *browser.Actor, step Step) (StepResult, bool) {
	if !step.Anchor.IsZero() {
		if _, err := a.Page().Find(ctx, step.Anchor, step.Timeout); err != nil {
			return s.locateFailed(step, err), true
		}
	}

	if !step.Expanded.IsZero() {
		present, err := a.Present(ctx, step.Expanded)
		if err != nil && browser.IsUnreachable(err) {
			return s.gone(step.Name, err, 0), true
		}
		if present {
			debugLog.Infof("%s is already done, skipping", step.Name)
			return StepResult{}, false
		}
	}

	el, loc, err := a.Locate(ctx, step.Timeout, step.Target, step.Fallbacks...)
	if err != nil {
		return s.locateFailed(step, err), true
	}
	debugLog.Debugf("Found %s with %s", step.Name, loc)

	if step.Done != nil {
		done, err := step.Done(ctx, el)
		if err != nil {
			if browser.IsUnreachable(err) {
				return s.gone(step.Name, err, 0), true
			}
			debugLog.Warnf("Could not read state of %s: %v", step.Name, err)
		}
		if done {
			debugLog.Infof("%s is already done, skipping", step.Name)
			return StepResult{}, false
		}
	}

	if err := s.act(ctx, a, step, el); err != nil {
		return s.actFailed(step, err), true
	}
	return s.finish(ctx, a, step)
}

// gate treats an empty work-item container as the terminal signal. A
// missing container is a locate timeout, never terminal.
func (s *Sequencer) gate(ctx context.Context, a *browser.Actor, step Step) (StepResult, bool) {
	page := a.Page()
	if _, err := page.Find(ctx, step.Container, step.Timeout); err != nil {
		return s.locateFailed(step, err), true
	}

	items, err := page.FindAll(ctx, step.Target)
	if err != nil {
		return s.locateFailed(step, err), true
	}
	if len(items) == 0 {
		debugLog.Infof("No work items left in %s", step.Container)
		return terminal(0), true
	}
	debugLog.Infof("Found %d work item(s)", len(items))

	el, _, err := a.Locate(ctx, step.Timeout, step.Target, step.Fallbacks...)
	if err != nil {
		return s.locateFailed(step, err), true
	}
	if err := s.act(ctx, a, step, el); err != nil {
		return s.actFailed(step, err), true
	}
	return s.finish(ctx, a, step)
}

// sweep checks every enabled, unchecked item inside the step's frame.
// Individual item failures are logged and skipped.
func (s *Sequencer) sweep(ctx context.Context, a *browser.Actor, step Step) (StepResult, bool) {
	page := a.Page()
	release, err := browser.EnterFrame(ctx, page, step.Frame, step.Timeout)
	if err != nil {
		return s.locateFailed(step, err), true
	}
	defer release()

	if _, err := page.Find(ctx, step.Target, step.Timeout); err != nil {
		return s.locateFailed(step, err), true
	}
	items, err := page.FindAll(ctx, step.Target)
	if err != nil {
		if browser.IsUnreachable(err) {
			return s.gone(step.Name, err, 0), true
		}
		return s.actFailed(step, err), true
	}
	debugLog.Infof("Found %d item(s) for %s", len(items), step.Name)

	checked, skipped := 0, 0
	for i, item := range items {
		name, err := item.Attribute(ctx, "name")
		if err != nil || name == "" {
			name = fmt.Sprintf("item_%d", i+1)
		}

		skip, err := sweepSkip(ctx, item)
		if err != nil {
			if browser.IsUnreachable(err) {
				return s.gone(step.Name, err, 0), true
			}
			debugLog.Warnf("Could not read %s: %v", name, err)
			continue
		}
		if skip {
			debugLog.Debugf("%s is disabled or already checked, skipping", name)
			skipped++
			continue
		}

		if err := s.sweepClick(ctx, item); err != nil {
			if browser.IsUnreachable(err) {
				return s.gone(step.Name, err, 0), true
			}
			debugLog.Warnf("Could not check %s: %v", name, err)
			continue
		}
		checked++
		debugLog.Debugf("Checked %s (%d total)", name, checked)
		if err := s.pause(ctx, sweepItemPause); err != nil {
			return s.canceled(step.Name, err, 0), true
		}
	}
	debugLog.Infof("Checked %d item(s), skipped %d", checked, skipped)

	release()
	if err := s.pause(ctx, step.Settle); err != nil {
		return s.canceled(step.Name, err, 0), true
	}
	return StepResult{}, false
}

func sweepSkip(ctx context.Context, item browser.Element) (bool, error) {
	disabled, err := item.Disabled(ctx)
	if err != nil {
		return false, err
	}
	if disabled {
		return true, nil
	}
	return item.Checked(ctx)
}

// sweepClick clicks from script first; the embedded application reacts to
// script clicks more reliably than to native ones.
func (s *Sequencer) sweepClick(ctx context.Context, item browser.Element) error {
	if err := item.ScrollIntoView(ctx); err != nil && browser.IsUnreachable(err) {
		return err
	}
	scriptErr := item.ScriptClick(ctx)
	if scriptErr == nil {
		return nil
	}
	if browser.IsUnreachable(scriptErr) {
		return scriptErr
	}
	if err := item.Click(ctx, s.clickTimeout); err != nil {
		return errors.Join(scriptErr, err)
	}
	return nil
}

// optional acts only when its probe is present.
func (s *Sequencer) optional(ctx context.Context, a *browser.Actor, step Step) (StepResult, bool) {
	if _, err := a.Page().Find(ctx, step.probe(), step.Timeout); err != nil {
		if browser.IsUnreachable(err) {
			return s.gone(step.Name, err, 0), true
		}
		debugLog.Infof("%s not present, continuing", step.Name)
		return StepResult{}, false
	}

	if step.Action != NoAction {
		el, _, err := a.Locate(ctx, step.Timeout, step.Target, step.Fallbacks...)
		if err == nil {
			err = s.act(ctx, a, step, el)
		}
		if err != nil {
			if browser.IsUnreachable(err) {
				return s.gone(step.Name, err, 0), true
			}
			debugLog.Warnf("Could not complete %s, continuing: %v", step.Name, err)
			return StepResult{}, false
		}
	}
	debugLog.Infof("%s handled", step.Name)

	if err := s.pause(ctx, step.Settle); err != nil {
		return s.canceled(step.Name, err, 0), true
	}
	return StepResult{}, false
}

func (s *Sequencer) act(ctx context.Context, a *browser.Actor, step Step, el browser.Element) error {
	if step.HideOverlays {
		if err := a.HideOverlays(ctx); err != nil {
			if browser.IsUnreachable(err) {
				return err
			}
			debugLog.Debugf("Could not hide overlays: %v", err)
		}
	}

	switch step.Action {
	case NoAction:
		return nil
	case ScriptClick:
		return el.ScriptClick(ctx)
	default:
		return a.Click(ctx, el)
	}
}

// finish verifies the step and waits for the page to settle.
func (s *Sequencer) finish(ctx context.Context, a *browser.Actor, step Step) (StepResult, bool) {
	if step.Verify != nil {
		ok, err := step.Verify(ctx, a)
		if err != nil {
			return s.actFailed(step, err), true
		}
		if !ok {
			debugLog.Errorf("%s did not take effect", step.Name)
			return recoverable(step, fmt.Sprintf("%s did not take effect.", step.Name), nil), true
		}
	}

	debugLog.Infof("%s done", step.Name)
	if err := s.pause(ctx, step.Settle); err != nil {
		return s.canceled(step.Name, err, 0), true
	}
	return StepResult{}, false
}

// locateFailed maps an error raised while locating a step's elements.
func (s *Sequencer) locateFailed(step Step, err error) StepResult {
	switch {
	case isCanceled(err):
		return s.canceled(step.Name, err, 0)
	case browser.IsUnreachable(err):
		return s.gone(step.Name, err, 0)
	case browser.IsLocateTimeout(err):
		debugLog.Warnf("%s not found: %v", step.Name, err)
		return fatal(step, err)
	default:
		debugLog.Errorf("Error locating %s: %v", step.Name, err)
		res := recoverable(step, step.Message, err)
		res.Code = step.Code
		return res
	}
}

// actFailed maps an error raised while acting on a located element.
func (s *Sequencer) actFailed(step Step, err error) StepResult {
	switch {
	case isCanceled(err):
		return s.canceled(step.Name, err, 0)
	case browser.IsUnreachable(err):
		return s.gone(step.Name, err, 0)
	default:
		debugLog.Errorf("Error during %s: %v", step.Name, err)
		return recoverable(step, fmt.Sprintf("Error during %s: %v", step.Name, err), err)
	}
}

func (s *Sequencer) gone(step string, err error, recoveries int) StepResult {
	debugLog.Errorf("Lost connection to browser during %s: %v", step, err)
	return StepResult{Outcome: FatalFailure, Code: CodeBrowserNotOpen, Message: MsgBrowserGone, Step: step, Recoveries: recoveries, Err: err}
}

func (s *Sequencer) canceled(step string, err error, recoveries int) StepResult {
	return StepResult{Outcome: FatalFailure, Code: CodeCanceled, Message: "Automation was canceled.", Step: step, Recoveries: recoveries, Err: err}
}

// findAffordance returns the first recovery affordance present in the
// top-level document, or nil.
func (s *Sequencer) findAffordance(ctx context.Context, a *browser.Actor) (browser.Element, error) {
	page := a.Page()
	page.SwitchToTop()
	for _, aff := range s.flow.Recovery {
		el, err := page.Find(ctx, aff.Locator, 0)
		if err != nil {
			if browser.IsLocateTimeout(err) {
				continue
			}
			return nil, err
		}
		if aff.Text != "" {
			text, err := el.Text(ctx)
			if err != nil {
				if browser.IsUnreachable(err) {
					return nil, err
				}
				continue
			}
			if !strings.Contains(strings.ToLower(text), strings.ToLower(aff.Text)) {
				continue
			}
		}
		debugLog.Infof("Found home page button %s", aff.Locator)
		return el, nil
	}
	return nil, nil
}

// pause sleeps for d scaled by the timing scale, or until ctx is done.
func (s *Sequencer) pause(ctx context.Context, d time.Duration) error {
	return sleep(ctx, time.Duration(float64(d)*s.scale))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
