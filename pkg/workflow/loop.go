package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/taskify/pkg/session"
)

// Loop defaults.
const (
	DefaultMaxConsecutiveErrors = 3
	DefaultSuccessPause         = 2 * time.Second
	DefaultErrorPause           = 5 * time.Second
)

// Precondition messages.
const (
	MsgNotLoggedIn = "You are not logged in. Please login to Vahan website first."
)

// StatusChecker reports the state of the session before a run. It may adopt
// a running endpoint but never creates one.
type StatusChecker interface {
	Check(ctx context.Context) session.Status
}

// HandleSource returns the attached session handle, or nil.
type HandleSource interface {
	Handle() *session.Handle
}

// Report summarizes one run of the loop.
type Report struct {
	RunID   string
	Success bool
	Status  string
	Message string

	// Processed counts successful passes
	Processed int

	// ConsecutiveErrors is the failure streak the run ended with
	ConsecutiveErrors int

	// LastStep names the step of the last failure
	LastStep string

	// LastError is the message of the last failure
	LastError string

	Started  time.Time
	Finished time.Time
}

// Loop runs the sequencer until no work remains or failures pile up.
type Loop struct {
	sequencer *Sequencer
	checker   StatusChecker
	handles   HandleSource

	budget       int
	maxErrors    int
	successPause time.Duration
	errorPause   time.Duration
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithRecoveryBudget sets the recovery budget of every pass.
func WithRecoveryBudget(budget int) LoopOption {
	return func(l *Loop) {
		if budget >= 0 {
			l.budget = budget
		}
	}
}

// WithMaxConsecutiveErrors sets how many failed passes in a row stop the run.
func WithMaxConsecutiveErrors(max int) LoopOption {
	return func(l *Loop) {
		if max > 0 {
			l.maxErrors = max
		}
	}
}

// WithPauses sets the pauses after a successful and after a failed pass.
func WithPauses(success, failure time.Duration) LoopOption {
	return func(l *Loop) {
		l.successPause = success
		l.errorPause = failure
	}
}

// NewLoop creates a loop controller.
func NewLoop(sequencer *Sequencer, checker StatusChecker, handles HandleSource, opts ...LoopOption) *Loop {
	l := &Loop{
		sequencer:    sequencer,
		checker:      checker,
		handles:      handles,
		budget:       DefaultRecoveryBudget,
		maxErrors:    DefaultMaxConsecutiveErrors,
		successPause: DefaultSuccessPause,
		errorPause:   DefaultErrorPause,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RunToCompletion processes work items until the sequencer reports that none
// remain. The session must be open and authenticated.
//
// A successful pass resets the failure streak. A failed pass extends it and
// the run stops once the streak reaches the configured bound, surfacing the
// last failure's code. A lost endpoint or a canceled context stops the run
// at once.
func (l *Loop) RunToCompletion(ctx context.Context) Report {
	rep := Report{RunID: uuid.New().String(), Started: time.Now()}
	done := func() Report {
		rep.Finished = time.Now()
		return rep
	}

	st := l.checker.Check(ctx)
	h := l.handles.Handle()
	if !st.SessionOpen || h == nil {
		rep.Status = CodeBrowserNotOpen
		rep.Message = MsgBrowserGone
		return done()
	}
	if !st.Authenticated {
		rep.Status = CodeNotLoggedIn
		rep.Message = MsgNotLoggedIn
		return done()
	}

	debugLog.Infof("Run %s: processing until no pending items remain", rep.RunID)
	for {
		debugLog.Infof("Run %s: iteration %d", rep.RunID, rep.Processed+rep.ConsecutiveErrors+1)
		res := l.sequencer.RunOnce(ctx, h.Page, l.budget)

		switch res.Outcome {
		case Success:
			rep.Processed++
			rep.ConsecutiveErrors = 0
			debugLog.Infof("Run %s: processed item %d", rep.RunID, rep.Processed)
			if err := sleep(ctx, l.successPause); err != nil {
				return l.stopCanceled(&rep, done)
			}

		case TerminalSuccess:
			rep.Success = true
			rep.Status = CodeCompleted
			rep.Message = fmt.Sprintf("Automation completed successfully! Processed %d item(s). No more pending approvals found.", rep.Processed)
			debugLog.Infof("Run %s: all items processed (%d)", rep.RunID, rep.Processed)
			return done()

		default:
			rep.ConsecutiveErrors++
			rep.LastStep = res.Step
			rep.LastError = res.Message
			debugLog.Errorf("Run %s: %s (consecutive errors %d/%d)", rep.RunID, res, rep.ConsecutiveErrors, l.maxErrors)

			if res.Code == CodeBrowserNotOpen || res.Code == CodeCanceled {
				rep.Status = res.Code
				rep.Message = res.Message
				return done()
			}
			if rep.ConsecutiveErrors >= l.maxErrors {
				rep.Status = res.Code
				if rep.Status == "" {
					rep.Status = CodeError
				}
				rep.Message = fmt.Sprintf("Automation stopped after %d consecutive errors. Processed %d item(s) successfully before errors. Last error: %s",
					rep.ConsecutiveErrors, rep.Processed, res.Message)
				debugLog.Errorf("Run %s: stopping after %d consecutive errors", rep.RunID, rep.ConsecutiveErrors)
				return done()
			}
			if err := sleep(ctx, l.errorPause); err != nil {
				return l.stopCanceled(&rep, done)
			}
		}
	}
}

func (l *Loop) stopCanceled(rep *Report, done func() Report) Report {
	rep.Status = CodeCanceled
	rep.Message = fmt.Sprintf("Automation was canceled. Processed %d item(s).", rep.Processed)
	return done()
}
