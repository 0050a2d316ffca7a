// Package engine exposes the four session operations a front end drives:
// start a session and wait for the operator to log in, check the session,
// run the approval workflow until no work remains, and close the session.
// Every operation returns a Result; no error escapes to the caller.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/taskify/pkg/browser"
	"github.com/entrhq/taskify/pkg/config"
	"github.com/entrhq/taskify/pkg/logging"
	"github.com/entrhq/taskify/pkg/session"
	"github.com/entrhq/taskify/pkg/workflow"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("engine")
	if err != nil {
		debugLog.Warnf("Failed to initialize engine logger, using stderr fallback: %v", err)
	}
}

// Engine orchestrates the browser session and the approval workflow.
// Operations are serialized.
type Engine struct {
	mu sync.Mutex

	manager    *session.Manager
	reporter   *session.Reporter
	gate       *session.LoginGate
	store      *session.Store
	classifier *session.Classifier

	flow         workflow.Flow
	sequencer    *workflow.Sequencer
	portal       portalSettings
	loginTimeout time.Duration
	workflowCfg  config.WorkflowConfig
}

// Option configures an Engine.
type Option func(*Engine)

// WithFlow replaces the approval flow.
func WithFlow(flow workflow.Flow) Option {
	return func(e *Engine) {
		e.flow = flow
	}
}

// New creates an engine from cfg around manager.
func New(cfg *config.Config, manager *session.Manager, opts ...Option) (*Engine, error) {
	classifier, err := session.NewClassifier(cfg.Portal.HostPattern, cfg.Portal.LoginPattern)
	if err != nil {
		return nil, err
	}
	store, err := session.NewStore(cfg.Session.RecordPath, cfg.Session.Freshness.Std())
	if err != nil {
		return nil, err
	}

	markers := make([]browser.Locator, 0, len(cfg.Portal.Markers))
	for _, m := range cfg.Portal.Markers {
		markers = append(markers, browser.XPath(m).Named("login marker"))
	}

	e := &Engine{
		manager:      manager,
		reporter:     session.NewReporter(manager, classifier, store),
		gate:         session.NewLoginGate(classifier, cfg.Login.PollInterval.Std(), markers...),
		store:        store,
		classifier:   classifier,
		flow:         workflow.ApprovalFlow(),
		portal:       newPortalSettings(cfg.Portal),
		loginTimeout: cfg.Login.Timeout.Std(),
		workflowCfg:  cfg.Workflow,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.sequencer = workflow.NewSequencer(e.flow, workflow.WithTimingScale(cfg.Workflow.TimingScale))
	return e, nil
}

// StartSession makes sure a browser is open on the portal and waits for the
// operator to log in.
//
// An open, authenticated session is reused as is. An open session on the
// login page only waits for the login. Otherwise a browser is attached or
// created, a created browser is sent to the portal, and the login is awaited.
// A login timeout leaves the browser open for a later attempt.
func (e *Engine) StartSession(ctx context.Context) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.reporter.Check(ctx)
	if st.SessionOpen && st.Authenticated {
		debugLog.Infof("Browser already open and logged in, reusing session")
		return Result{Success: true, Message: MsgAlreadyLoggedIn, Status: StatusAlreadyLoggedIn, ReusedSession: boolPtr(true)}
	}
	if st.SessionOpen {
		if h := e.manager.Handle(); h != nil {
			debugLog.Infof("Browser open but not logged in, waiting for login")
			return e.awaitLogin(ctx, h, true)
		}
	}

	debugLog.Infof("Starting browser")
	h, err := e.manager.AttachOrCreate(ctx)
	if err != nil {
		debugLog.Errorf("Failed to start browser: %v", err)
		res := failure(StatusError, fmt.Sprintf("Error starting Vahan browser: %v", err), err)
		if ce, ok := session.IsCreationError(err); ok {
			res.Message = "Error starting Vahan browser: no browser could be created."
			res.Remediation = ce.Remediation()
		}
		return res
	}

	if !h.Reused {
		if _, err := openPortal(ctx, h.Page, e.portal, e.classifier); err != nil {
			debugLog.Errorf("Failed to load portal: %v", err)
			if _, closeErr := e.manager.Close(ctx); closeErr != nil {
				debugLog.Warnf("Failed to close browser after connection error: %v", closeErr)
			}
			e.clearRecord()
			res := failure(StatusConnectionError, MsgConnectionFailed, err)
			res.Remediation = ConnectionRemediation
			return res
		}
	}
	if err := e.store.Save(true, false); err != nil {
		debugLog.Warnf("Failed to save session record: %v", err)
	}

	return e.awaitLogin(ctx, h, h.Reused)
}

// awaitLogin runs the login gate on h.
func (e *Engine) awaitLogin(ctx context.Context, h *session.Handle, reused bool) Result {
	ok, err := e.gate.Wait(ctx, h, e.loginTimeout)
	if ok {
		if err := e.store.Save(true, true); err != nil {
			debugLog.Warnf("Failed to save session record: %v", err)
		}
		msg := MsgStartedAndLogin
		if reused {
			msg = MsgLoginAcknowledged
		}
		debugLog.Infof("Login acknowledged")
		return Result{Success: true, Message: msg, Status: StatusLoginSuccess, ReusedSession: boolPtr(reused)}
	}

	switch {
	case errors.Is(err, session.ErrAuthTimeout):
		debugLog.Warnf("Login timeout, user did not complete login")
		res := failure(StatusLoginTimeout, MsgLoginTimeout, nil)
		res.ReusedSession = boolPtr(reused)
		return res
	case browser.IsUnreachable(err):
		debugLog.Errorf("Browser closed while waiting for login")
		e.manager.Drop()
		e.clearRecord()
		return failure(workflow.CodeBrowserNotOpen, MsgBrowserClosed, err)
	default:
		return failure(StatusError, fmt.Sprintf("Error waiting for login: %v", err), err)
	}
}

// CheckStatus reports whether a browser is open and logged in. It may adopt
// a browser that is already running but never creates one.
func (e *Engine) CheckStatus(ctx context.Context) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.reporter.Check(ctx)
	res := Result{
		Success:         true,
		Message:         st.Message,
		SessionOpen:     boolPtr(st.SessionOpen),
		Authenticated:   boolPtr(st.Authenticated),
		CurrentLocation: st.Location,
	}
	switch {
	case !st.SessionOpen:
		res.Status = workflow.CodeBrowserNotOpen
	case !st.Authenticated:
		res.Status = workflow.CodeNotLoggedIn
	default:
		res.Status = StatusLoggedIn
	}
	return res
}

// RunWorkflow processes pending approvals until none remain, the failure
// bound is reached, or ctx is canceled.
func (e *Engine) RunWorkflow(ctx context.Context) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	wf := e.workflowCfg
	loop := workflow.NewLoop(e.sequencer, e.reporter, e.manager,
		workflow.WithRecoveryBudget(wf.RecoveryBudget),
		workflow.WithMaxConsecutiveErrors(wf.MaxConsecutiveErrors),
		workflow.WithPauses(scaled(wf.SuccessPause.Std(), wf.TimingScale), scaled(wf.ErrorPause.Std(), wf.TimingScale)),
	)

	rep := loop.RunToCompletion(ctx)
	debugLog.Infof("Run %s finished: %s (processed %d)", rep.RunID, rep.Status, rep.Processed)

	res := Result{
		Success:        rep.Success,
		Message:        rep.Message,
		Status:         rep.Status,
		ProcessedCount: intPtr(rep.Processed),
		RunID:          rep.RunID,
	}
	if !rep.Success {
		res.Error = rep.LastError
		if res.Error == "" {
			res.Error = rep.Message
		}
	}
	if rep.Status == workflow.CodeBrowserNotOpen && rep.ConsecutiveErrors > 0 {
		// The endpoint went away mid-run
		e.manager.Drop()
		e.clearRecord()
	}
	return res
}

// CloseSession terminates the browser and clears the session record. A
// browser left running by an earlier process is adopted and closed too.
func (e *Engine) CloseSession(ctx context.Context) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.manager.Handle() == nil {
		if _, err := e.manager.Attach(ctx); err != nil && !errors.Is(err, session.ErrNoEndpoint) {
			debugLog.Warnf("Cannot attach to running browser: %v", err)
		}
	}

	ok, err := e.manager.Close(ctx)
	e.clearRecord()
	if !ok {
		return failure(StatusError, MsgCloseFailed, err)
	}
	return Result{Success: true, Message: MsgClosed, Status: StatusClosed}
}

func (e *Engine) clearRecord() {
	if err := e.store.Clear(); err != nil {
		debugLog.Warnf("Failed to clear session record: %v", err)
	}
}

// scaled multiplies d by scale.
func scaled(d time.Duration, scale float64) time.Duration {
	if scale < 0 {
		scale = 0
	}
	return time.Duration(float64(d) * scale)
}
