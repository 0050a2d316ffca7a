package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/entrhq/taskify/pkg/browser"
	"github.com/entrhq/taskify/pkg/logging"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("session")
	if err != nil {
		debugLog.Warnf("Failed to initialize session logger, using stderr fallback: %v", err)
	}
}

// Handle is the attached browser endpoint. The Manager owns it; other
// components borrow it for the duration of one operation.
type Handle struct {
	Page          browser.Page
	Address       string
	Authenticated bool

	// Reused is true when the handle attached to an endpoint that was
	// already running
	Reused bool
}

// Manager discovers, attaches to and creates the browser endpoint. It holds
// at most one Handle per process.
type Manager struct {
	mu         sync.Mutex
	address    string
	prober     Prober
	connector  browser.Connector
	strategies []Strategy
	handle     *Handle
}

// NewManager creates a manager that attaches to address (the well-known
// control port) and creates endpoints with strategies, in order.
func NewManager(address string, prober Prober, connector browser.Connector, strategies ...Strategy) *Manager {
	return &Manager{
		address:    address,
		prober:     prober,
		connector:  connector,
		strategies: strategies,
	}
}

// Handle returns the current handle, or nil.
func (m *Manager) Handle() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// EndpointListening probes the control port without attaching.
func (m *Manager) EndpointListening(ctx context.Context) bool {
	return m.prober.Listening(ctx)
}

// Attach attaches to an endpoint already listening on the control port and
// adopts it as the current handle. It never creates an endpoint.
func (m *Manager) Attach(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attachLocked(ctx)
}

func (m *Manager) attachLocked(ctx context.Context) (*Handle, error) {
	if !m.prober.Listening(ctx) {
		debugLog.Debugf("No endpoint listening at %s", m.address)
		return nil, ErrNoEndpoint
	}

	debugLog.Infof("Endpoint is listening at %s, attaching", m.address)
	page, err := m.connect(ctx, m.address)
	if err != nil {
		debugLog.Warnf("Endpoint is listening but attach failed: %v", err)
		return nil, err
	}

	m.handle = &Handle{Page: page, Address: m.address, Reused: true}
	debugLog.Infof("Attached to existing endpoint")
	return m.handle, nil
}

// connect attaches to address and verifies liveness with a location read.
func (m *Manager) connect(ctx context.Context, address string) (browser.Page, error) {
	page, err := m.connector.Connect(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", address, err)
	}
	if _, err := page.Location(ctx); err != nil {
		_ = page.Detach()
		return nil, fmt.Errorf("endpoint at %s is not responding: %w", address, err)
	}
	return page, nil
}

// AttachOrCreate returns a live handle: the current one if it still answers,
// else an attached existing endpoint, else a newly created one. Creation
// strategies run in order and the first one yielding a live endpoint wins;
// later strategies are not invoked. When all fail the error is a
// *CreationError.
func (m *Manager) AttachOrCreate(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		if _, err := m.handle.Page.Location(ctx); err == nil {
			return m.handle, nil
		}
		debugLog.Warnf("Current handle is not responding, dropping it")
		m.dropLocked()
	}

	h, err := m.attachLocked(ctx)
	if err == nil {
		return h, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	return m.createLocked(ctx)
}

func (m *Manager) createLocked(ctx context.Context) (*Handle, error) {
	creationErr := &CreationError{}
	for i, strategy := range m.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		debugLog.Infof("Creation attempt %d/%d: %s", i+1, len(m.strategies), strategy.Name())

		address, err := strategy.Launch(ctx)
		if err == nil {
			if address == "" {
				address = m.address
			}
			var page browser.Page
			page, err = m.connect(ctx, address)
			if err == nil {
				m.handle = &Handle{Page: page, Address: m.address}
				debugLog.Infof("Created endpoint with strategy %s", strategy.Name())
				return m.handle, nil
			}
		}

		debugLog.Warnf("Creation strategy %s failed: %v", strategy.Name(), err)
		creationErr.Attempts = append(creationErr.Attempts, Attempt{Strategy: strategy.Name(), Err: err})
	}

	debugLog.Errorf("All creation strategies failed")
	return nil, creationErr
}

// Drop forgets the current handle after detaching from it. The endpoint is
// left running.
func (m *Manager) Drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked()
}

func (m *Manager) dropLocked() {
	if m.handle == nil {
		return
	}
	if err := m.handle.Page.Detach(); err != nil {
		debugLog.Debugf("Detach failed: %v", err)
	}
	m.handle = nil
}

// Close terminates the endpoint of the current handle and forgets it. It
// reports false when termination failed; the handle is forgotten either way.
// Closing without a handle is a no-op that reports true.
func (m *Manager) Close(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		debugLog.Infof("No browser instance to close")
		return true, nil
	}

	page := m.handle.Page
	m.handle = nil
	if err := page.Shutdown(ctx); err != nil {
		if browser.IsUnreachable(err) {
			// Already gone
			return true, nil
		}
		debugLog.Errorf("Error closing browser: %v", err)
		return false, err
	}
	debugLog.Infof("Browser closed")
	return true, nil
}

// IsCreationError reports whether err is a *CreationError and returns it.
func IsCreationError(err error) (*CreationError, bool) {
	var ce *CreationError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
