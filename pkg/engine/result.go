package engine

// Status codes surfaced by the engine in addition to the workflow codes.
const (
	StatusAlreadyLoggedIn = "already_logged_in"
	StatusLoginSuccess    = "login_success"
	StatusLoginTimeout    = "login_timeout"
	StatusConnectionError = "connection_error"
	StatusLoggedIn        = "logged_in"
	StatusClosed          = "closed"
	StatusError           = "error"
)

// Operator-facing messages.
const (
	MsgAlreadyLoggedIn   = "Browser already open and logged in. Ready for automation!"
	MsgLoginAcknowledged = "Login acknowledged successfully!"
	MsgStartedAndLogin   = "Browser started and login acknowledged successfully!"
	MsgLoginTimeout      = "Login timeout - please try again and login within 5 minutes"
	MsgBrowserClosed     = "Browser was closed before login completed. Click 'Start' to open it again."
	MsgConnectionFailed  = "Failed to connect to Vahan website. Please check your internet connection and try again. See logs for details."
	MsgClosed            = "Browser closed successfully"
	MsgCloseFailed       = "Failed to close browser"
)

// ConnectionRemediation is shown when the portal could not be loaded.
const ConnectionRemediation = `Unable to connect to Vahan website.

Possible causes:
- Internet connection issues
- Firewall/antivirus blocking connection
- Website temporarily unavailable

Solutions:
1. Check your internet connection
2. Try opening https://vahan.parivahan.gov.in manually in Chrome
3. Temporarily disable firewall/antivirus and retry`

// Result is the structured outcome of an engine operation. Fields that do
// not apply to an operation are left empty.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`

	// ReusedSession is set by StartSession
	ReusedSession *bool `json:"reused_session,omitempty"`

	// ProcessedCount is set by RunWorkflow
	ProcessedCount *int   `json:"processed_count,omitempty"`
	RunID          string `json:"run_id,omitempty"`

	// SessionOpen, Authenticated and CurrentLocation are set by CheckStatus
	SessionOpen     *bool  `json:"browser_open,omitempty"`
	Authenticated   *bool  `json:"logged_in,omitempty"`
	CurrentLocation string `json:"current_url,omitempty"`

	Error       string `json:"error,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

func failure(status, message string, err error) Result {
	r := Result{Success: false, Status: status, Message: message}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func boolPtr(v bool) *bool {
	return &v
}

func intPtr(v int) *int {
	return &v
}
