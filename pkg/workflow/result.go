package workflow

import "fmt"

// Outcome classifies the result of one sequencer pass.
type Outcome int

const (
	// Success means one work item was processed
	Success Outcome = iota
	// RecoverableFailure means a step failed but a later pass may succeed
	RecoverableFailure
	// TerminalSuccess means no work remains
	TerminalSuccess
	// FatalFailure means a step could not find its element
	FatalFailure
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RecoverableFailure:
		return "recoverable_failure"
	case TerminalSuccess:
		return "terminal_success"
	case FatalFailure:
		return "fatal_failure"
	default:
		return "unknown"
	}
}

// Status codes surfaced to the caller.
const (
	CodeCompleted         = "completed"
	CodeBrowserNotOpen    = "browser_not_open"
	CodeNotLoggedIn       = "not_logged_in"
	CodeRecoveryExhausted = "recovery_exhausted"
	CodeCanceled          = "canceled"
	CodeError             = "error"
)

// ReasonRecoveryExhausted is the reason of a pass that kept timing out after
// every recovery was spent.
const ReasonRecoveryExhausted = "step timeout after recovery exhausted"

// StepResult is the outcome of one sequencer pass.
type StepResult struct {
	Outcome Outcome

	// Code is the machine-readable status of a failure
	Code string

	// Message is the operator-facing text of a failure
	Message string

	// Step names the step that failed
	Step string

	// Recoveries is how many recovery clicks the pass spent
	Recoveries int

	Err error
}

// Failed reports whether the pass failed.
func (r StepResult) Failed() bool {
	return r.Outcome == RecoverableFailure || r.Outcome == FatalFailure
}

func (r StepResult) String() string {
	if !r.Failed() {
		return r.Outcome.String()
	}
	return fmt.Sprintf("%s at %q: %s", r.Outcome, r.Step, r.Code)
}

func succeeded(recoveries int) StepResult {
	return StepResult{Outcome: Success, Recoveries: recoveries}
}

func terminal(recoveries int) StepResult {
	return StepResult{Outcome: TerminalSuccess, Code: CodeCompleted, Recoveries: recoveries}
}

func fatal(step Step, err error) StepResult {
	return StepResult{Outcome: FatalFailure, Code: step.Code, Message: step.Message, Step: step.Name, Err: err}
}

func recoverable(step Step, message string, err error) StepResult {
	return StepResult{Outcome: RecoverableFailure, Code: step.actCode(), Message: message, Step: step.Name, Err: err}
}
