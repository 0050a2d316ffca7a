// Package workflow runs the approval flow against an attached browser page.
//
// A Flow is an ordered list of Steps. The Sequencer executes one pass over
// the flow and returns a StepResult; when a step times out because the portal
// bounced back to its landing page, it clicks the home page button and
// restarts the pass, within a recovery budget. The Loop runs passes until the
// work-item gate reports that nothing is pending or too many passes fail in a
// row. ApprovalFlow is the concrete NEW-RC-APPROVAL flow of the portal.
package workflow
