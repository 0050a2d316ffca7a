package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/taskify/pkg/browser"
	"github.com/entrhq/taskify/pkg/browser/browsertest"
	"github.com/entrhq/taskify/pkg/workflow"
)

// portal is a fake of the approval screens with one pending application.
type portal struct {
	page       *browsertest.FakePage
	dealer     *browsertest.FakeElement
	newReg     *browsertest.FakeElement
	approve    *browsertest.FakeElement
	verify     *browsertest.FakeElement
	viewDocs   *browsertest.FakeElement
	documents  []*browsertest.FakeElement
	nextSeat   *browsertest.FakeElement
	yes        *browsertest.FakeElement
	modalClose *browsertest.FakeElement
}

func newPortal() *portal {
	page := browsertest.NewFakePage("https://vahan.parivahan.gov.in/vahan/vahan/home.xhtml")
	p := &portal{page: page}

	page.Add(workflow.DashboardButton)

	p.dealer = page.Add(workflow.DealerRegistrationToggle)
	p.dealer.OnClick = func() { page.Add(workflow.DealerRegistrationExpanded) }
	p.newReg = page.Add(workflow.NewRegistrationToggle)
	p.newReg.OnClick = func() { page.Add(workflow.NewRegistrationExpanded) }
	page.Add(workflow.ViewDetailLink)

	page.Add(workflow.WorkTable)
	p.approve = page.Add(workflow.ApproveButton)

	page.Add(workflow.VerifyCheck)
	p.verify = page.Add(workflow.VerifyCheckBox)
	p.verify.Attrs["class"] = "ui-chkbox-box ui-widget ui-corner-all ui-state-default"
	p.verify.OnClick = func() { p.verify.Attrs["class"] += " ui-state-active" }

	page.Add(workflow.DocumentsTab)
	p.viewDocs = page.Add(workflow.ViewDocumentsButton)
	page.Add(workflow.DocumentsModalTitle)
	p.modalClose = page.Add(workflow.DocumentsModalClose)
	page.Add(workflow.ConfirmationClose)

	p.documents = []*browsertest.FakeElement{
		{Name: "approvedStatus", ToggleOnClick: true},
		{Name: "approvedStatus2", ToggleOnClick: true},
		{Name: "approvedStatus3", IsDisabled: true},
	}
	page.AddInFrame(workflow.DocumentsFrame, workflow.ApprovedStatusCheckbox, p.documents...)

	page.Add(workflow.SaveOptionsButton)
	page.Add(workflow.FileMovementLink)
	page.Add(workflow.FileMovementModal)
	page.Add(workflow.NextSeatLabel)
	p.nextSeat = page.Add(workflow.NextSeatRadio)
	page.Add(workflow.SaveButton)
	p.yes = page.Add(workflow.YesButton)
	return p
}

func approvalSequencer() *workflow.Sequencer {
	return workflow.NewSequencer(workflow.ApprovalFlow(), workflow.WithTimingScale(0))
}

func TestApprovalFlow_OnePass(t *testing.T) {
	p := newPortal()

	res := approvalSequencer().RunOnce(context.Background(), p.page, workflow.DefaultRecoveryBudget)

	require.Equal(t, workflow.Success, res.Outcome, res.String())
	assert.Equal(t, 1, p.dealer.Clicks())
	assert.Equal(t, 1, p.newReg.Clicks())
	assert.Equal(t, 1, p.approve.Clicks())
	assert.Equal(t, 1, p.verify.Clicks())
	assert.Equal(t, 1, p.viewDocs.NativeClicks())
	assert.Equal(t, 1, p.viewDocs.ScriptClicks(), "the second documents click is a script click")
	assert.Equal(t, 2, p.modalClose.Clicks())
	assert.True(t, p.documents[0].IsChecked)
	assert.True(t, p.documents[1].IsChecked)
	assert.Zero(t, p.documents[2].Clicks())
	assert.Equal(t, 1, p.nextSeat.Clicks())
	assert.Equal(t, 1, p.yes.Clicks())
	assert.False(t, p.page.InFrame())

	hides := 0
	for _, script := range p.page.Evals() {
		if script == browser.HideOverlaysScript {
			hides++
		}
	}
	assert.Equal(t, 3, hides, "overlays are hidden before both confirmation closes and the Yes click")
}

func TestApprovalFlow_SecondPassSkipsSettledState(t *testing.T) {
	p := newPortal()
	seq := approvalSequencer()

	require.Equal(t, workflow.Success, seq.RunOnce(context.Background(), p.page, 2).Outcome)
	p.nextSeat.Attrs["class"] = "ui-radiobutton-box ui-state-active"
	require.Equal(t, workflow.Success, seq.RunOnce(context.Background(), p.page, 2).Outcome)

	assert.Equal(t, 1, p.dealer.Clicks())
	assert.Equal(t, 1, p.newReg.Clicks())
	assert.Equal(t, 1, p.verify.Clicks())
	assert.Equal(t, 1, p.nextSeat.Clicks())
	assert.Equal(t, 1, p.documents[0].Clicks())
	assert.Equal(t, 1, p.documents[1].Clicks())
}

func TestApprovalFlow_NoPendingApplications(t *testing.T) {
	p := newPortal()
	p.page.Remove(workflow.ApproveButton)

	res := approvalSequencer().RunOnce(context.Background(), p.page, 2)

	assert.Equal(t, workflow.TerminalSuccess, res.Outcome)
	assert.Zero(t, p.verify.Clicks())
}

func TestApprovalFlow_TableMissing(t *testing.T) {
	p := newPortal()
	p.page.Remove(workflow.WorkTable)

	res := approvalSequencer().RunOnce(context.Background(), p.page, 2)

	assert.Equal(t, workflow.FatalFailure, res.Outcome)
	assert.Equal(t, workflow.CodeTableNotFound, res.Code)
}

func TestApprovalFlow_StepCodes(t *testing.T) {
	tests := []struct {
		remove browser.Locator
		code   string
	}{
		{workflow.DashboardButton, workflow.CodeButtonNotFound},
		{workflow.ViewDetailLink, workflow.CodeElementNotFound},
		{workflow.VerifyCheck, workflow.CodeCheckboxNotFound},
		{workflow.DocumentsTab, workflow.CodeTabNotFound},
		{workflow.DocumentsModalTitle, workflow.CodeModalCloseNotFound},
		{workflow.ConfirmationClose, workflow.CodePopupCloseNotFound},
		{workflow.DocumentsFrame, workflow.CodeCheckboxesNotFound},
		{workflow.SaveOptionsButton, workflow.CodeSaveOptionsNotFound},
		{workflow.FileMovementLink, workflow.CodeFileMovementNotFound},
		{workflow.NextSeatLabel, workflow.CodeElementNotFound},
		{workflow.YesButton, workflow.CodeElementNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.remove.String(), func(t *testing.T) {
			p := newPortal()
			p.page.Remove(tt.remove)

			res := approvalSequencer().RunOnce(context.Background(), p.page, 2)
			assert.Equal(t, workflow.FatalFailure, res.Outcome)
			assert.Equal(t, tt.code, res.Code)
		})
	}
}

func TestApprovalFlow_OptionalSteps(t *testing.T) {
	p := newPortal()
	p.page.Remove(workflow.FileMovementModal)
	p.page.Add(workflow.AlertDialog)
	alertClose := p.page.Add(workflow.AlertClose)

	res := approvalSequencer().RunOnce(context.Background(), p.page, 2)

	require.Equal(t, workflow.Success, res.Outcome)
	assert.Equal(t, 1, alertClose.Clicks())
}

func TestApprovalFlow_Fallbacks(t *testing.T) {
	p := newPortal()
	p.page.Remove(workflow.SaveButton)
	p.page.Remove(workflow.YesButton)
	save := p.page.Add(workflow.SaveButtonByID)
	yes := p.page.Add(workflow.YesButtonByText)

	res := approvalSequencer().RunOnce(context.Background(), p.page, 2)

	require.Equal(t, workflow.Success, res.Outcome)
	assert.Equal(t, 1, save.Clicks())
	assert.Equal(t, 1, yes.Clicks())
}

func TestApprovalFlow_RecoversFromErrorPage(t *testing.T) {
	p := newPortal()
	p.page.Remove(workflow.DashboardButton)
	home := p.page.Add(workflow.HomeButton, &browsertest.FakeElement{Name: "home", Label: "Back to Home-Page"})
	home.OnClick = func() {
		p.page.Remove(workflow.HomeButton)
		p.page.Add(workflow.DashboardButton)
	}

	res := approvalSequencer().RunOnce(context.Background(), p.page, 2)

	require.Equal(t, workflow.Success, res.Outcome)
	assert.Equal(t, 1, res.Recoveries)
}

func TestApprovalFlow_Shape(t *testing.T) {
	flow := workflow.ApprovalFlow()
	require.NotEmpty(t, flow.Steps)
	assert.Len(t, flow.Recovery, 2)

	names := map[string]bool{}
	for _, step := range flow.Steps {
		assert.False(t, names[step.Name], "duplicate step %q", step.Name)
		names[step.Name] = true
		assert.False(t, step.Target.IsZero(), step.Name)
		assert.Positive(t, step.Timeout, step.Name)
		if step.Kind != workflow.Optional {
			assert.NotEmpty(t, step.Code, step.Name)
			assert.NotEmpty(t, step.Message, step.Name)
		}
	}
	assert.Equal(t, workflow.Gate, flow.Steps[5].Kind)
}
