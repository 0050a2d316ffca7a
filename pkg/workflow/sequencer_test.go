package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/entrhq/taskify/pkg/browser"
	"github.com/entrhq/taskify/pkg/browser/browsertest"
	"github.com/entrhq/taskify/pkg/workflow"
)

var (
	menuButton = browser.XPath("//button[@id='menu']")
	openButton = browser.XPath("//button[@id='open']")
	treeToggle = browser.XPath("//span[@class='toggle collapsed']")
	treeOpen   = browser.XPath("//span[@class='toggle expanded']")
	agreeBox   = browser.ID("agree")
	table      = browser.ID("items")
	firstItem  = browser.XPath("//tbody[@id='items_data']//button")
	viewer     = browser.XPath("//iframe[@id='viewer']")
	docBox     = browser.XPath("//input[@type='checkbox' and starts-with(@name, 'approved')]")
	homeButton = browser.ID("home")
	dialog     = browser.ID("dialog")
	dialogX    = browser.XPath("//div[@id='dialog']//a")
)

func linear(name, code string, target browser.Locator) workflow.Step {
	return workflow.Step{Name: name, Code: code, Target: target, Timeout: time.Second}
}

func newSequencer(steps ...workflow.Step) *workflow.Sequencer {
	flow := workflow.Flow{
		Steps:    steps,
		Recovery: []workflow.Affordance{{Locator: homeButton, Text: "back to home"}},
	}
	return workflow.NewSequencer(flow, workflow.WithTimingScale(0))
}

func TestRunOnce_Success(t *testing.T) {
	page := browsertest.NewFakePage("https://portal.example/home")
	menu := page.Add(menuButton)
	open := page.Add(openButton)

	seq := newSequencer(linear("menu", "menu_not_found", menuButton), linear("open", "open_not_found", openButton))
	res := seq.RunOnce(context.Background(), page, 2)

	assert.Equal(t, workflow.Success, res.Outcome)
	assert.False(t, res.Failed())
	assert.Equal(t, 1, menu.Clicks())
	assert.Equal(t, 1, open.Clicks())
}

func TestRunOnce_StepTimeout(t *testing.T) {
	page := browsertest.NewFakePage("https://portal.example/home")
	menu := page.Add(menuButton)

	seq := newSequencer(
		linear("menu", "menu_not_found", menuButton),
		linear("open", "open_not_found", openButton),
	)
	res := seq.RunOnce(context.Background(), page, 2)

	assert.Equal(t, workflow.FatalFailure, res.Outcome)
	assert.Equal(t, "open_not_found", res.Code)
	assert.Equal(t, "open", res.Step)
	assert.Zero(t, res.Recoveries)
	assert.True(t, browser.IsLocateTimeout(res.Err))
	assert.Equal(t, 1, menu.Clicks())
}

func TestRunOnce_LinearStepsAreIdempotent(t *testing.T) {
	page := browsertest.NewFakePage("https://portal.example/home")

	toggle := page.Add(treeToggle)
	toggle.OnClick = func() { page.Add(treeOpen) }

	agree := page.Add(agreeBox)
	agree.Attrs["class"] = "ui-chkbox-box ui-corner-all"
	agree.OnClick = func() { agree.Attrs["class"] = "ui-chkbox-box ui-corner-all ui-state-active" }

	page.AddInFrame(viewer, docBox,
		&browsertest.FakeElement{Name: "approved1", ToggleOnClick: true},
		&browsertest.FakeElement{Name: "approved2", ToggleOnClick: true},
	)

	seq := newSequencer(
		workflow.Step{Name: "tree", Code: "tree_not_found", Target: treeToggle, Expanded: treeOpen, Timeout: time.Second},
		workflow.Step{Name: "agree", Code: "agree_not_found", Target: agreeBox, Done: workflow.ClassContains("ui-state-active"), Timeout: time.Second},
		workflow.Step{Name: "documents", Kind: workflow.Sweep, Code: "docs_not_found", Frame: viewer, Target: docBox, Timeout: time.Second},
	)

	first := seq.RunOnce(context.Background(), page, 2)
	require.Equal(t, workflow.Success, first.Outcome)
	require.Equal(t, 1, toggle.Clicks())
	require.Equal(t, 1, agree.Clicks())

	els, err := page.FindAll(context.Background(), docBox)
	require.NoError(t, err)
	assert.Empty(t, els, "frame elements are not visible from the top level")

	second := seq.RunOnce(context.Background(), page, 2)
	require.Equal(t, workflow.Success, second.Outcome)
	assert.Equal(t, 1, toggle.Clicks(), "no clicks on the second pass")
	assert.Equal(t, 1, agree.Clicks(), "no clicks on the second pass")
	assert.Equal(t, 2, page.FrameVisits())
	assert.False(t, page.InFrame())
}

func TestRunOnce_Gate(t *testing.T) {
	t.Run("empty container is terminal", func(t *testing.T) {
		page := browsertest.NewFakePage("https://portal.example/home")
		page.Add(table)
		after := page.Add(openButton)

		seq := newSequencer(
			workflow.Step{Name: "work item", Kind: workflow.Gate, Code: "table_not_found", Container: table, Target: firstItem, Timeout: time.Second},
			linear("open", "open_not_found", openButton),
		)
		res := seq.RunOnce(context.Background(), page, 2)

		assert.Equal(t, workflow.TerminalSuccess, res.Outcome)
		assert.Equal(t, workflow.CodeCompleted, res.Code)
		assert.Zero(t, after.Clicks(), "later steps never run")
	})

	t.Run("item is clicked", func(t *testing.T) {
		page := browsertest.NewFakePage("https://portal.example/home")
		page.Add(table)
		item := page.Add(firstItem)

		seq := newSequencer(workflow.Step{Name: "work item", Kind: workflow.Gate, Code: "table_not_found", Container: table, Target: firstItem, Timeout: time.Second})
		res := seq.RunOnce(context.Background(), page, 2)

		assert.Equal(t, workflow.Success, res.Outcome)
		assert.Equal(t, 1, item.Clicks())
	})

	t.Run("missing container is not terminal", func(t *testing.T) {
		page := browsertest.NewFakePage("https://portal.example/home")

		seq := newSequencer(workflow.Step{Name: "work item", Kind: workflow.Gate, Code: "table_not_found", Container: table, Target: firstItem, Timeout: time.Second})
		res := seq.RunOnce(context.Background(), page, 2)

		assert.Equal(t, workflow.FatalFailure, res.Outcome)
		assert.Equal(t, "table_not_found", res.Code)
	})
}

func TestRunOnce_RecoveryRestartsFromFirstStep(t *testing.T) {
	page := browsertest.NewFakePage("https://portal.example/error")
	menu := page.Add(menuButton)
	home := page.Add(homeButton, &browsertest.FakeElement{Name: "home", Label: "Back to Home-Page"})
	home.OnClick = func() {
		page.Remove(homeButton)
		page.Add(openButton)
	}

	seq := newSequencer(linear("menu", "menu_not_found", menuButton), linear("open", "open_not_found", openButton))
	res := seq.RunOnce(context.Background(), page, 2)

	assert.Equal(t, workflow.Success, res.Outcome)
	assert.Equal(t, 1, res.Recoveries)
	assert.Equal(t, 2, menu.Clicks(), "the pass restarted from the first step")
	assert.Equal(t, 1, home.Clicks())
}

func TestRunOnce_AffordanceTextMustMatch(t *testing.T) {
	page := browsertest.NewFakePage("https://portal.example/home")
	other := page.Add(homeButton, &browsertest.FakeElement{Name: "home", Label: "Logout"})

	seq := newSequencer(linear("open", "open_not_found", openButton))
	res := seq.RunOnce(context.Background(), page, 2)

	assert.Equal(t, "open_not_found", res.Code)
	assert.Zero(t, other.Clicks())
}

func TestRunOnce_BoundedRecovery(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.IntRange(0, 6).Draw(t, "affordanceAppearances")
		budget := rapid.IntRange(0, 4).Draw(t, "budget")

		page := browsertest.NewFakePage("https://portal.example/home")
		menu := page.Add(menuButton)
		if k > 0 {
			remaining := k
			home := page.Add(homeButton, &browsertest.FakeElement{Name: "home", Label: "Back to Home-Page"})
			home.OnClick = func() {
				remaining--
				if remaining == 0 {
					page.Remove(homeButton)
				}
			}
		}

		seq := newSequencer(linear("menu", "menu_not_found", menuButton), linear("open", "open_not_found", openButton))
		res := seq.RunOnce(context.Background(), page, budget)

		restarts := k
		if budget < k {
			restarts = budget
		}
		if res.Recoveries != restarts {
			t.Fatalf("recoveries = %d, want %d (k=%d budget=%d)", res.Recoveries, restarts, k, budget)
		}
		if got := menu.Clicks(); got != restarts+1 {
			t.Fatalf("first step ran %d times, want %d", got, restarts+1)
		}
		if res.Outcome != workflow.FatalFailure {
			t.Fatalf("outcome = %s, want fatal failure", res.Outcome)
		}
		wantCode := "open_not_found"
		if k > budget {
			wantCode = workflow.CodeRecoveryExhausted
			if res.Message != workflow.ReasonRecoveryExhausted {
				t.Fatalf("message = %q", res.Message)
			}
		}
		if res.Code != wantCode {
			t.Fatalf("code = %q, want %q (k=%d budget=%d)", res.Code, wantCode, k, budget)
		}
	})
}

func TestRunOnce_Unreachable(t *testing.T) {
	page := browsertest.NewFakePage("https://portal.example/home")
	page.Add(menuButton)
	page.SetUnreachable(true)

	res := newSequencer(linear("menu", "menu_not_found", menuButton)).RunOnce(context.Background(), page, 2)

	assert.Equal(t, workflow.FatalFailure, res.Outcome)
	assert.Equal(t, workflow.CodeBrowserNotOpen, res.Code)
	assert.True(t, browser.IsUnreachable(res.Err))
}

func TestRunOnce_Canceled(t *testing.T) {
	page := browsertest.NewFakePage("https://portal.example/home")
	page.Add(menuButton)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newSequencer(linear("menu", "menu_not_found", menuButton)).RunOnce(ctx, page, 2)
	assert.Equal(t, workflow.CodeCanceled, res.Code)
}

func TestRunOnce_ActFailureIsRecoverable(t *testing.T) {
	page := browsertest.NewFakePage("https://portal.example/home")
	page.Add(openButton, &browsertest.FakeElement{
		Name:           "open",
		ClickErr:       errors.New("element is covered"),
		ScriptClickErr: errors.New("element detached"),
	})

	step := linear("open", "open_not_found", openButton)
	step.ActCode = "open_click_error"
	res := newSequencer(step).RunOnce(context.Background(), page, 2)

	assert.Equal(t, workflow.RecoverableFailure, res.Outcome)
	assert.Equal(t, "open_click_error", res.Code)
	assert.Contains(t, res.Message, "element is covered")
}

func TestRunOnce_Verify(t *testing.T) {
	page := browsertest.NewFakePage("https://portal.example/home")
	page.Add(openButton)

	step := linear("open", "open_not_found", openButton)
	step.Verify = func(ctx context.Context, a *browser.Actor) (bool, error) {
		return a.Present(ctx, dialog)
	}
	res := newSequencer(step).RunOnce(context.Background(), page, 2)

	assert.Equal(t, workflow.RecoverableFailure, res.Outcome)
	assert.Equal(t, workflow.CodeError, res.Code)
	assert.Equal(t, "open", res.Step)
}

func TestRunOnce_Actions(t *testing.T) {
	page := browsertest.NewFakePage("https://portal.example/home")
	el := page.Add(openButton)

	step := linear("open", "open_not_found", openButton)
	step.Action = workflow.ScriptClick
	step.HideOverlays = true
	res := newSequencer(step).RunOnce(context.Background(), page, 2)

	require.Equal(t, workflow.Success, res.Outcome)
	assert.Equal(t, 1, el.ScriptClicks())
	assert.Zero(t, el.NativeClicks())
	assert.Contains(t, page.Evals(), browser.HideOverlaysScript)
}

func TestRunOnce_Anchor(t *testing.T) {
	page := browsertest.NewFakePage("https://portal.example/home")
	page.Add(dialogX)

	step := linear("close dialog", "dialog_not_found", dialogX)
	step.Anchor = dialog
	res := newSequencer(step).RunOnce(context.Background(), page, 2)

	assert.Equal(t, "dialog_not_found", res.Code, "the target alone is not enough without its anchor")
}

func TestRunOnce_Fallbacks(t *testing.T) {
	page := browsertest.NewFakePage("https://portal.example/home")
	alt := page.Add(dialogX)

	step := linear("close dialog", "dialog_not_found", openButton)
	step.Fallbacks = []browser.Locator{menuButton, dialogX}
	res := newSequencer(step).RunOnce(context.Background(), page, 2)

	require.Equal(t, workflow.Success, res.Outcome)
	assert.Equal(t, 1, alt.Clicks())
}

func TestRunOnce_Optional(t *testing.T) {
	step := workflow.Step{Name: "alert", Kind: workflow.Optional, Anchor: dialog, Target: dialogX, Timeout: time.Second}

	t.Run("absent", func(t *testing.T) {
		page := browsertest.NewFakePage("https://portal.example/home")
		next := page.Add(openButton)

		res := newSequencer(step, linear("open", "open_not_found", openButton)).RunOnce(context.Background(), page, 2)
		assert.Equal(t, workflow.Success, res.Outcome)
		assert.Equal(t, 1, next.Clicks())
	})

	t.Run("present", func(t *testing.T) {
		page := browsertest.NewFakePage("https://portal.example/home")
		page.Add(dialog)
		x := page.Add(dialogX)

		res := newSequencer(step).RunOnce(context.Background(), page, 2)
		assert.Equal(t, workflow.Success, res.Outcome)
		assert.Equal(t, 1, x.Clicks())
	})

	t.Run("close fails", func(t *testing.T) {
		page := browsertest.NewFakePage("https://portal.example/home")
		page.Add(dialog)
		page.Add(dialogX, &browsertest.FakeElement{Name: "x", ClickErr: errors.New("covered"), ScriptClickErr: errors.New("covered")})

		res := newSequencer(step).RunOnce(context.Background(), page, 2)
		assert.Equal(t, workflow.Success, res.Outcome, "optional steps never fail the pass")
	})
}
