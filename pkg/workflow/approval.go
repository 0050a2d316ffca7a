package workflow

import (
	"time"

	"github.com/entrhq/taskify/pkg/browser"
)

// Status codes of the approval flow steps.
const (
	CodeButtonNotFound        = "button_not_found"
	CodeElementNotFound       = "element_not_found"
	CodeTableNotFound         = "table_not_found"
	CodeCheckboxNotFound      = "checkbox_not_found"
	CodeTabNotFound           = "tab_not_found"
	CodeModifyButtonNotFound  = "modify_button_not_found"
	CodeModalCloseNotFound    = "modal_close_not_found"
	CodePopupCloseNotFound    = "popup_close_not_found"
	CodeModifyButton2NotFound = "modify_button_2_not_found"
	CodeModifyButton2Click    = "modify_button_2_click_error"
	CodeCheckboxesNotFound    = "checkboxes_not_found"
	CodeCheckboxProcessing    = "checkbox_processing_error"
	CodeModalClose2NotFound   = "modal_close_2_not_found"
	CodeSaveOptionsNotFound   = "save_options_not_found"
	CodeFileMovementNotFound  = "file_movement_not_found"
)

// Portal elements used by the approval flow.
var (
	DashboardButton = browser.XPath("//button[@title='Dashboard Pendency']").Named("Dashboard Pendency button")

	AlertDialog = browser.XPath("//div[@id='primefacesmessagedlg' and contains(@class, 'ui-message-dialog')]").Named("alert dialog")
	AlertClose  = browser.XPath("//div[@id='primefacesmessagedlg']//a[contains(@class, 'ui-dialog-titlebar-close')]").Named("alert close button")

	DealerRegistrationToggle   = browser.XPath("//td[.//label[contains(., 'Dealer Registration')]]//span[@class='ui-treetable-toggler ui-icon ui-icon-triangle-1-e ui-c']").Named("Dealer Registration toggle")
	DealerRegistrationExpanded = browser.XPath("//td[.//label[contains(., 'Dealer Registration')]]//span[contains(@class, 'ui-icon-triangle-1-s')]").Named("Dealer Registration expanded")

	NewRegistrationToggle   = browser.XPath("//label[contains(., 'New Registration (Dealer Side)')]/preceding-sibling::span[@class='ui-treetable-toggler ui-icon ui-icon-triangle-1-e ui-c']").Named("New Registration toggle")
	NewRegistrationExpanded = browser.XPath("//label[contains(., 'New Registration (Dealer Side)')]/preceding-sibling::span[contains(@class, 'ui-icon-triangle-1-s')]").Named("New Registration expanded")

	ViewDetailLink = browser.XPath("//tr[.//label[contains(., 'NEW-RC-APPROVAL')]]//td[@role='gridcell']//a[contains(@class, 'ui-commandlink')]").Named("NEW-RC-APPROVAL view detail link")

	WorkTable     = browser.ID("workDetails").Named("pending applications table")
	ApproveButton = browser.XPath("//tbody[@id='workDetails_data']//tr[@data-ri='0']//button[contains(@id, 'workDetails:0:')]").Named("first approve button")

	VerifyCheck    = browser.ID("workbench_tabview:verifyCheckValue").Named("verification checkbox")
	VerifyCheckBox = browser.XPath("//*[@id='workbench_tabview:verifyCheckValue']//*[contains(@class, 'ui-chkbox-box')]").Named("verification checkbox box")

	DocumentsTab = browser.XPath("//ul[contains(@class, 'ui-tabs-nav')]//li[@data-index='5']//a[contains(text(), 'Documents Uploaded')]").Named("Documents Uploaded tab")

	ViewDocumentsButton = browser.ID("workbench_tabview:idViewDoc").Named("Modify/View Documents button")

	DocumentsModalTitle    = browser.ID("workbench_tabview:viewUploadedDms_title").Named("documents modal title")
	DocumentsModalClose    = browser.XPath("//div[@id='workbench_tabview:viewUploadedDms']//a[contains(@class, 'ui-dialog-titlebar-close')]").Named("documents modal close button")
	AnyDialogClose         = browser.CSS("a.ui-dialog-titlebar-close").Named("dialog close button")
	LabelledDialogClose    = browser.XPath("//a[@aria-label='Close' and contains(@class, 'ui-dialog-titlebar-close')]").Named("labelled dialog close button")
	ConfirmationClose      = browser.XPath("//div[contains(@class, 'ui-dialog-titlebar')]//span[contains(text(), 'Confirmation')]/following-sibling::a[contains(@class, 'ui-dialog-titlebar-close')]").Named("confirmation close button")
	VisibleDialogClose     = browser.XPath("//div[contains(@class, 'ui-dialog') and contains(@style, 'display: block')]//a[contains(@class, 'ui-dialog-titlebar-close')]").Named("visible dialog close button")
	DocumentsFrame         = browser.XPath("//iframe[contains(@src, 'dms-app/dealer-search-within-dms')]").Named("documents frame")
	ApprovedStatusCheckbox = browser.XPath("//input[@type='checkbox' and starts-with(@name, 'approvedStatus')]").Named("approved status checkbox")

	SaveOptionsButton = browser.XPath("//button[.//span[contains(text(), 'Save-Options')]]").Named("Save-Options button")
	FileMovementLink  = browser.XPath("//a[.//span[contains(text(), 'File Movement')]]").Named("File Movement option")
	FileMovementModal = browser.XPath("//div[contains(@class, 'ui-dialog') and contains(@style, 'display: block')] | //div[@id='panelAppDisapp' and contains(@style, 'display: block')]").Named("File Movement modal")

	NextSeatLabel = browser.XPath("//label[contains(text(), 'Proceed to Next Seat')]").Named("Proceed to Next Seat label")
	NextSeatRadio = browser.XPath("//div[contains(@class, 'ui-radiobutton')][.//input[@id = //label[contains(text(), 'Proceed to Next Seat')]/@for]]//div[contains(@class, 'ui-radiobutton-box')]").Named("Proceed to Next Seat radio")

	SaveButton          = browser.XPath("//div[contains(@class, 'ui-dialog') and contains(@style, 'display: block')]//a[contains(@class, 'ui-commandlink') and contains(text(), 'Save')]").Named("Save button")
	SaveButtonByID      = browser.ID("app_disapp_form:j_idt1949").Named("Save button by id")
	SaveButtonAnywhere  = browser.XPath("//a[contains(@class, 'ui-commandlink') and contains(text(), 'Save')]").Named("Save link")
	SaveButtonByConfirm = browser.XPath("//a[contains(@class, 'ui-commandlink') and contains(@data-pfconfirmcommand, 'PF')]").Named("Save link by confirm command")

	YesButton       = browser.XPath("//button[contains(@class, 'ui-confirmdialog-yes')]").Named("Yes button")
	YesButtonByText = browser.XPath("//button[contains(@class, 'ui-button')][.//span[contains(text(), 'Yes')]]").Named("Yes button by text")
	YesButtonByID   = browser.XPath("//button[contains(@id, 'app_disapp_form:j_idt') and contains(@class, 'ui-confirmdialog-yes')]").Named("Yes button by id")

	HomeButton     = browser.ID("j_idt45").Named("Back to Home-Page button")
	HomeButtonText = browser.XPath("//button[contains(translate(normalize-space(.), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'back to home')] | //a[contains(translate(normalize-space(.), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'back to home')] | //input[contains(translate(@value, 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'back to home')]").Named("back to home page link")
)

// ApprovalFlow returns the NEW-RC-APPROVAL processing flow of the portal.
// One successful pass approves the first pending application.
func ApprovalFlow() Flow {
	closeDocumentsModal := func(name, code, message string) Step {
		return Step{
			Name:      name,
			Code:      code,
			Message:   message,
			Anchor:    DocumentsModalTitle,
			Target:    DocumentsModalClose,
			Fallbacks: []browser.Locator{AnyDialogClose, LabelledDialogClose},
			Timeout:   10 * time.Second,
			Settle:    2 * time.Second,
		}
	}
	closeConfirmation := func(name, message string) Step {
		return Step{
			Name:         name,
			Code:         CodePopupCloseNotFound,
			Message:      message,
			Target:       ConfirmationClose,
			Fallbacks:    []browser.Locator{VisibleDialogClose},
			HideOverlays: true,
			Timeout:      15 * time.Second,
			Delay:        3 * time.Second,
			Settle:       2 * time.Second,
		}
	}

	return Flow{
		Steps: []Step{
			{
				Name:    "Dashboard Pendency",
				Code:    CodeButtonNotFound,
				Message: "Dashboard Pendency button not found. Please ensure you are logged in correctly. If you see a login page, please login and try again.",
				Target:  DashboardButton,
				Timeout: 10 * time.Second,
				Settle:  3 * time.Second,
			},
			{
				Name:         "Alert popup",
				Kind:         Optional,
				Anchor:       AlertDialog,
				Target:       AlertClose,
				HideOverlays: true,
				Timeout:      2 * time.Second,
				Settle:       2 * time.Second,
			},
			{
				Name:     "Dealer Registration",
				Code:     CodeElementNotFound,
				Message:  "Dealer Registration element not found. The page may not have loaded correctly.",
				Target:   DealerRegistrationToggle,
				Expanded: DealerRegistrationExpanded,
				Timeout:  10 * time.Second,
				Settle:   3 * time.Second,
			},
			{
				Name:     "New Registration (Dealer Side)",
				Code:     CodeElementNotFound,
				Message:  "New Registration (Dealer Side) element not found. The page may not have loaded correctly.",
				Target:   NewRegistrationToggle,
				Expanded: NewRegistrationExpanded,
				Timeout:  15 * time.Second,
				Settle:   2 * time.Second,
			},
			{
				Name:    "NEW-RC-APPROVAL view detail",
				Code:    CodeElementNotFound,
				Message: "View Detail link beside NEW-RC-APPROVAL not found. The page may not have loaded correctly.",
				Target:  ViewDetailLink,
				Timeout: 10 * time.Second,
				Settle:  3 * time.Second,
			},
			{
				Name:      "First approve button",
				Kind:      Gate,
				Code:      CodeTableNotFound,
				Message:   "Pending Applications table or Approve button not found. The page may not have loaded correctly.",
				Container: WorkTable,
				Target:    ApproveButton,
				Timeout:   15 * time.Second,
				Settle:    3 * time.Second,
			},
			{
				Name:    "Verification checkbox",
				Code:    CodeCheckboxNotFound,
				Message: "Verification checkbox not found. The approval page may not have loaded correctly.",
				Anchor:  VerifyCheck,
				Target:  VerifyCheckBox,
				Done:    ClassContains("ui-state-active"),
				Timeout: 15 * time.Second,
				Settle:  2 * time.Second,
			},
			{
				Name:    "Documents Uploaded tab",
				Code:    CodeTabNotFound,
				Message: "Documents Uploaded tab not found. The page may not have loaded correctly.",
				Target:  DocumentsTab,
				Timeout: 10 * time.Second,
				Settle:  3 * time.Second,
			},
			{
				Name:    "Modify/View Documents",
				Code:    CodeModifyButtonNotFound,
				Message: "Modify/View Documents button not found. The Documents Uploaded tab content may not have loaded correctly.",
				Target:  ViewDocumentsButton,
				Timeout: 15 * time.Second,
				Settle:  3 * time.Second,
			},
			closeDocumentsModal("Close documents modal", CodeModalCloseNotFound, "Modal close button not found."),
			closeConfirmation("Close confirmation popup", "Could not close success message popup."),
			{
				Name:    "Modify/View Documents again",
				Code:    CodeModifyButton2NotFound,
				ActCode: CodeModifyButton2Click,
				Message: "Modify/View Documents button not found on second attempt.",
				Target:  ViewDocumentsButton,
				Action:  ScriptClick,
				Timeout: 15 * time.Second,
				Settle:  3 * time.Second,
			},
			{
				Name:    "Approve uploaded documents",
				Kind:    Sweep,
				Code:    CodeCheckboxesNotFound,
				ActCode: CodeCheckboxProcessing,
				Message: "ApprovedStatus checkboxes not found. The page may not have loaded completely, or the document viewer is still initializing.",
				Frame:   DocumentsFrame,
				Target:  ApprovedStatusCheckbox,
				Timeout: 15 * time.Second,
				Delay:   2 * time.Second,
				Settle:  2 * time.Second,
			},
			closeDocumentsModal("Close documents modal again", CodeModalClose2NotFound, "Modal close button not found on second attempt."),
			closeConfirmation("Close confirmation popup again", "Could not close success message popup on second attempt."),
			{
				Name:    "Save-Options",
				Code:    CodeSaveOptionsNotFound,
				Message: "Save-Options button not found.",
				Target:  SaveOptionsButton,
				Timeout: 15 * time.Second,
				Settle:  2 * time.Second,
			},
			{
				Name:    "File Movement",
				Code:    CodeFileMovementNotFound,
				Message: "File Movement option not found in dropdown.",
				Target:  FileMovementLink,
				Timeout: 10 * time.Second,
				Settle:  3 * time.Second,
			},
			{
				Name:    "File Movement modal",
				Kind:    Optional,
				Target:  FileMovementModal,
				Action:  NoAction,
				Timeout: 10 * time.Second,
				Settle:  time.Second,
			},
			{
				Name:    "Proceed to Next Seat",
				Code:    CodeElementNotFound,
				Message: "Could not find 'Proceed to Next Seat' radio button in File Movement modal",
				Anchor:  NextSeatLabel,
				Target:  NextSeatRadio,
				Done:    ClassContains("ui-state-active"),
				Timeout: 10 * time.Second,
				Delay:   time.Second,
				Settle:  time.Second,
			},
			{
				Name:      "Save",
				Code:      CodeElementNotFound,
				Message:   "Could not find Save button in File Movement modal",
				Target:    SaveButton,
				Fallbacks: []browser.Locator{SaveButtonByID, SaveButtonAnywhere, SaveButtonByConfirm},
				Timeout:   5 * time.Second,
				Settle:    2 * time.Second,
			},
			{
				Name:         "Confirm Yes",
				Code:         CodeElementNotFound,
				Message:      "Could not find Yes button in confirmation dialog",
				Target:       YesButton,
				Fallbacks:    []browser.Locator{YesButtonByText, YesButtonByID},
				HideOverlays: true,
				Timeout:      10 * time.Second,
				Delay:        time.Second,
				Settle:       2 * time.Second,
			},
		},
		Recovery: []Affordance{
			{Locator: HomeButton, Text: "back to home"},
			{Locator: HomeButtonText},
		},
		RecoverySettle: 3 * time.Second,
	}
}
