// File: internal/dispatch/selectors.go
package dispatch

// DOM selectors for the element-web build under test. These are fixed,
// versioned coordinates agreed with the application, not discovered at
// runtime; when the app's DOM changes they must be bumped together with the
// app version pinned in CI.
const (
	// Registration form.
	selRegistrationUsername = "#mx_RegistrationForm_username"
	selRegistrationPassword = "#mx_RegistrationForm_password"
	selRegistrationConfirm  = "#mx_RegistrationForm_passwordConfirm"

	// Login form, including the custom-homeserver picker.
	selServerPickerChange   = ".mx_ServerPicker_change"
	selServerPickerOther    = ".mx_ServerPickerDialog_otherHomeserver"
	selServerPickerContinue = ".mx_ServerPickerDialog_continue"
	selLoginUsername        = "#mx_LoginForm_username"
	selLoginPassword        = "#mx_LoginForm_password"
	selAuthSubmit           = ".mx_Login_submit"

	// Signed-in shell; visible once authentication has completed.
	selMatrixChat = ".mx_MatrixChat"

	// Cross-signing / device verification.
	selVerificationToast        = ".mx_Toast_toast"
	selVerificationToastAccept  = ".mx_Toast_buttons .mx_AccessibleButton_kind_primary"
	selVerificationEmojiMatch   = ".mx_VerificationShowSas_buttonRow .mx_AccessibleButton_kind_primary"
	selVerificationCompleteDone = ".mx_VerificationPanel_verified_section .mx_AccessibleButton_kind_primary"

	// Room creation.
	selRoomListPlus    = ".mx_RoomListHeader_plusButton"
	selNewRoomMenuItem = ".mx_ContextualMenu [aria-label='New room']"
	selCreateRoomName  = ".mx_CreateRoomDialog_name input"
	selDialogPrimary   = ".mx_Dialog_primary"
	selDialogCancel    = ".mx_Dialog_cancelButton"
	selRoomHeader      = ".mx_RoomHeader"

	// Message composer.
	selMessageComposer = ".mx_BasicMessageComposer_input"

	// Room settings, security tab (history visibility radios are
	// selHistoryVisibilityPrefix + value, e.g. "#historyVis-shared").
	selRoomSettingsButton      = "[aria-label='Room settings']"
	selRoomSecurityTab         = "[data-testid='settings-tab-ROOM_SECURITY_TAB']"
	selHistoryVisibilityPrefix = "#historyVis-"

	// User invite flow.
	selRoomInfoButton  = "[aria-label='Room info']"
	selRoomPeopleCard  = ".mx_RoomSummaryCard_icon_people"
	selMemberInvite    = ".mx_MemberList_invite"
	selInviteDialogBox = ".mx_InviteDialog_editor input"
	selInviteDialogGo  = ".mx_InviteDialog_goButton"
)
