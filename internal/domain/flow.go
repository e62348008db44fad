package domain

type FlowView int

const (
	ViewLogin FlowView = iota
	ViewForgotPassword
	ViewResetPassword
)

func (v FlowView) String() string {
	switch v {
	case ViewLogin:
		return "login"
	case ViewForgotPassword:
		return "forgot_password"
	case ViewResetPassword:
		return "reset_password"
	default:
		return "unknown"
	}
}

type EditorMode int

const (
	ModeViewing EditorMode = iota
	ModeEditing
)

func (m EditorMode) String() string {
	if m == ModeEditing {
		return "editing"
	}
	return "viewing"
}

// User-facing fallbacks used when the identity service gives no detail.
const (
	MsgLoginFailed        = "Login failed. Please check your credentials."
	MsgResetRequestFailed = "Failed to send reset token. Please try again."
	MsgResetConfirmFailed = "Failed to reset password. Please try again."
	MsgRegisterFailed     = "Registration failed. Please try again."
	MsgEmailTaken         = "Email already registered"
	MsgUpdateFailed       = "Update failed. Please try again."
	MsgLogoutFailed       = "Logout failed. Please try again."

	MsgResetRequested = "A reset token has been sent to your email."
	MsgResetConfirmed = "Password reset successful. Redirecting to login..."
	MsgRegistered     = "Account created successfully! Redirecting to login..."
	MsgProfileUpdated = "Profile updated successfully!"
)
