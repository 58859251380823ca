package models

// LoginRequest is the body of the password login call.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
}

// GoogleLoginRequest exchanges a Google authorization code for a session.
type GoogleLoginRequest struct {
	Code string `json:"code" validate:"required"`
}

// PasswordResetRequest asks the backend to mail a reset link.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// PasswordResetConfirm completes a reset with the base64 params from the link.
type PasswordResetConfirm struct {
	Params      string `json:"params" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}
