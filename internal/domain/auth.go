package domain

import "context"

type Credentials struct {
	Email    string `json:"email" validate:"required,emailshape"`
	Password string `json:"password" validate:"required"`
}

type ResetRequest struct {
	Email string `json:"email" validate:"required,emailshape"`
}

type ResetConfirmation struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type Registration struct {
	FullName        string `json:"full_name" validate:"required"`
	Email           string `json:"email" validate:"required,emailshape"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"-" validate:"required,eqfield=Password"`
	Role            Role   `json:"role"`
}

type AuthResult struct {
	Token string       `json:"access_token"`
	User  *UserProfile `json:"user"`
}

// IdentityService is the remote collaborator that authenticates
// credentials, issues reset tokens and stores profile data.
type IdentityService interface {
	Login(ctx context.Context, creds Credentials) (*AuthResult, error)
	Register(ctx context.Context, req Registration) error
	ForgotPassword(ctx context.Context, req ResetRequest) (string, error)
	ResetPassword(ctx context.Context, req ResetConfirmation) (string, error)
	UpdateProfile(ctx context.Context, req ProfileUpdate) (*UserProfile, error)
}
