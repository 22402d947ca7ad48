package errors

import "fmt"

// AuthError is the stable JSON error body returned to clients. Upstream
// detail (provider error bodies, stack traces) is logged server-side and
// never placed here.
type AuthError struct {
	Code        string `json:"error"`
	Description string `json:"message,omitempty"`
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Stable client-facing error codes.
const (
	InvalidRequest   = "invalid_request"
	InvalidSignature = "invalid_signature"
	Unauthorized     = "unauthorized"
	HolderRequired   = "holder_required"
	ServerError      = "server_error"
)

// Redirect error codes for the Discord callback. These travel as query
// parameters on the redirect back to the application root.
const (
	RedirectDiscordAuthFailed     = "discord_auth_failed"
	RedirectMissingCode           = "missing_code"
	RedirectMissingRole           = "missing_role"
	RedirectDiscordCallbackFailed = "discord_callback_failed"
)

func NewInvalidRequest(description string) *AuthError {
	return &AuthError{Code: InvalidRequest, Description: description}
}

func NewInvalidSignature() *AuthError {
	return &AuthError{Code: InvalidSignature, Description: "Invalid signature"}
}

func NewUnauthorized() *AuthError {
	return &AuthError{Code: Unauthorized, Description: "Authentication required"}
}

func NewHolderRequired() *AuthError {
	return &AuthError{
		Code:        HolderRequired,
		Description: "Writing reviews requires a verified holder at last login",
	}
}

func NewServerError(description string) *AuthError {
	return &AuthError{Code: ServerError, Description: description}
}
