package store

// AuthError is an authorization failure with a stable code.
type AuthError struct {
	Code   string
	Reason string
}

func (e *AuthError) Error() string { return "store: " + e.Reason }

// AccountError is an account-state failure with a stable code.
type AccountError struct {
	Code   string
	Reason string
}

func (e *AccountError) Error() string { return "store: " + e.Reason }

var (
	ErrUnauthorized   = &AuthError{Code: "UNAUTHORIZED", Reason: "caller is not the required authority"}
	ErrAccountRevoked = &AuthError{Code: "ACCOUNT_REVOKED", Reason: "signal account is revoked"}

	ErrAlreadyInitialized   = &AccountError{Code: "ALREADY_INITIALIZED", Reason: "account already exists"}
	ErrAlreadyRegistered    = &AccountError{Code: "ALREADY_REGISTERED", Reason: "mr_enclave already has an active entry"}
	ErrNotFound             = &AccountError{Code: "NOT_FOUND", Reason: "no such entry"}
	ErrConfigNotInitialized = &AccountError{Code: "CONFIG_NOT_INITIALIZED", Reason: "protocol config not initialized"}
	ErrProtocolPaused       = &AccountError{Code: "PROTOCOL_PAUSED", Reason: "protocol is paused"}
	ErrInvalidTransition    = &AccountError{Code: "INVALID_TRANSITION", Reason: "disallowed account state transition"}
)
