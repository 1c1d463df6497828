package domain

import "fmt"

// Error types for consistent error handling across the portal API.

// AuthCause classifies authentication failures.
type AuthCause string

const (
	AuthInvalidCredentials  AuthCause = "invalid_credentials"
	AuthTooManyAttempts     AuthCause = "too_many_attempts"
	AuthNetworkFailure      AuthCause = "network_failure"
	AuthProviderCancelled   AuthCause = "provider_cancelled"
	AuthProviderUnavailable AuthCause = "provider_unavailable"
)

// ErrCredential indicates bad sign-up input: malformed email, an address
// that is already registered, or a password that violates provider policy.
type ErrCredential struct {
	Field   string
	Message string
}

func (e *ErrCredential) Error() string {
	return fmt.Sprintf("credential error on '%s': %s", e.Field, e.Message)
}

// ErrAuth indicates a sign-in or federated-login failure.
type ErrAuth struct {
	Cause   AuthCause
	Message string
}

func (e *ErrAuth) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth error [%s]: %s", e.Cause, e.Message)
	}
	return fmt.Sprintf("auth error [%s]", e.Cause)
}

// ErrRecordService indicates a record store read or write failure.
type ErrRecordService struct {
	Op  string
	Err error
}

func (e *ErrRecordService) Error() string {
	return fmt.Sprintf("record service error [%s]: %v", e.Op, e.Err)
}

func (e *ErrRecordService) Unwrap() error {
	return e.Err
}

// ErrConfiguration indicates a missing or invalid provider setting,
// detected at startup. The boundary converts it into a degraded no-op
// client; it never crashes the process.
type ErrConfiguration struct {
	Key string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("configuration error: %s not set", e.Key)
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}
