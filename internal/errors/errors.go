package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Code is the stable, client-facing error code for an integration failure.
type Code string

const (
	CodeProviderNotFound        Code = "PROVIDER_NOT_FOUND"
	CodeProviderNotConnected    Code = "PROVIDER_NOT_CONNECTED"
	CodeOAuthAuthFailed         Code = "OAUTH_AUTH_FAILED"
	CodeInvalidToken            Code = "INVALID_TOKEN"
	CodeRefreshTokenFailed      Code = "REFRESH_TOKEN_FAILED"
	CodeProviderAPIError        Code = "PROVIDER_API_ERROR"
	CodeDataSyncFailed          Code = "DATA_SYNC_FAILED"
	CodeMissingConfiguration    Code = "MISSING_CONFIGURATION"
	CodeInvalidCallback         Code = "INVALID_CALLBACK"
	CodeRateLimitExceeded       Code = "RATE_LIMIT_EXCEEDED"
	CodeUserDataNotFound        Code = "USER_DATA_NOT_FOUND"
	CodeInsufficientPermissions Code = "INSUFFICIENT_PERMISSIONS"
	CodeInvalidUploadToken      Code = "INVALID_UPLOAD_TOKEN"
	CodeDataValidationFailed    Code = "DATA_VALIDATION_FAILED"
)

// IntegrationError is implemented by every error in the integration taxonomy.
// The HTTP layer uses it to render the structured error payload.
type IntegrationError interface {
	error
	Code() Code
	ProviderName() string
}

// HTTPStatus returns the fixed HTTP status for an error code.
func HTTPStatus(code Code) int {
	switch code {
	case CodeProviderNotFound, CodeUserDataNotFound:
		return http.StatusNotFound
	case CodeProviderNotConnected, CodeInvalidCallback:
		return http.StatusBadRequest
	case CodeOAuthAuthFailed, CodeInvalidToken, CodeRefreshTokenFailed, CodeInvalidUploadToken:
		return http.StatusUnauthorized
	case CodeInsufficientPermissions:
		return http.StatusForbidden
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case CodeProviderAPIError:
		return http.StatusBadGateway
	case CodeDataValidationFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// AsIntegration unwraps err into an IntegrationError if one is in the chain.
func AsIntegration(err error) (IntegrationError, bool) {
	var ie IntegrationError
	if stderrors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// Integration taxonomy errors

type ErrConfiguration struct {
	Provider string
	Missing  []string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("provider %s is missing required configuration: %s", e.Provider, strings.Join(e.Missing, ", "))
}

func (e *ErrConfiguration) Code() Code           { return CodeMissingConfiguration }
func (e *ErrConfiguration) ProviderName() string { return e.Provider }

type ErrProviderNotFound struct {
	Provider string
}

func (e *ErrProviderNotFound) Error() string {
	return fmt.Sprintf("unknown provider: %s", e.Provider)
}

func (e *ErrProviderNotFound) Code() Code           { return CodeProviderNotFound }
func (e *ErrProviderNotFound) ProviderName() string { return e.Provider }

type ErrProviderNotConnected struct {
	Provider string
	UserID   string
}

func (e *ErrProviderNotConnected) Error() string {
	return fmt.Sprintf("provider %s is not connected for user %s", e.Provider, e.UserID)
}

func (e *ErrProviderNotConnected) Code() Code           { return CodeProviderNotConnected }
func (e *ErrProviderNotConnected) ProviderName() string { return e.Provider }

type ErrInvalidCallback struct {
	Provider string
	Reason   string
}

func (e *ErrInvalidCallback) Error() string {
	return fmt.Sprintf("invalid %s callback: %s", e.Provider, e.Reason)
}

func (e *ErrInvalidCallback) Code() Code           { return CodeInvalidCallback }
func (e *ErrInvalidCallback) ProviderName() string { return e.Provider }

type ErrOAuthAuthentication struct {
	Provider string
	Reason   string
	Err      error
}

func (e *ErrOAuthAuthentication) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s authorization failed: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s authorization failed: %s", e.Provider, e.Reason)
}

func (e *ErrOAuthAuthentication) Unwrap() error        { return e.Err }
func (e *ErrOAuthAuthentication) Code() Code           { return CodeOAuthAuthFailed }
func (e *ErrOAuthAuthentication) ProviderName() string { return e.Provider }

type ErrInvalidToken struct {
	Provider string
	Reason   string
}

func (e *ErrInvalidToken) Error() string {
	return fmt.Sprintf("%s credential is not usable: %s", e.Provider, e.Reason)
}

func (e *ErrInvalidToken) Code() Code           { return CodeInvalidToken }
func (e *ErrInvalidToken) ProviderName() string { return e.Provider }

type ErrRefreshToken struct {
	Provider string
	Status   int
	Err      error
}

func (e *ErrRefreshToken) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s token refresh rejected with status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s token refresh failed: %v", e.Provider, e.Err)
}

func (e *ErrRefreshToken) Unwrap() error        { return e.Err }
func (e *ErrRefreshToken) Code() Code           { return CodeRefreshTokenFailed }
func (e *ErrRefreshToken) ProviderName() string { return e.Provider }

type ErrProviderAPI struct {
	Provider string
	Status   int
	Err      error
}

func (e *ErrProviderAPI) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s API returned status %d", e.Provider, e.Status)
}

func (e *ErrProviderAPI) Unwrap() error        { return e.Err }
func (e *ErrProviderAPI) Code() Code           { return CodeProviderAPIError }
func (e *ErrProviderAPI) ProviderName() string { return e.Provider }

type ErrRateLimit struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *ErrRateLimit) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limit exceeded", e.Provider)
}

func (e *ErrRateLimit) Code() Code           { return CodeRateLimitExceeded }
func (e *ErrRateLimit) ProviderName() string { return e.Provider }

type ErrDataSync struct {
	Provider string
	Err      error
}

func (e *ErrDataSync) Error() string {
	return fmt.Sprintf("%s sync failed: %v", e.Provider, e.Err)
}

func (e *ErrDataSync) Unwrap() error        { return e.Err }
func (e *ErrDataSync) Code() Code           { return CodeDataSyncFailed }
func (e *ErrDataSync) ProviderName() string { return e.Provider }

type ErrUserDataNotFound struct {
	Provider string
	UserID   string
}

func (e *ErrUserDataNotFound) Error() string {
	return fmt.Sprintf("no %s data found for user %s", e.Provider, e.UserID)
}

func (e *ErrUserDataNotFound) Code() Code           { return CodeUserDataNotFound }
func (e *ErrUserDataNotFound) ProviderName() string { return e.Provider }

type ErrInsufficientPermissions struct {
	Provider string
	Scope    string
}

func (e *ErrInsufficientPermissions) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("%s connection is missing scope %s", e.Provider, e.Scope)
	}
	return fmt.Sprintf("%s connection has insufficient permissions", e.Provider)
}

func (e *ErrInsufficientPermissions) Code() Code           { return CodeInsufficientPermissions }
func (e *ErrInsufficientPermissions) ProviderName() string { return e.Provider }

type ErrInvalidUploadToken struct {
	Provider string
}

func (e *ErrInvalidUploadToken) Error() string {
	return fmt.Sprintf("%s upload token does not match stored device credential", e.Provider)
}

func (e *ErrInvalidUploadToken) Code() Code           { return CodeInvalidUploadToken }
func (e *ErrInvalidUploadToken) ProviderName() string { return e.Provider }

type ErrDataValidation struct {
	Provider string
	Field    string
	Err      error
}

func (e *ErrDataValidation) Error() string {
	return fmt.Sprintf("%s record failed validation on %s: %v", e.Provider, e.Field, e.Err)
}

func (e *ErrDataValidation) Unwrap() error        { return e.Err }
func (e *ErrDataValidation) Code() Code           { return CodeDataValidationFailed }
func (e *ErrDataValidation) ProviderName() string { return e.Provider }

// FromFetchStatus maps a provider fetch HTTP status into the taxonomy.
// 401/403 mean the stored credential is no longer accepted, 429 is throttling
// with an optional retry-after hint, 5xx is a transient upstream failure, and
// anything else unexpected is a generic sync failure.
func FromFetchStatus(provider string, status int, retryAfter time.Duration) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ErrInvalidToken{Provider: provider, Reason: fmt.Sprintf("provider rejected credential with status %d", status)}
	case status == http.StatusTooManyRequests:
		return &ErrRateLimit{Provider: provider, RetryAfter: retryAfter}
	case status >= 500:
		return &ErrProviderAPI{Provider: provider, Status: status}
	default:
		return &ErrDataSync{Provider: provider, Err: fmt.Errorf("unexpected status %d", status)}
	}
}
