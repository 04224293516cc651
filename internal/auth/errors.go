package auth

import (
	"errors"
	"fmt"
)

// Kind buckets failures by how they are handled at the edge:
// configuration errors render plain text for the operator, everything
// else ends as a redirect carrying the failure's user message.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindValidation    Kind = "validation"
	KindUpstream      Kind = "upstream"
	KindState         Kind = "state"
	KindAuth          Kind = "auth"
)

// Failure is a typed error with a message that is safe to show to the
// end user. Provider/database specifics go into the wrapped cause and
// are logged, never rendered.
type Failure struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %v", f.Code, f.cause)
	}
	return f.Code
}

func (f *Failure) Unwrap() error { return f.cause }

// Is matches failures by code so wrapped copies still compare equal to
// their sentinel under errors.Is.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Code == f.Code
}

// Wrap returns a copy of the failure carrying err as its cause.
func (f *Failure) Wrap(err error) *Failure {
	c := *f
	c.cause = err
	return &c
}

// WithMessage returns a copy with a different user-facing message.
func (f *Failure) WithMessage(msg string) *Failure {
	c := *f
	c.Message = msg
	return &c
}

// Sentinel failures. Messages mirror what the login surfaces display.
var (
	ErrProviderNotConfigured = &Failure{Kind: KindConfiguration, Code: "provider_not_configured", Message: "This login method is not configured."}

	ErrProviderDenied   = &Failure{Kind: KindAuth, Code: "provider_denied", Message: "Login was cancelled or denied."}
	ErrMissingParams    = &Failure{Kind: KindState, Code: "missing_parameters", Message: "Login failed: missing code or state."}
	ErrInvalidState     = &Failure{Kind: KindState, Code: "invalid_state", Message: "Login failed: invalid or expired request. Please try again."}
	ErrUpstreamAuth     = &Failure{Kind: KindUpstream, Code: "upstream_auth", Message: "Login failed. Please try again."}
	ErrEmailMissing     = &Failure{Kind: KindUpstream, Code: "email_missing", Message: "The provider did not return an email address."}
	ErrEmailNotVerified = &Failure{Kind: KindAuth, Code: "email_not_verified", Message: "Login failed: email not available or not verified."}

	ErrInvalidCredentials = &Failure{Kind: KindAuth, Code: "invalid_credentials", Message: "Invalid username or password."}
	ErrNotAuthenticated   = &Failure{Kind: KindAuth, Code: "not_authenticated", Message: "Please login."}

	ErrInvalidEmail     = &Failure{Kind: KindValidation, Code: "invalid_email", Message: "Please enter a valid email."}
	ErrEmailTaken       = &Failure{Kind: KindValidation, Code: "email_taken", Message: "This email is already registered. Please login."}
	ErrWeakPassword     = &Failure{Kind: KindValidation, Code: "weak_password", Message: "Password must be at least 8 characters."}
	ErrPasswordMismatch = &Failure{Kind: KindValidation, Code: "password_mismatch", Message: "Passwords do not match."}
	ErrInvalidResetKey  = &Failure{Kind: KindState, Code: "invalid_reset_key", Message: "Reset link is invalid or expired."}
	ErrInvalidNonce     = &Failure{Kind: KindState, Code: "invalid_nonce", Message: "Security check failed. Please try again."}
)

var byCode = map[string]*Failure{}

func init() {
	for _, f := range []*Failure{
		ErrProviderNotConfigured, ErrProviderDenied, ErrMissingParams,
		ErrInvalidState, ErrUpstreamAuth, ErrEmailMissing, ErrEmailNotVerified,
		ErrInvalidCredentials, ErrNotAuthenticated, ErrInvalidEmail,
		ErrEmailTaken, ErrWeakPassword, ErrPasswordMismatch,
		ErrInvalidResetKey, ErrInvalidNonce,
	} {
		byCode[f.Code] = f
	}
}

// MessageForCode maps a failure code carried through a redirect back to
// its user message. Unknown codes get the generic message, so a
// tampered query parameter cannot inject text into the page.
func MessageForCode(code string) string {
	if f, ok := byCode[code]; ok {
		return f.Message
	}
	return "Something went wrong. Please try again."
}

// CodeFor returns the failure code for an error, or "unknown".
func CodeFor(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return "unknown"
}

// IsConfiguration reports whether the failure is an operator problem
// rather than a user one.
func IsConfiguration(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == KindConfiguration
}

// UserMessage extracts a message that may be shown to the end user.
// Unrecognized errors get a generic message so internals never leak.
func UserMessage(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Message
	}
	return "Something went wrong. Please try again."
}
