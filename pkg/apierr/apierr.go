// Package apierr defines the error kinds the API facade translates into
// HTTP status codes (spec §7).
package apierr

import "fmt"

// Kind enumerates the error kinds visible to API callers.
type Kind string

const (
	KindInvalidCredential   Kind = "invalid_credential"
	KindSubscriptionInactive Kind = "subscription_inactive"
	KindRateLimitExceeded   Kind = "rate_limit_exceeded"
	KindNotFound            Kind = "not_found"
	KindDuplicateResource   Kind = "duplicate_resource"
	KindUnauthorizedAdmin   Kind = "unauthorized_admin"
	KindInvalidPlan         Kind = "invalid_plan"
	KindInternal            Kind = "internal_error"
)

// Detail carries the extra fields the gate attaches to 402/429 responses.
type Detail struct {
	CurrentUsage *int
	Limit        *int
	Remaining    *int
	DaysLeft     *int
	BillingEnd   *string
	Status       *string
}

// Error is the typed error returned by every component in the core.
type Error struct {
	Kind    Kind
	Message string
	Detail  Detail
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

// New creates an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap wraps an underlying error as an internal_error, preserving its text.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindInternal, Message: err.Error()}
}

// As extracts an *Error from err, if any.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

// StatusCode translates a Kind into the HTTP status the API facade returns,
// per spec §4.H / §7.
func StatusCode(kind Kind) int {
	switch kind {
	case KindInvalidCredential:
		return 401
	case KindSubscriptionInactive:
		return 402
	case KindUnauthorizedAdmin:
		return 403
	case KindNotFound:
		return 404
	case KindDuplicateResource, KindInvalidPlan:
		return 400
	case KindRateLimitExceeded:
		return 429
	default:
		return 500
	}
}
