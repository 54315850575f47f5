package services

import (
	"github.com/samber/oops"
)

// Kind is the closed set of failure codes the services return. Every error
// leaving this package is an oops error carrying exactly one of them.
type Kind string

const (
	KindValidation          Kind = "VALIDATION_ERROR"
	KindMissingCredentials  Kind = "MISSING_CREDENTIALS"
	KindMissingEmail        Kind = "MISSING_EMAIL"
	KindMissingPassword     Kind = "MISSING_PASSWORD"
	KindWeakPassword        Kind = "WEAK_PASSWORD"
	KindInvalidEmailDomain  Kind = "INVALID_EMAIL_DOMAIN"
	KindAlreadyExists       Kind = "ALREADY_EXISTS"
	KindInvalidCredentials  Kind = "INVALID_CREDENTIALS"
	KindInvalidSession      Kind = "INVALID_SESSION"
	KindRateLimited         Kind = "RATE_LIMITED"
	KindInvalidOrExpiredTok Kind = "INVALID_OR_EXPIRED_TOKEN"
	KindDeliveryFailed      Kind = "DELIVERY_FAILED"
	KindPersistence         Kind = "PERSISTENCE_ERROR"
	KindInternal            Kind = "INTERNAL_ERROR"
)

// ViolationsKey is the oops context key holding []string password rule
// violations on a KindWeakPassword error.
const ViolationsKey = "violations"

// KindOf extracts the failure code from err. Errors that did not originate
// here report KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return KindInternal
	}
	code, ok := oopsErr.Code().(string)
	if !ok || code == "" {
		return KindInternal
	}
	return Kind(code)
}

// Violations returns the password rule violations attached to err, if any.
func Violations(err error) []string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	v, _ := oopsErr.Context()[ViolationsKey].([]string)
	return v
}

func fail(kind Kind) oops.OopsErrorBuilder {
	return oops.Code(string(kind))
}
