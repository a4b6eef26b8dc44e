// Package vigilerr defines the error taxonomy shared by every service and
// transport in Vigil: a fixed set of Kinds, each carrying its own HTTP
// status, so the HTTP layer doesn't need to choose a status code at every
// call site.
package vigilerr

import (
	"fmt"
	"net/http"
)

// Kind is one of the error categories every Vigil service classifies its
// failures into.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindAuthMissing       Kind = "auth_missing"
	KindAuthInvalid       Kind = "auth_invalid"
	KindAuthForbidden     Kind = "auth_forbidden"
	KindConflict          Kind = "conflict"
	KindRateLimited       Kind = "rate_limited"
	KindStorageFailure    Kind = "storage_failure"
	KindProviderFailure   Kind = "provider_failure"
	KindDecryptionFailure Kind = "decryption_failure"
)

var statusByKind = map[Kind]int{
	KindValidation:        http.StatusUnprocessableEntity,
	KindNotFound:          http.StatusNotFound,
	KindAuthMissing:       http.StatusUnauthorized,
	KindAuthInvalid:       http.StatusUnauthorized,
	KindAuthForbidden:     http.StatusForbidden,
	KindConflict:          http.StatusConflict,
	KindRateLimited:       http.StatusTooManyRequests,
	KindStorageFailure:    http.StatusInternalServerError,
	KindProviderFailure:   http.StatusBadGateway,
	KindDecryptionFailure: http.StatusInternalServerError,
}

// Error is a classified application error: the transport layer reads Kind to
// pick an HTTP status and never needs to hardcode one itself.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Status returns the HTTP status code this error's Kind maps to, defaulting
// to 500 for an unrecognised (zero-value) Kind.
func (e *Error) Status() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation reports a request field that failed validation.
func Validation(field, reason string) *Error {
	return newf(KindValidation, "%s: %s", field, reason)
}

// NotFound reports that resource/id does not exist.
func NotFound(resource, id string) *Error {
	return newf(KindNotFound, "%s %s not found", resource, id)
}

// AuthMissing reports a request with no credentials attached.
func AuthMissing(reason string) *Error { return newf(KindAuthMissing, "%s", reason) }

// AuthInvalid reports credentials that do not resolve to an active principal.
func AuthInvalid(reason string) *Error { return newf(KindAuthInvalid, "%s", reason) }

// AuthForbidden reports an authenticated caller acting outside its scope.
func AuthForbidden(reason string) *Error { return newf(KindAuthForbidden, "%s", reason) }

// Conflict reports a request that cannot apply given the resource's current
// state (e.g. confirming a replay run that isn't awaiting confirmation).
func Conflict(reason string) *Error { return newf(KindConflict, "%s", reason) }

// RateLimited reports a caller who has exceeded its request budget.
func RateLimited(reason string) *Error { return newf(KindRateLimited, "%s", reason) }

// StorageFailure reports an unexpected failure in the persistence layer.
func StorageFailure(reason string) *Error { return newf(KindStorageFailure, "%s", reason) }

// ProviderFailure reports an unexpected failure calling an upstream LLM
// provider during replay execution.
func ProviderFailure(reason string) *Error { return newf(KindProviderFailure, "%s", reason) }

// DecryptionFailure reports a failure decrypting an at-rest credential.
func DecryptionFailure(reason string) *Error { return newf(KindDecryptionFailure, "%s", reason) }
