package shared

import "errors"

// ErrorKind classifies ledger failures for API mapping and logging. The
// kinds mirror how callers are expected to react: validation and referential
// errors are corrected by fixing the request, state-conflict errors encode
// business policy, consistency errors are internal invariant violations and
// must never be auto-corrected.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindReferential   ErrorKind = "referential"
	KindStateConflict ErrorKind = "state_conflict"
	KindConsistency   ErrorKind = "consistency"
)

// DomainError attaches an ErrorKind to an underlying error. Sentinel errors
// across the ledger packages are declared as DomainError values so handlers
// can map them without importing every domain package.
type DomainError struct {
	Kind ErrorKind
	Err  error
}

func (e *DomainError) Error() string { return e.Err.Error() }

func (e *DomainError) Unwrap() error { return e.Err }

// Validation wraps msg as a caller-correctable input error.
func Validation(msg string) error {
	return &DomainError{Kind: KindValidation, Err: errors.New(msg)}
}

// Referential wraps msg as an unknown-reference error.
func Referential(msg string) error {
	return &DomainError{Kind: KindReferential, Err: errors.New(msg)}
}

// StateConflict wraps msg as a business-policy rejection.
func StateConflict(msg string) error {
	return &DomainError{Kind: KindStateConflict, Err: errors.New(msg)}
}

// Consistency wraps msg as an internal invariant violation.
func Consistency(msg string) error {
	return &DomainError{Kind: KindConsistency, Err: errors.New(msg)}
}

// KindOf reports the ErrorKind of err, or an empty kind when err carries no
// classification.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
