package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error for the HTTP layer to map to a status code.
// Kinds are deliberately not Go error types themselves: any operation may
// wrap an underlying error with one of these via NewError.
type Kind string

const (
	KindBadInput             Kind = "bad_input"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindStoreError           Kind = "store_error"
	KindParseError           Kind = "parse_error"
	KindCapabilityUnavailable Kind = "capability_unavailable"
	KindInternal             Kind = "internal"
)

// Sentinel errors for common validation failures, wrapped by Error below.
var (
	ErrMissingDatasetID   = errors.New("missing dataset id")
	ErrUnknownSplit       = errors.New("unrecognised split")
	ErrUnknownTriageLabel = errors.New("unrecognised triage label")
	ErrDuplicateTag       = errors.New("duplicate tag")
	ErrTooManyIDs         = errors.New("id-allow-list exceeds bound")
	ErrInvalidBBox        = errors.New("invalid bounding box")
	ErrInvalidSize        = errors.New("unrecognised image size")
	ErrNoThumbnailCodec   = errors.New("no thumbnail codec configured")
)

// Error wraps an underlying error with a Kind for status-code mapping.
type Error struct {
	Kind    Kind
	Field   string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Wrapped, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Wrapped)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// NewError wraps err with kind and an optional field label.
func NewError(kind Kind, field string, err error) *Error {
	return &Error{Kind: kind, Field: field, Wrapped: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error; otherwise returns KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
