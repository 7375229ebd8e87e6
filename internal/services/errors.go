package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so callers never have to match
// on message substrings.
type ErrorKind string

const (
	// KindInvalidAccessKey means the input is neither a bare 44-digit code
	// nor a URL carrying one. User-correctable.
	KindInvalidAccessKey ErrorKind = "invalid_access_key"
	// KindFetchFailed means transport error, timeout or non-2xx from the
	// authority. Retriable.
	KindFetchFailed ErrorKind = "fetch_failed"
	// KindNoteNotFound means the authority explicitly rejected the key.
	KindNoteNotFound ErrorKind = "note_not_found"
	// KindUnusableDocument means the page was retrieved but no line items
	// could be extracted; usually an upstream markup change.
	KindUnusableDocument ErrorKind = "unusable_document"
	// KindDuplicateNote means the note was already ingested for this user.
	// Informational, not a system fault.
	KindDuplicateNote ErrorKind = "duplicate_note"
	// KindPersistence means a storage fault unrelated to uniqueness.
	KindPersistence ErrorKind = "persistence_failed"
)

// NoteError is the error type returned by the ingestion pipeline
type NoteError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *NoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *NoteError) Unwrap() error {
	return e.Err
}

// NewNoteError creates a NoteError with the given kind
func NewNoteError(kind ErrorKind, message string, cause error) *NoteError {
	return &NoteError{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the ErrorKind carried by err, or KindPersistence when err
// is not a NoteError.
func KindOf(err error) ErrorKind {
	var ne *NoteError
	if errors.As(err, &ne) {
		return ne.Kind
	}
	return KindPersistence
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	var ne *NoteError
	return errors.As(err, &ne) && ne.Kind == kind
}
