package service

import (
	"fmt"

	"github.com/beamstore/beamstore/internal/metadata"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound reports an absent catalog record or a record without any
	// chunk attachment.
	ErrNotFound = errors.New("file not found")

	// ErrUnauthorized reports a request for a file the owner does not hold.
	ErrUnauthorized = errors.New("file not owned")
)

// A ValidationError rejects an upload before any pipeline work: empty
// content, unusable filename or an oversize object. It never leaves side
// effects on the transport or the catalog.
type ValidationError struct {
	Reason   string
	TooLarge bool
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// A VerificationError reports a transport acknowledgement carrying a
// different attachment count than the batch that was sent. The upload is
// rolled back.
type VerificationError struct {
	MessageID string
	Expected  int
	Got       int
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("invalid number of attachments in message %s: expected %d, got %d",
		e.MessageID, e.Expected, e.Got)
}

// A TransportError wraps a failed transport call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true when err reports a missing file.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

// IsUnauthorized returns true when err reports an ownership mismatch.
func IsUnauthorized(err error) bool {
	return errors.Cause(err) == ErrUnauthorized
}

// IsValidation returns true when err is a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsTooLarge returns true when err rejects an oversize upload.
func IsTooLarge(err error) bool {
	var e *ValidationError
	return errors.As(err, &e) && e.TooLarge
}

// IsForbidden returns true when err reports unreadable metadata: the record
// exists but its descriptor or key material cannot be used.
func IsForbidden(err error) bool {
	return metadata.IsDecode(err)
}
