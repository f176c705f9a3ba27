package attendance

import "errors"

var (
	// ErrNotEnrolled rejects a check-in from a student missing from the
	// course roster.
	ErrNotEnrolled = errors.New("student is not enrolled in this course")

	// ErrDuplicateCourse rejects course creation when the name is taken.
	ErrDuplicateCourse = errors.New("course name already exists")

	// ErrSessionNotFound rejects a status update on a nonexistent session.
	ErrSessionNotFound = errors.New("session not found")
)

// ValidationError reports a missing or malformed required field. It is
// surfaced to the caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Field + ": " + e.Reason
	}
	return e.Field + " is required"
}

func missing(field string) error {
	return &ValidationError{Field: field}
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
