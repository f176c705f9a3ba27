package attendance

import "context"

// Store is the persistence boundary of the attendance engine. Courses and
// sessions are append-only (session status is the only mutable cell), a
// course roster is replaced wholesale on upload, and attendance rows are
// inserted on check-in and updated or deleted by teacher override.
//
// Student numbers are matched case-insensitively by every implementation;
// dates are canonical ISODate strings.
type Store interface {
	// CreateCourse persists a course together with its generated session
	// calendar, atomically. Returns ErrDuplicateCourse when the name is
	// taken.
	CreateCourse(ctx context.Context, c Course, sessions []Session) error
	ListCourses(ctx context.Context) ([]Course, error)

	// ListSessions returns the sessions of a course ordered by date.
	ListSessions(ctx context.Context, course string) ([]Session, error)
	// UpdateSessionStatus flips one session's status. Returns
	// ErrSessionNotFound when no session matches (course, date).
	UpdateSessionStatus(ctx context.Context, course, date string, status SessionStatus) error
	// CountActiveSessions counts Active sessions of a course dated on or
	// before uptoDate.
	CountActiveSessions(ctx context.Context, course, uptoDate string) (int, error)

	// ReplaceRoster atomically swaps the whole roster of one course.
	ReplaceRoster(ctx context.Context, course string, entries []RosterEntry) error
	ListRoster(ctx context.Context, course string) ([]RosterEntry, error)
	// FindRosterEntry looks up one enrollment by course and normalized
	// student number. Returns (nil, nil) when absent.
	FindRosterEntry(ctx context.Context, course, number string) (*RosterEntry, error)
	// ListEnrollments returns every roster entry matching the student
	// number across all courses.
	ListEnrollments(ctx context.Context, number string) ([]RosterEntry, error)

	// InsertRecord writes an attendance row unless one already exists for
	// (course, number, sessionDate). The returned bool reports whether a
	// row was created; false means a concurrent or earlier write won.
	InsertRecord(ctx context.Context, rec Record) (bool, error)
	// GetRecord returns the attendance row for (course, number, date), or
	// (nil, nil) when absent.
	GetRecord(ctx context.Context, course, number, date string) (*Record, error)
	ListSessionRecords(ctx context.Context, course, date string) ([]Record, error)
	// CountRecords counts every attendance row for the student in the
	// course, regardless of status or session existence.
	CountRecords(ctx context.Context, course, number string) (int, error)
	// SetRecordStatus updates the status cell of an existing row. The bool
	// reports whether a row matched.
	SetRecordStatus(ctx context.Context, course, number, date string, status Status) (bool, error)
	// DeleteRecord removes any matching rows and reports how many.
	DeleteRecord(ctx context.Context, course, number, date string) (int, error)

	UpsertTeacher(ctx context.Context, t Teacher) error
	// GetTeacher returns (nil, nil) when the email is unknown.
	GetTeacher(ctx context.Context, email string) (*Teacher, error)
}
