package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the Postgres Store.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the attendance tables and indexes when missing, the
// same create-on-first-use contract the entity tables have always had.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS teachers (
			email      TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS courses (
			id            UUID PRIMARY KEY,
			name          TEXT NOT NULL UNIQUE,
			term_start    TEXT NOT NULL,
			term_end      TEXT NOT NULL,
			weekday       INT NOT NULL,
			teacher_email TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			course_name  TEXT NOT NULL,
			session_date TEXT NOT NULL,
			status       TEXT NOT NULL DEFAULT 'Active',
			PRIMARY KEY (course_name, session_date)
		)`,
		`CREATE TABLE IF NOT EXISTS roster_entries (
			course_name    TEXT NOT NULL,
			student_name   TEXT NOT NULL,
			student_number TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS roster_entries_course_number_idx
			ON roster_entries (course_name, lower(student_number))`,
		`CREATE TABLE IF NOT EXISTS attendance_records (
			id             UUID PRIMARY KEY,
			recorded_at    TIMESTAMPTZ NOT NULL,
			course_name    TEXT NOT NULL,
			student_name   TEXT NOT NULL,
			student_number TEXT NOT NULL,
			session_date   TEXT NOT NULL,
			status         TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS attendance_records_course_number_date_idx
			ON attendance_records (course_name, lower(student_number), session_date)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// CreateCourse inserts the course and its whole session calendar in one
// transaction so a duplicate name never leaves orphaned sessions behind.
func (r *Repository) CreateCourse(ctx context.Context, c Course, sessions []Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO courses (id, name, term_start, term_end, weekday, teacher_email)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO NOTHING
	`, c.ID, NormalizeCourse(c.Name), c.TermStart, c.TermEnd, c.Weekday, c.TeacherEmail)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrDuplicateCourse
	}

	for _, s := range sessions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (course_name, session_date, status)
			VALUES ($1, $2, $3)
		`, NormalizeCourse(c.Name), s.Date, s.Status); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) ListCourses(ctx context.Context) ([]Course, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, term_start, term_end, weekday, teacher_email, created_at
		FROM courses
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Name, &c.TermStart, &c.TermEnd, &c.Weekday, &c.TeacherEmail, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) ListSessions(ctx context.Context, course string) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT course_name, session_date, status
		FROM sessions
		WHERE course_name = $1
		ORDER BY session_date
	`, NormalizeCourse(course))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.Course, &s.Date, &s.Status); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateSessionStatus(ctx context.Context, course, date string, status SessionStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET status = $3
		WHERE course_name = $1 AND session_date = $2
	`, NormalizeCourse(course), date, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *Repository) CountActiveSessions(ctx context.Context, course, uptoDate string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE course_name = $1 AND status = $2 AND session_date <= $3
	`, NormalizeCourse(course), SessionActive, uptoDate).Scan(&n)
	return n, err
}

// ReplaceRoster swaps the whole roster of a course in one transaction.
func (r *Repository) ReplaceRoster(ctx context.Context, course string, entries []RosterEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	course = NormalizeCourse(course)
	if _, err := tx.ExecContext(ctx, `DELETE FROM roster_entries WHERE course_name = $1`, course); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO roster_entries (course_name, student_name, student_number)
			VALUES ($1, $2, $3)
			ON CONFLICT (course_name, lower(student_number)) DO NOTHING
		`, course, e.StudentName, e.StudentNumber); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) ListRoster(ctx context.Context, course string) ([]RosterEntry, error) {
	return r.queryRoster(ctx, `
		SELECT course_name, student_name, student_number
		FROM roster_entries
		WHERE course_name = $1
		ORDER BY lower(student_number)
	`, NormalizeCourse(course))
}

func (r *Repository) FindRosterEntry(ctx context.Context, course, number string) (*RosterEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT course_name, student_name, student_number
		FROM roster_entries
		WHERE course_name = $1 AND lower(student_number) = $2
	`, NormalizeCourse(course), NormalizeNumber(number))
	var e RosterEntry
	if err := row.Scan(&e.Course, &e.StudentName, &e.StudentNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *Repository) ListEnrollments(ctx context.Context, number string) ([]RosterEntry, error) {
	return r.queryRoster(ctx, `
		SELECT course_name, student_name, student_number
		FROM roster_entries
		WHERE lower(student_number) = $1
		ORDER BY course_name
	`, NormalizeNumber(number))
}

func (r *Repository) queryRoster(ctx context.Context, query string, args ...any) ([]RosterEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RosterEntry
	for rows.Next() {
		var e RosterEntry
		if err := rows.Scan(&e.Course, &e.StudentName, &e.StudentNumber); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertRecord relies on the unique index over (course, lower(number), date)
// so concurrent check-ins cannot race into duplicate rows.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, recorded_at, course_name, student_name, student_number, session_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (course_name, lower(student_number), session_date) DO NOTHING
	`, rec.ID, rec.RecordedAt, NormalizeCourse(rec.Course), rec.StudentName, rec.StudentNumber, rec.SessionDate, rec.Status)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) GetRecord(ctx context.Context, course, number, date string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, recorded_at, course_name, student_name, student_number, session_date, status
		FROM attendance_records
		WHERE course_name = $1 AND lower(student_number) = $2 AND session_date = $3
	`, NormalizeCourse(course), NormalizeNumber(number), date)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.RecordedAt, &rec.Course, &rec.StudentName, &rec.StudentNumber, &rec.SessionDate, &rec.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *Repository) ListSessionRecords(ctx context.Context, course, date string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, recorded_at, course_name, student_name, student_number, session_date, status
		FROM attendance_records
		WHERE course_name = $1 AND session_date = $2
	`, NormalizeCourse(course), date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.RecordedAt, &rec.Course, &rec.StudentName, &rec.StudentNumber, &rec.SessionDate, &rec.Status); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repository) CountRecords(ctx context.Context, course, number string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_records
		WHERE course_name = $1 AND lower(student_number) = $2
	`, NormalizeCourse(course), NormalizeNumber(number)).Scan(&n)
	return n, err
}

func (r *Repository) SetRecordStatus(ctx context.Context, course, number, date string, status Status) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records SET status = $4
		WHERE course_name = $1 AND lower(student_number) = $2 AND session_date = $3
	`, NormalizeCourse(course), NormalizeNumber(number), date, status)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) DeleteRecord(ctx context.Context, course, number, date string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM attendance_records
		WHERE course_name = $1 AND lower(student_number) = $2 AND session_date = $3
	`, NormalizeCourse(course), NormalizeNumber(number), date)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *Repository) UpsertTeacher(ctx context.Context, t Teacher) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO teachers (email, name)
		VALUES (lower($1), $2)
		ON CONFLICT (email) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE teachers.name END
	`, t.Email, t.Name)
	return err
}

func (r *Repository) GetTeacher(ctx context.Context, email string) (*Teacher, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT email, name, created_at FROM teachers WHERE email = lower($1)
	`, email)
	var t Teacher
	if err := row.Scan(&t.Email, &t.Name, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

var _ Store = (*Repository)(nil)
