package attendance

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/lock"
)

// Outcome reports how a check-in resolved. AlreadyRecorded is informational,
// not an error: repeated scans of the same QR code are safe.
type Outcome string

const (
	OutcomeRecorded        Outcome = "success"
	OutcomeAlreadyRecorded Outcome = "already_recorded"
)

// CheckInResult is the response to a student check-in.
type CheckInResult struct {
	Outcome Outcome `json:"result"`
	Stats   Stats   `json:"stats"`
}

// Service is the attendance engine: calendar expansion, check-in recording,
// roster reconciliation and participation stats over a Store.
type Service struct {
	store  Store
	locker lock.Keyed
	now    func() time.Time
}

// NewService creates a service. The keyed lock serializes check-in writes
// per (course, student, date) so concurrent scans cannot race the
// read-check-insert sequence on stores without their own uniqueness
// guarantee.
func NewService(store Store, locker lock.Keyed) *Service {
	if locker == nil {
		locker = lock.NewInMemory()
	}
	return &Service{store: store, locker: locker, now: time.Now}
}

// RegisterTeacher records a course owner by email.
func (s *Service) RegisterTeacher(ctx context.Context, email, name string) (Teacher, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Teacher{}, missing("email")
	}
	t := Teacher{Email: email, Name: strings.TrimSpace(name), CreatedAt: s.now()}
	if err := s.store.UpsertTeacher(ctx, t); err != nil {
		return Teacher{}, err
	}
	stored, err := s.store.GetTeacher(ctx, email)
	if err != nil {
		return Teacher{}, err
	}
	if stored != nil {
		return *stored, nil
	}
	return t, nil
}

// CreateCourse validates the term, stores the course and generates its
// session calendar. Returns the number of sessions generated.
func (s *Service) CreateCourse(ctx context.Context, name, start, end string, weekday int, teacherEmail string) (int, error) {
	name = NormalizeCourse(name)
	switch {
	case name == "":
		return 0, missing("name")
	case teacherEmail == "":
		return 0, missing("teacherEmail")
	case weekday < 0 || weekday > 6:
		return 0, invalid("day", "weekday must be 0-6")
	}
	termStart, err := ParseISODate(start)
	if err != nil {
		return 0, invalid("start", err.Error())
	}
	termEnd, err := ParseISODate(end)
	if err != nil {
		return 0, invalid("end", err.Error())
	}
	if termEnd.Before(termStart) {
		return 0, invalid("end", "term end precedes term start")
	}

	sessions := GenerateSessions(name, termStart, termEnd, time.Weekday(weekday))
	course := Course{
		ID:           uuid.NewString(),
		Name:         name,
		TermStart:    ISODate(termStart),
		TermEnd:      ISODate(termEnd),
		Weekday:      weekday,
		TeacherEmail: strings.ToLower(strings.TrimSpace(teacherEmail)),
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateCourse(ctx, course, sessions); err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// CoursesByTeacher lists the courses owned by a teacher email. An empty
// filter returns every course.
func (s *Service) CoursesByTeacher(ctx context.Context, teacherEmail string) ([]Course, error) {
	courses, err := s.store.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	if teacherEmail == "" {
		return courses, nil
	}
	target := strings.ToLower(strings.TrimSpace(teacherEmail))
	out := courses[:0]
	for _, c := range courses {
		if strings.ToLower(c.TeacherEmail) == target {
			out = append(out, c)
		}
	}
	return out, nil
}

// Sessions returns a course's calendar ordered by date.
func (s *Service) Sessions(ctx context.Context, course string) ([]Session, error) {
	if NormalizeCourse(course) == "" {
		return nil, missing("course")
	}
	return s.store.ListSessions(ctx, course)
}

// UpdateSessionStatus flips one session between Active and Cancelled.
func (s *Service) UpdateSessionStatus(ctx context.Context, course, date, status string) error {
	if NormalizeCourse(course) == "" {
		return missing("course")
	}
	if strings.TrimSpace(date) == "" {
		return missing("date")
	}
	var st SessionStatus
	switch SessionStatus(strings.TrimSpace(status)) {
	case SessionActive:
		st = SessionActive
	case SessionCancelled:
		st = SessionCancelled
	default:
		return invalid("status", "must be Active or Cancelled")
	}
	return s.store.UpdateSessionStatus(ctx, course, strings.TrimSpace(date), st)
}

// UploadRoster replaces the whole roster of a course. Entries with a blank
// number are dropped; duplicate numbers keep the first occurrence.
func (s *Service) UploadRoster(ctx context.Context, course string, entries []RosterEntry) error {
	course = NormalizeCourse(course)
	if course == "" {
		return missing("course")
	}
	seen := make(map[string]bool, len(entries))
	kept := make([]RosterEntry, 0, len(entries))
	for _, e := range entries {
		num := NormalizeNumber(e.StudentNumber)
		if num == "" || seen[num] {
			continue
		}
		seen[num] = true
		kept = append(kept, RosterEntry{
			Course:        course,
			StudentName:   strings.TrimSpace(e.StudentName),
			StudentNumber: strings.TrimSpace(e.StudentNumber),
		})
	}
	return s.store.ReplaceRoster(ctx, course, kept)
}

// Roster returns the enrolled students of a course.
func (s *Service) Roster(ctx context.Context, course string) ([]RosterEntry, error) {
	if NormalizeCourse(course) == "" {
		return nil, missing("course")
	}
	return s.store.ListRoster(ctx, course)
}

// CheckIn records a student scan. The effective session date is the calendar
// date of at; a check-in is accepted even when no Active session exists for
// that date, matching the behavior teachers rely on for make-up classes.
// At most one record per (course, number, date) ever exists: a repeat scan
// returns AlreadyRecorded with current stats and writes nothing.
func (s *Service) CheckIn(ctx context.Context, course, name, number string, at time.Time) (CheckInResult, error) {
	course = NormalizeCourse(course)
	switch {
	case course == "":
		return CheckInResult{}, missing("course")
	case NormalizeNumber(number) == "":
		return CheckInResult{}, missing("number")
	}
	if at.IsZero() {
		at = s.now()
	}

	entry, err := s.store.FindRosterEntry(ctx, course, number)
	if err != nil {
		return CheckInResult{}, err
	}
	if entry == nil {
		return CheckInResult{}, ErrNotEnrolled
	}

	date := ISODate(at)
	unlock, err := s.locker.Lock(ctx, checkInKey(course, number, date))
	if err != nil {
		return CheckInResult{}, err
	}
	defer unlock()

	outcome := OutcomeAlreadyRecorded
	existing, err := s.store.GetRecord(ctx, course, number, date)
	if err != nil {
		return CheckInResult{}, err
	}
	if existing == nil {
		created, err := s.store.InsertRecord(ctx, Record{
			ID:            uuid.NewString(),
			RecordedAt:    at,
			Course:        course,
			StudentName:   strings.TrimSpace(name),
			StudentNumber: strings.TrimSpace(number),
			SessionDate:   date,
			Status:        StatusPresent,
		})
		if err != nil {
			return CheckInResult{}, err
		}
		if created {
			outcome = OutcomeRecorded
		}
	}

	stats, err := s.StatsFor(ctx, course, number, at)
	if err != nil {
		return CheckInResult{}, err
	}
	return CheckInResult{Outcome: outcome, Stats: stats}, nil
}

// SetStatus is the teacher override for one (student, session date) cell.
// Absent deletes any stored record: absence is represented by the absence of
// a row, which keeps the attendance table compact and is what the read path
// assumes. Present and Excused update the existing record or insert a new
// one with the supplied name. Returns Removed, Updated or Added.
func (s *Service) SetStatus(ctx context.Context, course, date, number, name string, status Status) (string, error) {
	course = NormalizeCourse(course)
	date = strings.TrimSpace(date)
	switch {
	case course == "":
		return "", missing("course")
	case date == "":
		return "", missing("date")
	case NormalizeNumber(number) == "":
		return "", missing("number")
	}

	if status == StatusAbsent {
		if _, err := s.store.DeleteRecord(ctx, course, number, date); err != nil {
			return "", err
		}
		return "Removed", nil
	}

	unlock, err := s.locker.Lock(ctx, checkInKey(course, number, date))
	if err != nil {
		return "", err
	}
	defer unlock()

	updated, err := s.store.SetRecordStatus(ctx, course, number, date, status)
	if err != nil {
		return "", err
	}
	if updated {
		return "Updated", nil
	}
	if name == "" {
		name = "Unknown"
	}
	if _, err := s.store.InsertRecord(ctx, Record{
		ID:            uuid.NewString(),
		RecordedAt:    s.now(),
		Course:        course,
		StudentName:   strings.TrimSpace(name),
		StudentNumber: strings.TrimSpace(number),
		SessionDate:   date,
		Status:        status,
	}); err != nil {
		return "", err
	}
	return "Added", nil
}

// ReconcileSession merges the roster with recorded attendance for one
// session date: a left-outer-join of roster over records keyed by normalized
// student number. No record means Absent; a record with a legacy empty
// status means Present. Rows come back ordered by normalized number.
func (s *Service) ReconcileSession(ctx context.Context, course, date string) ([]StudentStatus, error) {
	course = NormalizeCourse(course)
	date = strings.TrimSpace(date)
	switch {
	case course == "":
		return nil, missing("course")
	case date == "":
		return nil, missing("date")
	}

	roster, err := s.store.ListRoster(ctx, course)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListSessionRecords(ctx, course, date)
	if err != nil {
		return nil, err
	}

	byNumber := make(map[string]Status, len(records))
	for _, rec := range records {
		byNumber[NormalizeNumber(rec.StudentNumber)] = storedStatus(rec.Status)
	}

	out := make([]StudentStatus, 0, len(roster))
	for _, e := range roster {
		st, ok := byNumber[NormalizeNumber(e.StudentNumber)]
		if !ok {
			st = StatusAbsent
		}
		out = append(out, StudentStatus{
			StudentName:   e.StudentName,
			StudentNumber: e.StudentNumber,
			Status:        st,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return NormalizeNumber(out[i].StudentNumber) < NormalizeNumber(out[j].StudentNumber)
	})
	return out, nil
}

// StatsFor computes attended/total for one student in one course as of the
// given time. Total counts Active sessions dated up to and including asOf's
// calendar date; attended counts every stored record for the student in the
// course, whether or not a matching session exists.
func (s *Service) StatsFor(ctx context.Context, course, number string, asOf time.Time) (Stats, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	// Comparing canonical date strings with <= makes the bound end-of-day
	// inclusive: a session scheduled "today" counts toward total.
	total, err := s.store.CountActiveSessions(ctx, course, ISODate(asOf))
	if err != nil {
		return Stats{}, err
	}
	attended, err := s.store.CountRecords(ctx, course, number)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Attended: attended, Total: total}, nil
}

// StatsForStudent returns per-course stats for every course the student is
// enrolled in, including courses with no sessions yet.
func (s *Service) StatsForStudent(ctx context.Context, number string) ([]CourseStats, error) {
	if NormalizeNumber(number) == "" {
		return nil, missing("number")
	}
	enrollments, err := s.store.ListEnrollments(ctx, number)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]CourseStats, 0, len(enrollments))
	for _, e := range enrollments {
		stats, err := s.StatsFor(ctx, e.Course, number, now)
		if err != nil {
			return nil, err
		}
		out = append(out, CourseStats{Course: e.Course, Attended: stats.Attended, Total: stats.Total})
	}
	return out, nil
}

func checkInKey(course, number, date string) string {
	return NormalizeCourse(course) + "|" + NormalizeNumber(number) + "|" + date
}
