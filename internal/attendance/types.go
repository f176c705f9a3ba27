package attendance

import (
	"fmt"
	"strings"
	"time"
)

// Course is a recurring weekly class over a term. Courses are identified by
// name and immutable after creation.
type Course struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	TermStart    string    `json:"start"`
	TermEnd      string    `json:"end"`
	Weekday      int       `json:"day"`
	TeacherEmail string    `json:"teacher_email"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is one scheduled meeting of a course, identified by (course, date).
type Session struct {
	Course string        `json:"course,omitempty"`
	Date   string        `json:"date"`
	Status SessionStatus `json:"status"`
}

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "Active"
	SessionCancelled SessionStatus = "Cancelled"
)

// RosterEntry is one enrolled student of a course.
type RosterEntry struct {
	Course        string `json:"course,omitempty"`
	StudentName   string `json:"name"`
	StudentNumber string `json:"number"`
}

// Record is a stored attendance event. Absence has no record; it is the
// default when no row matches a roster entry for a session date.
type Record struct {
	ID            string    `json:"id"`
	RecordedAt    time.Time `json:"timestamp"`
	Course        string    `json:"course"`
	StudentName   string    `json:"name"`
	StudentNumber string    `json:"number"`
	SessionDate   string    `json:"session_date"`
	Status        Status    `json:"status"`
}

// Status is the per-student attendance state for a session.
type Status string

const (
	StatusPresent Status = "Present"
	StatusExcused Status = "Excused"
	StatusAbsent  Status = "Absent"
)

// ParseStatus maps caller input onto the three-state enum.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.TrimSpace(s)) {
	case StatusPresent:
		return StatusPresent, nil
	case StatusExcused:
		return StatusExcused, nil
	case StatusAbsent:
		return StatusAbsent, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// storedStatus maps a persisted status value onto the enum. Rows written
// before the status column existed carry an empty value and mean Present.
func storedStatus(s Status) Status {
	switch s {
	case StatusPresent, StatusExcused, StatusAbsent:
		return s
	}
	return StatusPresent
}

// Teacher is a registered course owner.
type Teacher struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats is the attended/total pair for one student in one course.
type Stats struct {
	Attended int `json:"attended"`
	Total    int `json:"total"`
}

// Rate returns the attendance percentage, 0 when no sessions have occurred.
func (s Stats) Rate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Attended) / float64(s.Total) * 100
}

// CourseStats is Stats tagged with the course it belongs to.
type CourseStats struct {
	Course   string `json:"course"`
	Attended int    `json:"attended"`
	Total    int    `json:"total"`
}

// StudentStatus is one row of a reconciled session view.
type StudentStatus struct {
	StudentName   string `json:"name"`
	StudentNumber string `json:"number"`
	Status        Status `json:"status"`
}

// NormalizeNumber is the canonical form of a student number used for every
// identity comparison: trimmed and lowercased.
func NormalizeNumber(number string) string {
	return strings.ToLower(strings.TrimSpace(number))
}

// NormalizeCourse trims a course name for comparison.
func NormalizeCourse(course string) string {
	return strings.TrimSpace(course)
}
