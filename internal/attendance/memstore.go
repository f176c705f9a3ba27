package attendance

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemStore is an in-process Store backed by indexed maps. It is the dev and
// test backend; lookups are O(1) on the (course, number, date) keys instead
// of the linear table scans of the system it replaces.
type MemStore struct {
	mu       sync.RWMutex
	courses  map[string]Course          // course name -> course
	order    []string                   // course creation order
	sessions map[string][]Session       // course name -> sessions ordered by date
	roster   map[string][]RosterEntry   // course name -> roster
	records  map[string]Record          // recordKey -> record
	teachers map[string]Teacher         // lowercased email -> teacher
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		courses:  make(map[string]Course),
		sessions: make(map[string][]Session),
		roster:   make(map[string][]RosterEntry),
		records:  make(map[string]Record),
		teachers: make(map[string]Teacher),
	}
}

func recordKey(course, number, date string) string {
	return NormalizeCourse(course) + "\x00" + NormalizeNumber(number) + "\x00" + date
}

func (m *MemStore) CreateCourse(ctx context.Context, c Course, sessions []Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := NormalizeCourse(c.Name)
	if _, ok := m.courses[name]; ok {
		return ErrDuplicateCourse
	}
	m.courses[name] = c
	m.order = append(m.order, name)
	m.sessions[name] = append([]Session(nil), sessions...)
	return nil
}

func (m *MemStore) ListCourses(ctx context.Context) ([]Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Course, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.courses[name])
	}
	return out, nil
}

func (m *MemStore) ListSessions(ctx context.Context, course string) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := append([]Session(nil), m.sessions[NormalizeCourse(course)]...)
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Date < sessions[j].Date })
	return sessions, nil
}

func (m *MemStore) UpdateSessionStatus(ctx context.Context, course, date string, status SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := m.sessions[NormalizeCourse(course)]
	for i := range sessions {
		if sessions[i].Date == date {
			sessions[i].Status = status
			return nil
		}
	}
	return ErrSessionNotFound
}

func (m *MemStore) CountActiveSessions(ctx context.Context, course, uptoDate string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions[NormalizeCourse(course)] {
		if s.Status == SessionActive && s.Date <= uptoDate {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) ReplaceRoster(ctx context.Context, course string, entries []RosterEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roster[NormalizeCourse(course)] = append([]RosterEntry(nil), entries...)
	return nil
}

func (m *MemStore) ListRoster(ctx context.Context, course string) ([]RosterEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RosterEntry(nil), m.roster[NormalizeCourse(course)]...), nil
}

func (m *MemStore) FindRosterEntry(ctx context.Context, course, number string) (*RosterEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	target := NormalizeNumber(number)
	for _, e := range m.roster[NormalizeCourse(course)] {
		if NormalizeNumber(e.StudentNumber) == target {
			entry := e
			return &entry, nil
		}
	}
	return nil, nil
}

func (m *MemStore) ListEnrollments(ctx context.Context, number string) ([]RosterEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	target := NormalizeNumber(number)
	var out []RosterEntry
	for _, name := range m.order {
		for _, e := range m.roster[name] {
			if NormalizeNumber(e.StudentNumber) == target {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (m *MemStore) InsertRecord(ctx context.Context, rec Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(rec.Course, rec.StudentNumber, rec.SessionDate)
	if _, ok := m.records[key]; ok {
		return false, nil
	}
	m.records[key] = rec
	return true, nil
}

func (m *MemStore) GetRecord(ctx context.Context, course, number, date string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.records[recordKey(course, number, date)]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (m *MemStore) ListSessionRecords(ctx context.Context, course, date string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := NormalizeCourse(course) + "\x00"
	var out []Record
	for key, rec := range m.records {
		if strings.HasPrefix(key, prefix) && rec.SessionDate == date {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MemStore) CountRecords(ctx context.Context, course, number string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	target := NormalizeCourse(course) + "\x00" + NormalizeNumber(number) + "\x00"
	n := 0
	for key := range m.records {
		if strings.HasPrefix(key, target) {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) SetRecordStatus(ctx context.Context, course, number, date string, status Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(course, number, date)
	rec, ok := m.records[key]
	if !ok {
		return false, nil
	}
	rec.Status = status
	m.records[key] = rec
	return true, nil
}

func (m *MemStore) DeleteRecord(ctx context.Context, course, number, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(course, number, date)
	if _, ok := m.records[key]; !ok {
		return 0, nil
	}
	delete(m.records, key)
	return 1, nil
}

func (m *MemStore) UpsertTeacher(ctx context.Context, t Teacher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(t.Email)
	if existing, ok := m.teachers[key]; ok {
		if t.Name != "" {
			existing.Name = t.Name
			m.teachers[key] = existing
		}
		return nil
	}
	m.teachers[key] = t
	return nil
}

func (m *MemStore) GetTeacher(ctx context.Context, email string) (*Teacher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.teachers[strings.ToLower(email)]; ok {
		return &t, nil
	}
	return nil, nil
}

var _ Store = (*MemStore)(nil)
