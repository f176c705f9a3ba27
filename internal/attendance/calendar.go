package attendance

import "time"

// GenerateSessions expands a term and a weekly class day into the canonical
// session calendar: the first date on or after termStart falling on weekday,
// then every 7 days through termEnd inclusive. All sessions start Active.
//
// An empty result is valid, not an error: it means no occurrence of weekday
// fits inside the term (including termStart after termEnd).
func GenerateSessions(course string, termStart, termEnd time.Time, weekday time.Weekday) []Session {
	d := termStart
	for d.Weekday() != weekday {
		d = d.AddDate(0, 0, 1)
	}

	end := ISODate(termEnd)
	var sessions []Session
	for ; ISODate(d) <= end; d = d.AddDate(0, 0, 7) {
		sessions = append(sessions, Session{Course: course, Date: ISODate(d), Status: SessionActive})
	}
	return sessions
}
