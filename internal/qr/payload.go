// Package qr builds the check-in URL embedded in a session QR code.
// Rendering the code image is the client's job; the service only defines the
// payload.
package qr

import (
	"net/url"
	"strconv"
	"strings"

	"rollcall/internal/geo"
)

// CheckInURL returns the student check-in link for a course. When the
// teacher's position is supplied it rides along as lat/lon query parameters
// so the client can apply the geofence before submitting.
func CheckInURL(baseURL, course string, teacherLoc *geo.Coord) string {
	base := strings.TrimRight(baseURL, "/")
	q := url.Values{}
	q.Set("class", course)
	if teacherLoc != nil {
		q.Set("lat", strconv.FormatFloat(teacherLoc.Lat, 'f', -1, 64))
		q.Set("lon", strconv.FormatFloat(teacherLoc.Lon, 'f', -1, 64))
	}
	return base + "/student.html?" + q.Encode()
}
