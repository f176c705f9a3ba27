package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/queue"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.App{
		JWTIssuer:       "rollcall-test",
		JWTSigningKey:   "test-secret",
		AccessTTL:       time.Hour,
		RefreshTTL:      24 * time.Hour,
		RateLimitPerMin: 10000,
		PublicBaseURL:   "http://localhost:8080",
		GeoFenceMeters:  150,
	}
	svc := attendance.NewService(attendance.NewMemStore(), nil)
	return New(svc, cfg, queue.NewInMemory(64), nil, nil).Router()
}

func doPost(t *testing.T, r *gin.Engine, token string, body map[string]any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code, decode(t, w)
}

func doGet(t *testing.T, r *gin.Engine, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code, decode(t, w)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return out
}

func login(t *testing.T, r *gin.Engine) string {
	t.Helper()
	code, resp := doPost(t, r, "", map[string]any{
		"action": "login", "email": "teacher@example.com", "name": "T. Teacher",
	})
	if code != http.StatusOK {
		t.Fatalf("login status %d: %v", code, resp)
	}
	token, _ := resp["access_token"].(string)
	if token == "" {
		t.Fatalf("no access token in %v", resp)
	}
	return token
}

func seedCourse(t *testing.T, r *gin.Engine, token string) {
	t.Helper()
	code, resp := doPost(t, r, token, map[string]any{
		"action": "createCourse", "name": "Math101",
		"start": "2024-01-01", "end": "2024-01-22", "day": 1,
		"teacherEmail": "teacher@example.com",
	})
	if code != http.StatusOK || resp["error"] != nil {
		t.Fatalf("create course: %d %v", code, resp)
	}
	if resp["count"].(float64) != 4 {
		t.Fatalf("expected 4 sessions, got %v", resp["count"])
	}
	code, resp = doPost(t, r, token, map[string]any{
		"action": "uploadRoster", "course": "Math101",
		"roster": []map[string]string{
			{"name": "Ana", "number": "123"},
			{"name": "Ben", "number": "456"},
		},
	})
	if code != http.StatusOK || resp["error"] != nil {
		t.Fatalf("upload roster: %d %v", code, resp)
	}
}

func TestTeacherActionsRequireToken(t *testing.T) {
	r := newTestRouter(t)
	for _, action := range []string{"createCourse", "updateSessionStatus", "uploadRoster", "updateAttendanceManually"} {
		code, _ := doPost(t, r, "", map[string]any{"action": action})
		if code != http.StatusUnauthorized {
			t.Fatalf("%s without token: expected 401, got %d", action, code)
		}
	}
}

func TestCheckInFlow(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r)
	seedCourse(t, r, token)

	code, resp := doPost(t, r, "", map[string]any{
		"action": "recordAttendance", "course": "Math101", "name": "Ana", "number": "123",
	})
	if code != http.StatusOK {
		t.Fatalf("check-in status %d", code)
	}
	if resp["result"] != "success" {
		t.Fatalf("expected success, got %v", resp)
	}
	stats := resp["stats"].(map[string]any)
	if stats["attended"].(float64) != 1 {
		t.Fatalf("expected attended=1, got %v", stats)
	}

	// Repeat scan reports already_recorded with unchanged stats.
	_, resp = doPost(t, r, "", map[string]any{
		"action": "recordAttendance", "course": "Math101", "name": "Ana", "number": "123",
	})
	if resp["result"] != "already_recorded" {
		t.Fatalf("expected already_recorded, got %v", resp)
	}
}

func TestCheckInNotEnrolledIsTaggedError(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r)
	seedCourse(t, r, token)

	code, resp := doPost(t, r, "", map[string]any{
		"action": "recordAttendance", "course": "Math101", "name": "Eve", "number": "999",
	})
	// Domain failures ride a successful transport response as a tagged
	// error payload.
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp["error"] == nil {
		t.Fatalf("expected tagged error, got %v", resp)
	}
}

func TestDuplicateCourseName(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r)
	seedCourse(t, r, token)

	code, resp := doPost(t, r, token, map[string]any{
		"action": "createCourse", "name": "Math101",
		"start": "2024-02-01", "end": "2024-03-01", "day": 2,
		"teacherEmail": "teacher@example.com",
	})
	if code != http.StatusOK || resp["error"] == nil {
		t.Fatalf("expected tagged duplicate error, got %d %v", code, resp)
	}
}

func TestWeekdayAcceptsStringOrNumber(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r)

	code, resp := doPost(t, r, token, map[string]any{
		"action": "createCourse", "name": "CS1",
		"start": "2024-01-01", "end": "2024-01-22", "day": "1",
		"teacherEmail": "teacher@example.com",
	})
	if code != http.StatusOK || resp["error"] != nil {
		t.Fatalf("string day rejected: %d %v", code, resp)
	}
	if resp["count"].(float64) != 4 {
		t.Fatalf("expected 4 sessions, got %v", resp["count"])
	}
}

func TestManualOverrideAndReconcile(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r)
	seedCourse(t, r, token)

	doPost(t, r, "", map[string]any{
		"action": "recordAttendance", "course": "Math101", "name": "Ana", "number": "123",
	})

	today := time.Now().Format("2006-01-02")
	code, resp := doPost(t, r, token, map[string]any{
		"action": "updateAttendanceManually", "course": "Math101",
		"date": today, "number": "123", "status": "Absent",
	})
	if code != http.StatusOK || resp["message"] != "Removed" {
		t.Fatalf("expected Removed, got %d %v", code, resp)
	}

	_, resp = doGet(t, r, "/api?action=getSessionAttendance&course=Math101&date="+today)
	students := resp["students"].([]any)
	if len(students) != 2 {
		t.Fatalf("expected 2 reconciled rows, got %d", len(students))
	}
	first := students[0].(map[string]any)
	if first["number"] != "123" || first["status"] != "Absent" {
		t.Fatalf("expected 123 Absent first, got %v", first)
	}
}

func TestGetActions(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r)
	seedCourse(t, r, token)

	code, resp := doGet(t, r, "/api?action=getSessions&course=Math101")
	if code != http.StatusOK {
		t.Fatalf("getSessions status %d", code)
	}
	if sessions := resp["sessions"].([]any); len(sessions) != 4 {
		t.Fatalf("expected 4 sessions, got %d", len(sessions))
	}

	_, resp = doGet(t, r, "/api?action=getCourses&email=teacher@example.com")
	if courses := resp["courses"].([]any); len(courses) != 1 {
		t.Fatalf("expected 1 course, got %v", resp)
	}

	_, resp = doGet(t, r, "/api?action=getRoster&course=Math101")
	if roster := resp["roster"].([]any); len(roster) != 2 {
		t.Fatalf("expected 2 roster entries, got %v", resp)
	}

	_, resp = doGet(t, r, "/api?action=getStudentStats&number=123")
	if stats := resp["stats"].([]any); len(stats) != 1 {
		t.Fatalf("expected stats for 1 course, got %v", resp)
	}

	_, resp = doGet(t, r, "/api?action=getCheckinLink&course=Math101&lat=41.1&lon=29.02")
	url, _ := resp["url"].(string)
	if url == "" {
		t.Fatalf("expected check-in url, got %v", resp)
	}

	_, resp = doGet(t, r, "/api?action=doesNotExist")
	if resp["error"] != "Invalid action" {
		t.Fatalf("expected Invalid action, got %v", resp)
	}
}
