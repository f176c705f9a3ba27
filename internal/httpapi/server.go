// Package httpapi exposes the attendance engine over the single-endpoint
// action dispatch the clients already speak: POST /api and GET /api with an
// action parameter, JSON in, JSON out. Domain failures come back as a tagged
// {"error": ...} payload on a successful transport response.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/config"
	"rollcall/internal/geo"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/qr"
	"rollcall/internal/queue"
	"rollcall/internal/store"
)

var (
	checkinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_checkins_total",
		Help: "Check-in requests by outcome.",
	}, []string{"outcome"})
	coursesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_courses_created_total",
		Help: "Courses created.",
	})
)

// Server wires the attendance service to gin.
type Server struct {
	svc   *attendance.Service
	cfg   config.App
	queue queue.Queue
	db    *store.DB
	redis *store.Redis
}

// New creates a server. db and redis may be nil when the memory backends are
// configured; healthz reports them accordingly.
func New(svc *attendance.Service, cfg config.App, q queue.Queue, db *store.DB, redis *store.Redis) *Server {
	return &Server{svc: svc, cfg: cfg, queue: q, db: db, redis: redis}
}

// Router builds the gin engine with the teacher's middleware stack.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(s.cfg.RateLimitPerMin, s.cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.handleHealthz)
	r.POST("/api", s.dispatchPost)
	r.GET("/api", s.dispatchGet)
	return r
}

// flexInt tolerates the legacy client sending weekday as either a JSON
// number or a quoted string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return errors.New("empty number")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type rosterItem struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

type apiRequest struct {
	Action       string       `json:"action"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	TeacherEmail string       `json:"teacherEmail"`
	Course       string       `json:"course"`
	Class        string       `json:"class"`     // legacy alias on uploadRoster
	ClassName    string       `json:"className"` // legacy alias from the student form
	Date         string       `json:"date"`
	Status       string       `json:"status"`
	Number       string       `json:"number"`
	Start        string       `json:"start"`
	End          string       `json:"end"`
	Day          *flexInt     `json:"day"`
	Roster       []rosterItem `json:"roster"`
}

func (req *apiRequest) courseName() string {
	switch {
	case req.Course != "":
		return req.Course
	case req.Class != "":
		return req.Class
	}
	return req.ClassName
}

func (s *Server) dispatchPost(c *gin.Context) {
	var req apiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// The legacy client sometimes carries the action as a query parameter
	// instead of a body field.
	if a := c.Query("action"); a != "" {
		req.Action = a
	}

	switch req.Action {
	case "login":
		s.handleLogin(c, req)
	case "createCourse":
		s.handleCreateCourse(c, req)
	case "updateSessionStatus":
		s.handleUpdateSessionStatus(c, req)
	case "uploadRoster":
		s.handleUploadRoster(c, req)
	case "recordAttendance":
		s.handleRecordAttendance(c, req)
	case "updateAttendanceManually":
		s.handleUpdateAttendanceManually(c, req)
	default:
		c.JSON(http.StatusOK, gin.H{"error": "Invalid action"})
	}
}

func (s *Server) dispatchGet(c *gin.Context) {
	switch c.Query("action") {
	case "getCourses":
		s.handleGetCourses(c)
	case "getSessions":
		s.handleGetSessions(c)
	case "getRoster":
		s.handleGetRoster(c)
	case "getSessionAttendance":
		s.handleGetSessionAttendance(c)
	case "getStudentStats":
		s.handleGetStudentStats(c)
	case "getCheckinLink":
		s.handleGetCheckinLink(c)
	default:
		c.JSON(http.StatusOK, gin.H{"error": "Invalid action"})
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx := c.Request.Context()
	dbHealthy := s.db == nil || s.db.Healthy(ctx)
	redisHealthy := s.redis == nil || s.redis.Healthy(ctx)
	status := http.StatusOK
	if !dbHealthy || !redisHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy})
}

// handleLogin registers the teacher by email and issues a token pair. There
// is no password step; access control across the whole API is advisory, the
// same trust model the clients were built against.
func (s *Server) handleLogin(c *gin.Context, req apiRequest) {
	teacher, err := s.svc.RegisterTeacher(c.Request.Context(), req.Email, req.Name)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	tokens, err := auth.Issue(teacher.Email, teacher.Name, s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.AccessTTL, s.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Login successful",
		"email":         teacher.Email,
		"name":          teacher.Name,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// requireTeacher validates the bearer token on teacher-only actions.
func (s *Server) requireTeacher(c *gin.Context) (auth.Claims, bool) {
	authz := c.GetHeader("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return auth.Claims{}, false
	}
	claims, err := auth.Parse(strings.TrimSpace(authz[len("bearer "):]), s.cfg.JWTSigningKey, s.cfg.JWTIssuer)
	if err != nil || claims.Role != auth.RoleTeacher {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return auth.Claims{}, false
	}
	return claims, true
}

func (s *Server) handleCreateCourse(c *gin.Context, req apiRequest) {
	claims, ok := s.requireTeacher(c)
	if !ok {
		return
	}
	teacherEmail := req.TeacherEmail
	if teacherEmail == "" {
		teacherEmail = claims.Subject
	}
	if !strings.EqualFold(teacherEmail, claims.Subject) {
		c.JSON(http.StatusForbidden, gin.H{"error": "teacher mismatch"})
		return
	}
	if req.Day == nil {
		c.JSON(http.StatusOK, gin.H{"error": "day is required"})
		return
	}
	count, err := s.svc.CreateCourse(c.Request.Context(), req.Name, req.Start, req.End, int(*req.Day), teacherEmail)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	coursesCreatedTotal.Inc()
	c.JSON(http.StatusOK, gin.H{"message": "Course created", "count": count})
}

func (s *Server) handleUpdateSessionStatus(c *gin.Context, req apiRequest) {
	if _, ok := s.requireTeacher(c); !ok {
		return
	}
	if err := s.svc.UpdateSessionStatus(c.Request.Context(), req.courseName(), req.Date, req.Status); err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Updated"})
}

func (s *Server) handleUploadRoster(c *gin.Context, req apiRequest) {
	if _, ok := s.requireTeacher(c); !ok {
		return
	}
	course := req.courseName()
	if course == "" {
		course = c.Query("class")
	}
	entries := make([]attendance.RosterEntry, 0, len(req.Roster))
	for _, item := range req.Roster {
		entries = append(entries, attendance.RosterEntry{StudentName: item.Name, StudentNumber: item.Number})
	}
	if err := s.svc.UploadRoster(c.Request.Context(), course, entries); err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Roster saved", "result": "roster_saved"})
}

func (s *Server) handleRecordAttendance(c *gin.Context, req apiRequest) {
	res, err := s.svc.CheckIn(c.Request.Context(), req.courseName(), req.Name, req.Number, time.Now())
	if err != nil {
		checkinsTotal.WithLabelValues("rejected").Inc()
		s.respondErr(c, err)
		return
	}
	checkinsTotal.WithLabelValues(string(res.Outcome)).Inc()

	if res.Outcome == attendance.OutcomeRecorded && s.queue != nil {
		body, _ := json.Marshal(checkinEvent{
			Course: attendance.NormalizeCourse(req.courseName()),
			Number: req.Number,
			Date:   attendance.ISODate(time.Now()),
		})
		if err := s.queue.Publish(c.Request.Context(), queue.Message{Type: "checkin", Body: body}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"result": res.Outcome, "stats": res.Stats})
}

// checkinEvent is the queue payload the audit worker consumes.
type checkinEvent struct {
	Course string `json:"course"`
	Number string `json:"number"`
	Date   string `json:"date"`
}

func (s *Server) handleUpdateAttendanceManually(c *gin.Context, req apiRequest) {
	if _, ok := s.requireTeacher(c); !ok {
		return
	}
	status, err := attendance.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}
	outcome, err := s.svc.SetStatus(c.Request.Context(), req.courseName(), req.Date, req.Number, req.Name, status)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": outcome, "status": status})
}

func (s *Server) handleGetCourses(c *gin.Context) {
	courses, err := s.svc.CoursesByTeacher(c.Request.Context(), c.Query("email"))
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

func (s *Server) handleGetSessions(c *gin.Context) {
	sessions, err := s.svc.Sessions(c.Request.Context(), c.Query("course"))
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) handleGetRoster(c *gin.Context) {
	course := c.Query("course")
	if course == "" {
		course = c.Query("class")
	}
	roster, err := s.svc.Roster(c.Request.Context(), course)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roster": roster})
}

func (s *Server) handleGetSessionAttendance(c *gin.Context) {
	students, err := s.svc.ReconcileSession(c.Request.Context(), c.Query("course"), c.Query("date"))
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (s *Server) handleGetStudentStats(c *gin.Context) {
	stats, err := s.svc.StatsForStudent(c.Request.Context(), c.Query("number"))
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// handleGetCheckinLink builds the URL a session QR code should encode. When
// the teacher's position is supplied the link carries it so the student
// client can apply the geofence before submitting; the server itself never
// re-validates location.
func (s *Server) handleGetCheckinLink(c *gin.Context) {
	course := strings.TrimSpace(c.Query("course"))
	if course == "" {
		c.JSON(http.StatusOK, gin.H{"error": "course is required"})
		return
	}
	var loc *geo.Coord
	if latStr, lonStr := c.Query("lat"), c.Query("lon"); latStr != "" && lonStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lon, errLon := strconv.ParseFloat(lonStr, 64)
		if errLat != nil || errLon != nil {
			c.JSON(http.StatusOK, gin.H{"error": "invalid coordinates"})
			return
		}
		loc = &geo.Coord{Lat: lat, Lon: lon}
	}
	c.JSON(http.StatusOK, gin.H{
		"url":          qr.CheckInURL(s.cfg.PublicBaseURL, course, loc),
		"fence_meters": s.cfg.GeoFenceMeters,
	})
}

func (s *Server) respondErr(c *gin.Context, err error) {
	var ve *attendance.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, attendance.ErrNotEnrolled),
		errors.Is(err, attendance.ErrDuplicateCourse),
		errors.Is(err, attendance.ErrSessionNotFound):
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
