package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"usaha/internal/cache"
	"usaha/internal/calendar"
	"usaha/internal/log"
	"usaha/internal/metrics"
	"usaha/internal/middleware/auth"
	"usaha/internal/middleware/ratelimit"
	"usaha/internal/middleware/security"
	"usaha/internal/middleware/trace"
	"usaha/internal/reminder"
	"usaha/internal/store"
)

const (
	reportCacheSize = 500
	cleanupInterval = 10 * time.Minute
	readyTimeout    = 2 * time.Second
)

// Profiles stores where signed-in owners receive reminders.
type Profiles interface {
	SetProfile(ctx context.Context, owner string, r reminder.Recipient) error
	Recipient(ctx context.Context, owner string) (reminder.Recipient, error)
}

// Deps are the collaborators the server needs. Stores and Auth are
// required; the rest may be left zero.
type Deps struct {
	Stores         *store.Manager
	Auth           *auth.Authenticator
	Profiles       Profiles
	Tokens         *calendar.TokenCache
	Metrics        *metrics.Metrics
	Logger         *log.Logger
	Location       *time.Location
	LookaheadDays  int
	RateLimitRPM   int
	ReportCacheTTL time.Duration
	// Ready reports whether backing services answer; nil means always ready.
	Ready func(ctx context.Context) error
	Now   func() time.Time
}

type Server struct {
	http.Server
	stores    *store.Manager
	auth      *auth.Authenticator
	profiles  Profiles
	tokens    *calendar.TokenCache
	metrics   *metrics.Metrics
	logger    *log.Logger
	loc       *time.Location
	lookahead int
	validate  *validator.Validate
	ready     func(ctx context.Context) error
	now       func() time.Time

	limiter     *ratelimit.Limiter
	detector    *security.Detector
	reportCache *cache.LRUCache[reportResponse]
	caches      *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	lookahead := deps.LookaheadDays
	if lookahead <= 0 {
		lookahead = reminder.DefaultLookaheadDays
	}
	ttl := deps.ReportCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	s := &Server{
		stores:      deps.Stores,
		auth:        deps.Auth,
		profiles:    deps.Profiles,
		tokens:      deps.Tokens,
		metrics:     deps.Metrics,
		logger:      logger.WithComponent(log.ComponentHTTP),
		loc:         loc,
		lookahead:   lookahead,
		validate:    newValidator(),
		ready:       deps.Ready,
		now:         now,
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitRPM}),
		detector:    security.NewDetector(true, logger),
		reportCache: cache.NewLRUCache[reportResponse](reportCacheSize, ttl),
		caches:      cache.NewManager(logger),
	}
	s.caches.Register(s.reportCache)
	if s.stores != nil {
		s.caches.Register(s.stores)
	}
	if s.tokens != nil {
		s.caches.Register(s.tokens.Cleaner())
	}
	s.caches.StartCleanup(cleanupInterval)

	mux := http.NewServeMux()
	s.routes(mux)

	tracer := trace.NewMiddleware(s.detector.ExtractClientIP, logger)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(mux)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           tracer.Middleware(headers.Middleware(s.detector.Middleware(limited))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.Handle("GET /healthz", s.instrument("GET /healthz", http.HandlerFunc(handleHealth)))
	mux.Handle("GET /readyz", s.instrument("GET /readyz", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", s.metrics.Handler())

	api := map[string]http.HandlerFunc{
		"GET /api/businesses":               s.handleListBusinesses,
		"POST /api/businesses":              s.handleCreateBusiness,
		"GET /api/businesses/{id}":          s.handleGetBusiness,
		"PATCH /api/businesses/{id}":        s.handleRenameBusiness,
		"DELETE /api/businesses/{id}":       s.handleDeleteBusiness,
		"GET /api/businesses/{id}/jobs":     s.handleListJobs,
		"POST /api/businesses/{id}/jobs":    s.handleAddJob,
		"GET /api/businesses/{id}/schedule": s.handleSchedule,

		"PUT /api/businesses/{id}/jobs/{jobID}":         s.handleUpdateJob,
		"DELETE /api/businesses/{id}/jobs/{jobID}":      s.handleDeleteJob,
		"POST /api/businesses/{id}/jobs/{jobID}/toggle": s.handleToggleJob,
		"POST /api/businesses/{id}/jobs/{jobID}/detach": s.handleDetachJob,

		"POST /api/businesses/{id}/incomes":             s.handleAddIncome,
		"PUT /api/businesses/{id}/incomes/{itemID}":     s.handleUpdateIncome,
		"DELETE /api/businesses/{id}/incomes/{itemID}":  s.handleDeleteIncome,
		"POST /api/businesses/{id}/expenses":            s.handleAddExpense,
		"PUT /api/businesses/{id}/expenses/{itemID}":    s.handleUpdateExpense,
		"DELETE /api/businesses/{id}/expenses/{itemID}": s.handleDeleteExpense,
		"POST /api/businesses/{id}/labels":              s.handleAddLabel,
		"PUT /api/businesses/{id}/labels/{itemID}":      s.handleUpdateLabel,
		"DELETE /api/businesses/{id}/labels/{itemID}":   s.handleDeleteLabel,

		"GET /api/businesses/{id}/report":         s.handleReport,
		"GET /api/businesses/{id}/reminders":      s.handleReminders,
		"POST /api/businesses/{id}/reminders/ack": s.handleAckReminders,
		"GET /api/businesses/{id}/calendar.ics":   s.handleICS,

		"PUT /api/calendar/token":    s.handlePutCalendarToken,
		"DELETE /api/calendar/token": s.handleDeleteCalendarToken,
		"GET /api/profile":           s.handleGetProfile,
		"PUT /api/profile":           s.handlePutProfile,
	}
	authenticate := s.auth.Middleware(s.onAuthError)
	for pattern, h := range api {
		mux.Handle(pattern, s.instrument(pattern, authenticate(h)))
	}
}

// instrument records request count and latency under the route pattern,
// which keeps label cardinality bounded.
func (s *Server) instrument(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.ObserveRequest(r.Method, pattern, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rec *statusRecorder) WriteHeader(code int) {
	if !rec.wroteHeader {
		rec.status = code
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

func (s *Server) onAuthError(w http.ResponseWriter, r *http.Request, err error) {
	UnauthorizedError(err.Error()).Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
