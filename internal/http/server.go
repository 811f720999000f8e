package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"budgetbook/internal/log"
	"budgetbook/internal/services"
)

type Options struct {
	// RateLimit is the number of mutating requests a client may send per
	// minute. Zero means 60.
	RateLimit int
	Logger    *log.Logger
}

type Server struct {
	http.Server
	profiles    *services.ProfileService
	logger      *log.Logger
	rateLimiter *rateLimiter
	security    *securityMetrics

	started  time.Time
	requests int64

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, profiles *services.ProfileService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		profiles:    profiles,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(opts.RateLimit),
		security:    &securityMetrics{},
		started:     time.Now(),
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/profiles", s.handleListProfiles)
	mux.HandleFunc("POST /api/profiles", s.handleCreateProfile)
	mux.HandleFunc("GET /api/profiles/{profile}", s.handleGetProfile)
	mux.HandleFunc("DELETE /api/profiles/{profile}", s.handleDeleteProfile)

	mux.HandleFunc("POST /api/profiles/{profile}/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/profiles/{profile}/accounts/{account}/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/profiles/{profile}/accounts/{account}/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PATCH /api/profiles/{profile}/accounts/{account}/transactions/{id}", s.handlePatchTransaction)
	mux.HandleFunc("PUT /api/profiles/{profile}/accounts/{account}/distribution", s.handleSetDistribution)
	mux.HandleFunc("POST /api/profiles/{profile}/accounts/{account}/import", s.handleImport)

	mux.HandleFunc("GET /api/profiles/{profile}/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/profiles/{profile}/categories", s.handleAddCategory)

	mux.HandleFunc("GET /api/profiles/{profile}/budget", s.handleListPeriods)
	mux.HandleFunc("POST /api/profiles/{profile}/budget", s.handleCreateBudget)
	mux.HandleFunc("POST /api/profiles/{profile}/budget/next", s.handleNextPeriod)
	mux.HandleFunc("GET /api/profiles/{profile}/budget/{period}", s.handleMonthReport)
	mux.HandleFunc("PUT /api/profiles/{profile}/budget/{period}/percentages", s.handleSetPercentage)
	mux.HandleFunc("POST /api/profiles/{profile}/budget/{period}/transfers", s.handleAddTransfer)
	mux.HandleFunc("GET /api/profiles/{profile}/budget/{period}/expenses.png", s.handleExpenseChart)

	mux.HandleFunc("GET /api/profiles/{profile}/years/{year}", s.handleYearSummary)
	mux.HandleFunc("GET /api/profiles/{profile}/years/{year}/chart.png", s.handleYearChart)

	s.Handler = s.withMiddleware(mux)
	return s
}

// Shutdown stops the rate limiter cleanup and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// withMiddleware tags each request with an ID and a logger, sets security
// headers, rate limits mutating requests and logs completion.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		atomic.AddInt64(&s.requests, 1)

		clientIP := extractClientIP(r)
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > 64 {
			requestID = generateRequestID()
		}

		logger := s.logger.With(log.FieldRequestID, requestID)
		ctx := log.NewContext(r.Context(), logger)
		r = r.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		setSecurityHeaders(w)

		if detectSuspiciousRequest(r, s.security) {
			logger.WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			TooManyRequestsError().Write(rw)
		} else {
			next.ServeHTTP(rw, r)
		}

		log.NewStructuredLogger(logger).LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}
