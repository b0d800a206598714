package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"techsched/internal/booking"
	"techsched/internal/directory"
	"techsched/internal/intent"
	"techsched/internal/slots"
)

// Options tunes the HTTP surface.
type Options struct {
	AllowedOrigins []string
	IntentRPS      float64
	IntentBurst    int
	Metrics        bool
	Location       *time.Location
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HTTPServer exposes the booking engine over JSON/HTTP.
type HTTPServer struct {
	router    chi.Router
	directory *directory.Directory
	slots     *slots.Generator
	manager   *booking.Manager
	processor *intent.Processor
	ready     []ReadinessCheck
	limiter   *rate.Limiter
	opts      Options
	logger    *zerolog.Logger
}

func NewHTTPServer(
	dir *directory.Directory,
	gen *slots.Generator,
	mgr *booking.Manager,
	proc *intent.Processor,
	opts Options,
	logger *zerolog.Logger,
	ready ...ReadinessCheck,
) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	limit := rate.Inf
	if opts.IntentRPS > 0 {
		limit = rate.Limit(opts.IntentRPS)
	}
	if opts.IntentBurst <= 0 {
		opts.IntentBurst = 1
	}

	s := &HTTPServer{
		directory: dir,
		slots:     gen,
		manager:   mgr,
		processor: proc,
		ready:     ready,
		limiter:   rate.NewLimiter(limit, opts.IntentBurst),
		opts:      opts,
		logger:    logger,
	}
	s.router = s.routes()
	return s
}

func (s *HTTPServer) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors(s.opts.AllowedOrigins))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.opts.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/technicians", s.handleListTechnicians)
	r.Get("/technicians/{id}/availability", s.handleTechnicianAvailability)

	r.With(s.rateLimit).Post("/process-request", s.handleProcessRequest)

	r.Route("/bookings", func(r chi.Router) {
		r.Get("/", s.handleListBookings)
		r.Delete("/all", s.handleDeleteAllBookings)
		r.Get("/{id}", s.handleGetBooking)
		r.Delete("/{id}", s.handleDeleteBooking)
	})

	return r
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// HealthHandler serves only /healthz and /readyz, for a separate ops port.
func (s *HTTPServer) HealthHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	return mux
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	for _, c := range s.ready {
		if err := c.Check(ctx); err != nil {
			s.logger.Warn().Err(err).Str("check", c.Name).Msg("readiness check failed")
			http.Error(w, c.Name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
