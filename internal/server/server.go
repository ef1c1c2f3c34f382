package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendance-kiosk/internal/auth"
	"attendance-kiosk/internal/config"
	"attendance-kiosk/internal/holidays"
	"attendance-kiosk/internal/httpmiddleware"
	"attendance-kiosk/internal/journal"
	"attendance-kiosk/internal/kiosk"
	"attendance-kiosk/internal/model"
	"attendance-kiosk/internal/report"
)

// Kiosk is the controller the surface drives.
type Kiosk interface {
	State() kiosk.State
	SetMode(mode model.Mode) error
	SetField(ctx context.Context, field kiosk.Field, value string) (kiosk.State, error)
	Preview() (kiosk.Preview, error)
	Submit(ctx context.Context) (kiosk.State, error)
	ClearMessage() kiosk.State
	Grades() model.GradeCatalog
	GradeName(id int) string
}

// JournalLister lists journal entries.
type JournalLister interface {
	List(ctx context.Context, f journal.Filter) ([]journal.Entry, error)
}

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) bool

// Deps are the components behind the routes. Journal may be nil.
type Deps struct {
	Config   config.App
	Logger   *slog.Logger
	Kiosk    Kiosk
	Reports  report.Source
	Holidays *holidays.Manager
	Journal  JournalLister
	// Checks are reported by /healthz; any failure answers 503.
	Checks map[string]Check
	// Limiter is shared with a background sweeper when set.
	Limiter *httpmiddleware.TokenBucket
}

type handler struct {
	Deps
	now func() time.Time
}

// New builds the gin engine.
func New(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Limiter == nil {
		d.Limiter = httpmiddleware.NewTokenBucket(d.Config.RateLimitPerMin, d.Config.RateLimitPerMin)
	}
	h := &handler{Deps: d, now: time.Now}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(d.Logger, "/healthz", "/metrics"))
	r.Use(cors.New(corsConfig(d.Config.CORSOrigins)))
	r.Use(securityHeaders())
	r.Use(d.Limiter.GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.health)

	v1 := r.Group("/v1")
	v1.GET("/state", h.state)
	v1.POST("/mode", h.setMode)
	v1.PATCH("/draft", h.editDraft)
	v1.GET("/draft/preview", h.preview)
	v1.POST("/register", h.register)
	v1.DELETE("/message", h.clearMessage)
	v1.GET("/grades", h.grades)

	admin := v1.Group("/admin", auth.OperatorAuth(d.Config.JWTSigningKey, d.Config.JWTIssuer))
	admin.GET("/attendance", h.attendance)
	admin.GET("/attendance/export", h.exportAbsences)
	admin.GET("/non-working-days", h.listDays)
	admin.POST("/non-working-days", h.addDay)
	admin.DELETE("/non-working-days/:id", h.deleteDay)
	admin.DELETE("/banner", h.dismissBanner)
	admin.GET("/journal", h.listJournal)

	return r
}

// Run serves handler on addr until ctx ends, then drains for up to ten
// seconds.
func Run(ctx context.Context, addr string, handler http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server exited")
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Cache-Control", "no-store")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// requestLogger logs one line per request, tagged with a request id.
func requestLogger(log *slog.Logger, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)

		started := time.Now()
		c.Next()
		if skipped[c.Request.URL.Path] {
			return
		}
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(started),
			"client", c.ClientIP(),
			"request_id", id,
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		switch {
		case c.Writer.Status() >= 500:
			log.Error("request", attrs...)
		case c.Writer.Status() >= 400:
			log.Warn("request", attrs...)
		default:
			log.Info("request", attrs...)
		}
	}
}
