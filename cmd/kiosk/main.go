package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"attendance-kiosk/internal/apiclient"
	"attendance-kiosk/internal/camera"
	"attendance-kiosk/internal/config"
	"attendance-kiosk/internal/holidays"
	"attendance-kiosk/internal/httpmiddleware"
	"attendance-kiosk/internal/journal"
	"attendance-kiosk/internal/kiosk"
	"attendance-kiosk/internal/queue"
	"attendance-kiosk/internal/server"
	"attendance-kiosk/internal/store"
)

func main() {
	cfg := config.Load()
	log := cfg.Logger()
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("kiosk failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.App, log *slog.Logger) error {
	client := apiclient.New(cfg.APIURL, cfg.APITimeout)
	if err := client.Health(ctx); err != nil {
		log.Warn("attendance api not reachable, continuing", "url", cfg.APIURL, "error", err)
	}
	checks := map[string]server.Check{
		"api": func(ctx context.Context) bool { return client.Health(ctx) == nil },
	}

	cam, err := newCamera(cfg, log)
	if err != nil {
		return err
	}

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		rdb := store.NewRedis(cfg.RedisAddr)
		defer rdb.Close()
		q = queue.NewRedisQueue(rdb.Client, queue.DefaultKey)
		checks["redis"] = rdb.Healthy
	} else {
		q = queue.NewInMemory(256)
	}

	var (
		wg     sync.WaitGroup
		lister server.JournalLister
		pub    kiosk.Publisher
	)
	if svc, db := openJournal(ctx, cfg, log); svc != nil {
		defer db.Close()
		lister = svc
		pub = q
		checks["db"] = db.Healthy
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Run(ctx, q); err != nil {
				log.Error("journal worker failed", "error", err)
			}
		}()
	} else if cfg.QueueBackend == "redis" {
		// Another host may drain the feed.
		pub = q
	}

	ctrl := kiosk.New(client, cam, kiosk.Options{
		Interval:  cfg.CaptureInterval,
		Publisher: pub,
		Logger:    log.With("component", "kiosk"),
	})
	ctrl.Start(ctx)
	defer ctrl.Close()

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweepLimiter(ctx, limiter)
	}()

	engine := server.New(server.Deps{
		Config:   cfg,
		Logger:   log.With("component", "http"),
		Kiosk:    ctrl,
		Reports:  client,
		Holidays: holidays.NewManager(client, log.With("component", "holidays")),
		Journal:  lister,
		Checks:   checks,
		Limiter:  limiter,
	})

	err = server.Run(ctx, ":"+cfg.HTTPPort, engine, log)
	ctrl.Close()
	wg.Wait()
	return err
}

// newCamera picks the frame source: a capture command wins over a spool
// directory. Without either the kiosk runs and reports camera errors.
func newCamera(cfg config.App, log *slog.Logger) (camera.Camera, error) {
	switch {
	case cfg.CameraCommand != "":
		log.Info("camera: command", "command", cfg.CameraCommand)
		cam, err := camera.NewCommandCamera(cfg.CameraCommand, 0)
		if err != nil {
			return nil, err
		}
		return cam, nil
	case cfg.CameraDir != "":
		log.Info("camera: spool directory", "dir", cfg.CameraDir, "max_age", cfg.CameraMaxAge)
		return camera.NewDirCamera(cfg.CameraDir, cfg.CameraMaxAge), nil
	}
	log.Warn("no camera configured (CAMERA_COMMAND / CAMERA_DIR not set)")
	return camera.Unavailable{}, nil
}

// openJournal connects and migrates the journal database. A journal that
// cannot be opened is logged and skipped.
func openJournal(ctx context.Context, cfg config.App, log *slog.Logger) (*journal.Service, *store.DB) {
	if cfg.DatabaseURL == "" {
		log.Info("journal disabled (DATABASE_URL not set)")
		return nil, nil
	}
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Warn("journal db not reachable, journal disabled", "error", err)
		return nil, nil
	}
	if err := db.Migrate(ctx, "up"); err != nil {
		log.Warn("journal migrations failed, journal disabled", "error", err)
		db.Close()
		return nil, nil
	}
	repo := journal.NewRepository(db.Client)
	return journal.NewService(repo, cfg.JournalDedupWindow, log.With("component", "journal")), db
}

func sweepLimiter(ctx context.Context, l *httpmiddleware.TokenBucket) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(30 * time.Minute)
		}
	}
}
