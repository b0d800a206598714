package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"techsched/internal/api"
	"techsched/internal/booking"
	"techsched/internal/config"
	"techsched/internal/database"
	"techsched/internal/directory"
	"techsched/internal/events"
	"techsched/internal/intent"
	"techsched/internal/metrics"
	"techsched/internal/notify"
	"techsched/internal/slots"
)

const (
	techniciansPollInterval = 30 * time.Second
	eventQueueSize          = 256
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the booking API server",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, _, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	bus := events.NewEventBus(&logger)
	dir := directory.New(db, &logger)

	checks := []api.ReadinessCheck{{Name: "db", Check: db.PingContext}}

	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.CacheTTL() > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		dir.UseRedisCache(rdb, cfg.CacheTTL())
		checks = append(checks, api.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	if url := cfg.Events.NATS.URL; url != "" {
		fwd, err := events.ConnectNATS(url, cfg.Events.NATS.SubjectPrefix, &logger)
		if err != nil {
			logger.Warn().Err(err).Str("url", url).Msg("nats unavailable, events stay in-process")
		} else {
			defer fwd.Close()
			fwd.Attach(bus)
		}
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go serveHTTP(ctx, "metrics", fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort), mux)
	}

	gen := slots.NewGenerator(db)
	dispatcher := events.NewDispatcher(bus, eventQueueSize, &logger)
	defer dispatcher.Close()
	mgr := booking.NewManager(db, dispatcher, cfg.Storage.ReadRetries, &logger)

	tg := cfg.Notifications.Telegram
	if tg.BotToken != "" && len(tg.ChatIDs) > 0 {
		botAPI, err := notify.NewTelegramBot(tg.BotToken, notify.DefaultSendTimeout)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram notifications disabled")
		} else {
			notify.NewTelegramNotifier(botAPI, tg.ChatIDs, db.Location(), &logger).Attach(bus)
			if tg.DailyDigest {
				go notify.NewDigest(botAPI, tg.ChatIDs, mgr, db.Location(), tg.DigestHour, &logger).Start(ctx)
			}
		}
	}

	proc := intent.NewProcessor(mgr, dir, db.Location(), &logger)
	proc.UseSuggestions(gen)

	srv := api.NewHTTPServer(dir, gen, mgr, proc, api.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		IntentRPS:      cfg.HTTP.IntentRPS,
		IntentBurst:    cfg.HTTP.IntentBurst,
		Metrics:        cfg.Monitoring.PrometheusEnabled,
		Location:       db.Location(),
	}, &logger, checks...)

	go serveHTTP(ctx, "health", fmt.Sprintf(":%d", cfg.Monitoring.HealthCheckPort), srv.HealthHandler())

	if cfg.Backup.Enabled {
		go newBackupService(db).Start(ctx)
	}

	err = config.WatchTechnicians(ctx, cfg.TechniciansPath, techniciansPollInterval, &logger, func(tc *config.TechniciansConfig) {
		if err := db.SyncTechniciansFromConfig(ctx, tc); err != nil {
			logger.Error().Err(err).Msg("technicians reload failed")
			return
		}
		if err := dir.Invalidate(ctx); err != nil {
			logger.Warn().Err(err).Msg("directory cache invalidation failed")
		}
		logger.Info().Stringer("technicians", tc).Msg("technicians reloaded")
	})
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.TechniciansPath).Msg("technicians watcher not started")
	}

	logger.Info().Str("address", cfg.HTTP.Address).Msg("techsched started")
	if err := serveHTTP(ctx, "api", cfg.HTTP.Address, srv.Handler()); err != nil {
		return err
	}
	logger.Info().Msg("techsched stopped")
	return nil
}

// serveHTTP runs an http.Server until ctx is done, then shuts it down.
func serveHTTP(ctx context.Context, name, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("http server error")
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

func newBackupService(db *database.DB) *database.BackupService {
	dir := cfg.Backup.Path
	if dir == "" {
		dir = filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
	}
	return database.NewBackupService(db, dir, cfg.BackupInterval(), cfg.BackupRetention(), &logger)
}
