// Package server wires configuration, storage, collaborators and the HTTP
// router into a running service.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	commons "github.com/JorgeSaicoski/microservice-commons/server"
	"gorm.io/gorm"

	clients "github.com/JorgeSaicoski/timesheet-tracker/internal/client"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/config"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/directory"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/lock"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/notify"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/approvals"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/caps"
	timelogsService "github.com/JorgeSaicoski/timesheet-tracker/internal/services/timelogs"
	timersService "github.com/JorgeSaicoski/timesheet-tracker/internal/services/timers"
	timesheetsService "github.com/JorgeSaicoski/timesheet-tracker/internal/services/timesheets"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/store"
)

// Run builds the service and serves it until SIGINT or SIGTERM. Shutdown
// waits for in-flight requests up to the configured timeout. ctx bounds the
// startup work only.
func Run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	gdb, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	defer sqlDB.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, sqlDB, log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	checks := map[string]HealthCheck{"database": sqlDB.PingContext}

	locker, err := newLocker(ctx, cfg.Redis, log, checks)
	if err != nil {
		return err
	}

	sink, closeSink := newSink(cfg.RabbitMQ, log)
	defer closeSink()

	services := wire(cfg, gdb, newDirectory(cfg.Directory, gdb, log), locker, sink, log)
	router := NewRouter(cfg, services, checks, log)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Info("starting server", "addr", srv.Addr, "version", ServiceVersion)
	if err := serve(srv, cfg.Server.ShutdownTimeout); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// serve blocks until SIGINT or SIGTERM, then drains srv within timeout.
func serve(srv *http.Server, timeout time.Duration) error {
	shutdown := commons.NewShutdownManager(srv, commons.GracefulShutdownConfig{Timeout: timeout})
	if err := shutdown.StartWithGracefulShutdown(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func wire(
	cfg *config.Config,
	gdb *gorm.DB,
	dir directory.Lookup,
	locker lock.Locker,
	sink notify.Sink,
	log *slog.Logger,
) Services {
	loc := cfg.Timesheet.Location
	tx := store.NewTxManager(gdb)
	logRepo := store.NewTimeLogRepo(gdb)
	timerRepo := store.NewTimerRepo(gdb)
	sheetRepo := store.NewTimesheetRepo(gdb)
	capValidator := caps.NewValidator(logRepo, cfg.Timesheet.DailyCapHours, log)

	sheets := timesheetsService.NewService(log, tx, sheetRepo, logRepo, dir, capValidator, locker,
		loc, cfg.Timesheet.ManualStartHour, time.Now)

	return Services{
		Timers: timersService.NewService(log, tx, timerRepo, logRepo, sheetRepo, dir, capValidator, locker,
			loc, time.Now),
		TimeLogs: timelogsService.NewService(log, tx, logRepo, sheetRepo, dir, capValidator, locker,
			loc, time.Now),
		Timesheets: sheets,
		Approvals:  approvals.NewService(log, tx, sheetRepo, logRepo, sheets, dir, sink, locker, time.Now),
	}
}

// newLocker returns the Redis lock when an address is configured and the
// in-process lock otherwise.
func newLocker(ctx context.Context, cfg config.RedisConfig, log *slog.Logger, checks map[string]HealthCheck) (lock.Locker, error) {
	if cfg.Addr == "" {
		log.Warn("redis not configured, using in-process user lock")
		return lock.NewLocal(), nil
	}

	rdb, err := lock.NewRedisClient(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, err
	}
	checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	return lock.NewRedis(rdb, cfg.LockTTL, cfg.LockWait, log), nil
}

// newSink returns the RabbitMQ publisher when a URL is configured and a
// logging sink otherwise. A broker that is down at boot is retried on the
// first notification.
func newSink(cfg config.RabbitMQConfig, log *slog.Logger) (notify.Sink, func()) {
	if cfg.URL == "" {
		return notify.NewLogSink(log), func() {}
	}

	pub := notify.NewRabbitPublisher(cfg.URL, cfg.Exchange, cfg.RoutingKey, log)
	if err := pub.Connect(); err != nil {
		log.Warn("rabbitmq unavailable at startup", "err", err)
	}
	return pub, func() {
		if err := pub.Close(); err != nil {
			log.Warn("rabbitmq close", "err", err)
		}
	}
}

func newDirectory(cfg config.DirectoryConfig, gdb *gorm.DB, log *slog.Logger) directory.Lookup {
	if cfg.CoreURL != "" {
		log.Info("directory backed by core projects service", "url", cfg.CoreURL)
		return clients.NewCoreDirectoryClient(cfg.CoreURL, cfg.Timeout, log)
	}
	return store.NewDirectory(gdb)
}
