package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mediplan/backend/internal/config"
	"mediplan/backend/internal/notify"
	"mediplan/backend/internal/scheduling"
	"mediplan/backend/internal/store/postgres"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "mediplan-scheduler"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "mediplan-scheduler"),
	)
	slog.SetDefault(log)

	log.Info("starting", slog.String("log_level", cfg.LogLevel), slog.Duration("sweep_interval", cfg.SweepInterval))

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	policy := scheduling.Policy{
		WorkingHoursStart:  cfg.WorkingHoursStart,
		WorkingHoursEnd:    cfg.WorkingHoursEnd,
		LunchStart:         cfg.LunchStart,
		LunchEnd:           cfg.LunchEnd,
		MaxDuration:        cfg.MaxDuration,
		SuggestionStep:     cfg.SuggestionStep,
		MaxSuggestions:     cfg.MaxSuggestions,
		CandidateMultiple:  scheduling.DefaultPolicy().CandidateMultiple,
		SuggestionMaxScore: scheduling.DefaultPolicy().SuggestionMaxScore,
	}

	svc := scheduling.NewService(
		postgres.NewAppointmentRepo(db),
		postgres.NewWaitlistRepo(db),
		notify.NewLogNotifier(log),
		policy,
		log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("waitlist expiry sweep started")
	runSweepLoop(ctx, log, svc, cfg.SweepInterval, cfg.ShutdownTimeout)
	log.Info("stopped")
}

// runSweepLoop expires overdue waitlist entries on a fixed cadence until the
// context is cancelled.
func runSweepLoop(ctx context.Context, log *slog.Logger, svc *scheduling.Service, interval, shutdownTimeout time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			expired, err := svc.ExpireWaitlistEntries(sweepCtx, time.Now().UTC())
			cancel()
			if err != nil {
				log.Warn("waitlist expiry sweep failed", slog.Any("err", err))
				continue
			}
			if expired > 0 {
				log.Info("waitlist entries expired", slog.Int("count", expired))
			}
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
