package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/technobid/auction-backend/internal/auth"
	"github.com/technobid/auction-backend/internal/authority"
	"github.com/technobid/auction-backend/internal/config"
	"github.com/technobid/auction-backend/internal/engine"
	"github.com/technobid/auction-backend/internal/httpapi"
	"github.com/technobid/auction-backend/internal/hub"
	"github.com/technobid/auction-backend/internal/logging"
	"github.com/technobid/auction-backend/internal/metrics"
	"github.com/technobid/auction-backend/internal/seed"
	"github.com/technobid/auction-backend/internal/store"
	"github.com/technobid/auction-backend/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "auction-server:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	rec, metricsHandler, metricsShutdown, err := metrics.Setup(ctx, metrics.TelemetryConfig{
		Enabled:      cfg.MetricsEnabled,
		ServiceName:  "auction-backend",
		OtlpEndpoint: cfg.OtlpEndpoint,
		OtlpInsecure: cfg.OtlpInsecure,
	})
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	st, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	initial, version, err := buildState(ctx, cfg, st, log)
	if err != nil {
		return multierr.Append(err, closeStore())
	}

	authn, err := auth.New(auth.Options{
		Username:     cfg.AdminUsername,
		Password:     cfg.AdminPassword,
		PasswordHash: cfg.AdminPasswordHash,
		Secret:       cfg.JWTSecret,
		TTL:          cfg.JWTTTL,
	})
	if err != nil {
		return multierr.Append(err, closeStore())
	}

	// the actors outlive the signal so in-flight requests drain first
	actors, stopActors := context.WithCancel(context.WithoutCancel(ctx))
	defer stopActors()
	h := hub.NewHub(actors, log.Named("hub"), rec)
	a := authority.New(actors, initial, authority.Options{
		Store:       st,
		Broadcaster: h,
		Logger:      log.Named("authority"),
		Metrics:     rec,
		Version:     version,
	})
	sockets := ws.NewServer(ws.Options{
		Hub:            h,
		Authority:      a,
		Store:          st,
		Verifier:       authn,
		Logger:         log.Named("ws"),
		Metrics:        rec,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Authority:      a,
			Store:          st,
			Auth:           authn,
			Events:         sockets.Events(),
			Feed:           sockets.Feed(),
			MetricsHandler: metricsHandler,
			Metrics:        rec,
			Logger:         log,
			RequestTimeout: cfg.RequestTimeout,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(sctx)
		stopActors()
		<-a.Done()
		<-h.Done()
		return multierr.Combine(err, metricsShutdown(sctx), closeStore())
	})
	return g.Wait()
}

// openStore builds the in-memory store, mirrored to postgres when
// DATABASE_URL is set.
func openStore(cfg config.Config, log *zap.Logger) (*store.Memory, func() error, error) {
	noop := func() error { return nil }
	if cfg.DatabaseURL == "" {
		log.Info("no DATABASE_URL, documents live in memory only")
		return store.NewMemory(store.WithLogger(log.Named("store"))), noop, nil
	}
	db, err := store.OpenPostgres(cfg.DatabaseURL, log)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	mirror, err := store.NewGormMirror(db)
	if err != nil {
		return nil, nil, multierr.Append(err, sqlDB.Close())
	}
	return store.NewMemory(store.WithMirror(mirror), store.WithLogger(log.Named("store"))), sqlDB.Close, nil
}

// buildState seeds the registry and catalogue and overlays whatever the
// mirror persisted from a previous run.
func buildState(ctx context.Context, cfg config.Config, st *store.Memory, log *zap.Logger) (engine.State, uint64, error) {
	s, err := seed.Load(cfg.SeedFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn("seed file not found, starting empty", zap.String("path", cfg.SeedFile))
	case err != nil:
		return engine.State{}, 0, err
	}

	rules := engine.DefaultRules()
	rules.BidIncrement = cfg.BidIncrement
	rules.TimerSeconds = cfg.BidTimerSeconds
	rules.ResetTimerOnBid = cfg.ResetTimerOnBid
	rules.InitialPurse = cfg.InitialPurse
	base := engine.NewState(rules, s.Participants, s.Catalogue)

	docs, err := st.Restore(ctx)
	if err != nil {
		return engine.State{}, 0, err
	}
	if len(docs) == 0 {
		return base, 0, nil
	}
	restored, version, err := authority.Restore(base, docs)
	if err != nil {
		return engine.State{}, 0, err
	}
	log.Info("state restored",
		zap.Int("documents", len(docs)),
		zap.Uint64("version", version),
		zap.String("lobby", string(restored.Lobby)),
	)
	return restored, version, nil
}
