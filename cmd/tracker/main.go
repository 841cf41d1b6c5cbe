// Command tracker serves the slot session tracker and prize wheel API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"github.com/MJE43/slot-tracker-go/internal/api"
	"github.com/MJE43/slot-tracker-go/internal/config"
	"github.com/MJE43/slot-tracker-go/internal/lib/logger"
	"github.com/MJE43/slot-tracker-go/internal/lib/logger/sl"
	"github.com/MJE43/slot-tracker-go/internal/rng"
	"github.com/MJE43/slot-tracker-go/internal/store"
	"github.com/MJE43/slot-tracker-go/internal/tracker"
	"github.com/MJE43/slot-tracker-go/internal/wheel"
	"github.com/MJE43/slot-tracker-go/internal/wheelsvc"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file read before the environment")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New(cfg.Env)
	log.Info("starting tracker", slog.String("env", cfg.Env), slog.String("version", api.Version))
	log.Debug("debug messages are enabled")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("tracker stopped", sl.Err(err))
		os.Exit(1)
	}
	log.Info("tracker stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) (err error) {
	if err := cfg.EnsureDBDir(); err != nil {
		return err
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, st.Close()) }()

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	log.Info("database ready", slog.String("path", cfg.DBPath))

	spin := wheel.SpinOptions{Rotations: cfg.Wheel.Rotations, Duration: cfg.Wheel.Duration}
	var preset *wheel.Preset
	if cfg.Wheel.PresetFile != "" {
		p, err := wheel.LoadPreset(cfg.Wheel.PresetFile)
		if err != nil {
			return err
		}
		preset = &p
		// tuning in the preset overrides the environment
		if p.Rotations > 0 {
			spin.Rotations = p.Rotations
		}
		if p.Duration > 0 {
			spin.Duration = p.Duration
		}
		log.Info("wheel preset loaded", slog.String("file", cfg.Wheel.PresetFile), slog.Int("segments", len(p.Segments)))
	}

	wh, err := wheelsvc.New(ctx, wheelsvc.Options{
		Store:     st,
		Source:    source(cfg.Wheel, log),
		Logger:    log,
		Spin:      spin,
		Sound:     cfg.Wheel.Sound,
		FlushSize: cfg.Wheel.RecorderFlush,
		Preset:    preset,
	})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, wh.Close()) }()

	tr, err := tracker.New(ctx, st, tracker.Options{SaveDebounce: cfg.Ledger.SaveDebounce, Logger: log})
	if err != nil {
		return err
	}
	defer func() {
		// the signal context is already done here
		err = multierr.Append(err, tr.Close(context.Background()))
	}()

	srv := api.NewServer(api.Deps{
		Tracker:     tr,
		Wheel:       wh,
		DB:          st,
		Logger:      log,
		CORSOrigins: cfg.HTTP.CORSOrigins,
	})
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", slog.String("address", cfg.HTTP.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return wh.Run(gctx, cfg.Wheel.FrameInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", slog.Duration("timeout", cfg.HTTP.ShutdownTimeout))
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})
	return g.Wait()
}

func source(w config.Wheel, log *slog.Logger) rng.Source {
	if w.ServerSeed == "" {
		return rng.CryptoSource{}
	}
	src := rng.NewSeededSource(w.ServerSeed, w.ClientSeed, w.Nonce)
	log.Info("provably fair spins enabled",
		slog.String("server_seed_hash", src.ServerSeedHash()),
		slog.String("client_seed", w.ClientSeed),
		slog.Uint64("nonce", w.Nonce),
	)
	return src
}
