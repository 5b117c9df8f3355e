package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-migrator/internal/api"
	"github.com/ruslano69/tdtp-migrator/pkg/config"
	"github.com/ruslano69/tdtp-migrator/pkg/runner"
	"github.com/ruslano69/tdtp-migrator/pkg/security"
	"github.com/ruslano69/tdtp-migrator/pkg/session"
)

func runServe(ctx context.Context, args []string) error {
	fs, common := newFlagSet("serve")
	addr := fs.String("addr", "", "listen address override (e.g. :8080)")
	dev := fs.Bool("dev", false, "dev mode: in-process miniredis for the result log")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogging(common)

	cfg, err := config.Load(*common.Config)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	inf, err := setup(ctx, cfg, *dev)
	if err != nil {
		return err
	}
	defer inf.Close()

	if *dev {
		log.Warn().Msg("DEV MODE ACTIVE: result log is in-process and lost on exit")
	}

	dest, err := inf.destination(ctx)
	if err != nil {
		return err
	}

	svcCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sessions := session.NewService(svcCtx, cfg.Session, inf.registry, dest, inf.sessionOptions()...)
	defer sessions.Close()

	// через API всегда только SELECT
	jobs := runner.New(inf.registry, cfg.SinkOptions(), security.NewSQLValidator(true), runner.NewLog(0))

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewRouter(api.Deps{
			Sessions:           sessions,
			Runner:             jobs,
			Connections:        inf.registry,
			Exporter:           inf.exporter,
			SourceProfile:      cfg.Source,
			DestinationProfile: cfg.Destination.Profile,
			DestinationSchema:  cfg.Destination.Schema,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("contract", string(dest.Contract())).
			Strs("profiles", inf.registry.Profiles()).
			Bool("dev", *dev).
			Msg("tdtpmigrate started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	log.Info().Msg("stopped")
	return nil
}
