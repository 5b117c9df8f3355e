package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
	"github.com/ruslano69/tdtp-migrator/pkg/brokers"
	"github.com/ruslano69/tdtp-migrator/pkg/config"
	"github.com/ruslano69/tdtp-migrator/pkg/quarantine"
	"github.com/ruslano69/tdtp-migrator/pkg/resultlog"
	"github.com/ruslano69/tdtp-migrator/pkg/session"
	"github.com/ruslano69/tdtp-migrator/pkg/sink"
)

// infra - подключения и публикаторы процесса
type infra struct {
	cfg      *config.Config
	registry *adapters.Registry

	mini       *miniredis.Miniredis // только --dev
	devClient  *redis.Client
	results    *resultlog.RedisPublisher
	quarantine *brokers.QuarantinePublisher
	exporter   *quarantine.Exporter
}

// setup поднимает публикаторы; подключения к БД создаются лениво реестром.
// dev=true: журнал результатов пишется во встроенный miniredis.
func setup(ctx context.Context, cfg *config.Config, dev bool) (*infra, error) {
	inf := &infra{cfg: cfg, registry: adapters.NewRegistry(cfg.Profiles)}

	switch {
	case dev:
		var err error
		inf.mini, err = miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("infra: miniredis: %w", err)
		}
		inf.devClient = redis.NewClient(&redis.Options{Addr: inf.mini.Addr()})
		inf.results = resultlog.WithClient(inf.devClient, cfg.ResultLog)
		log.Info().Str("redis", inf.mini.Addr()).Msg("dev: in-process miniredis started")
	case cfg.ResultLog.Enabled:
		inf.results = resultlog.NewRedisPublisher(cfg.ResultLog)
	}
	if inf.results != nil {
		if err := inf.results.Ping(ctx); err != nil {
			inf.Close()
			return nil, fmt.Errorf("infra: result log redis ping: %w", err)
		}
	}

	if cfg.Quarantine.Broker.Enabled() {
		pub, err := brokers.Open(ctx, cfg.Quarantine.Broker)
		if err != nil {
			inf.Close()
			return nil, fmt.Errorf("infra: quarantine broker: %w", err)
		}
		inf.quarantine = pub
		log.Info().Str("broker", cfg.Quarantine.Broker.Type).Msg("quarantine publisher connected")
	}

	var uploader quarantine.Uploader
	if cfg.Quarantine.S3.Enabled() {
		up, err := quarantine.NewS3Uploader(ctx, cfg.Quarantine.S3)
		if err != nil {
			inf.Close()
			return nil, fmt.Errorf("infra: %w", err)
		}
		uploader = up
	}
	inf.exporter = quarantine.NewExporter(cfg.Quarantine.ExportDir, uploader)

	return inf, nil
}

// destination строит sink назначения из конфигурации
func (i *infra) destination(ctx context.Context) (sink.Sink, error) {
	opts := i.cfg.SinkOptions()
	contract, err := sink.ParseContract(string(opts.Contract))
	if err != nil {
		return nil, err
	}
	var dest adapters.Adapter
	if contract != sink.ContractHTTP {
		if i.cfg.Destination.Profile == "" {
			return nil, fmt.Errorf("destination.profile is required for %s contract", contract)
		}
		if dest, err = i.registry.Get(ctx, i.cfg.Destination.Profile); err != nil {
			return nil, fmt.Errorf("destination %q: %w", i.cfg.Destination.Profile, err)
		}
	}
	out, err := sink.New(opts, dest)
	if err != nil {
		return nil, err
	}
	if p, ok := out.(sink.Preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (i *infra) sessionOptions() []session.Option {
	var opts []session.Option
	if i.results != nil {
		opts = append(opts, session.WithStatusPublisher(i.results))
	}
	if i.quarantine != nil {
		opts = append(opts, session.WithQuarantinePublisher(i.quarantine))
	}
	return opts
}

// Close закрывает все, что было открыто
func (i *infra) Close() error {
	var errs []error
	if i.quarantine != nil {
		errs = append(errs, i.quarantine.Close())
	}
	if i.results != nil {
		errs = append(errs, i.results.Close())
	}
	if i.devClient != nil {
		errs = append(errs, i.devClient.Close())
	}
	if i.mini != nil {
		i.mini.Close()
	}
	errs = append(errs, i.registry.Close())
	return errors.Join(errs...)
}
