// Package runner - пакетная миграция: SELECT источника целиком, затем
// запись каждой строки в назначение. Ошибка строки учитывается и не
// прерывает пакет.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
	"github.com/ruslano69/tdtp-migrator/pkg/extract"
	"github.com/ruslano69/tdtp-migrator/pkg/loader"
	"github.com/ruslano69/tdtp-migrator/pkg/mapping"
	"github.com/ruslano69/tdtp-migrator/pkg/metrics"
	"github.com/ruslano69/tdtp-migrator/pkg/security"
	"github.com/ruslano69/tdtp-migrator/pkg/sink"
)

// ErrInvalidJob - задание не прошло проверку до подключения к БД
var ErrInvalidJob = errors.New("invalid job")

// Job - описание пакетной миграции (YAML job-файл или тело POST /api/jobs/run)
type Job struct {
	Source      string                 `yaml:"source" json:"source"`
	Destination string                 `yaml:"destination" json:"destination"`
	SQL         string                 `yaml:"sql" json:"sql"`
	Mappings    []mapping.FieldMapping `yaml:"mappings" json:"mappings"`

	// Contract - FLAT|NESTED|HTTP; пустой - из конфигурации
	Contract string `yaml:"contract" json:"contract"`
	Schema   string `yaml:"schema" json:"schema"`
	Table    string `yaml:"table" json:"table"`

	DryRun bool `yaml:"dry_run" json:"dryRun"`

	// Limit - ограничение строк источника; 0 - без ограничения
	Limit int `yaml:"limit" json:"limit"`
}

// Summary - итог пакетного запуска
type Summary struct {
	Total    int      `json:"total"`
	OK       int      `json:"ok"`
	Fail     int      `json:"fail"`
	DryRun   bool     `json:"dryRun"`
	Messages []string `json:"messages"`
}

// Connections выдает подключения по имени профиля (adapters.Registry)
type Connections interface {
	Get(ctx context.Context, profile string) (adapters.Adapter, error)
}

// Runner выполняет пакетные миграции
type Runner struct {
	conns     Connections
	base      sink.Options
	validator *security.SQLValidator
	log       *Log
}

// New создает runner. base - параметры назначения из конфигурации,
// задание может переопределить контракт, схему, таблицу и маппинги.
func New(conns Connections, base sink.Options, validator *security.SQLValidator, l *Log) *Runner {
	if validator == nil {
		validator = security.NewSQLValidator(true)
	}
	if l == nil {
		l = NewLog(0)
	}
	return &Runner{conns: conns, base: base, validator: validator, log: l}
}

// Log возвращает общий журнал запусков
func (r *Runner) Log() *Log { return r.log }

// Run выполняет задание. error возвращается только для ошибок проверки SQL
// и подключения; ошибки строк попадают в Summary и журнал.
func (r *Runner) Run(ctx context.Context, job Job) (Summary, error) {
	if strings.TrimSpace(job.Source) == "" {
		return Summary{}, fmt.Errorf("%w: source profile is required", ErrInvalidJob)
	}
	if err := mapping.Validate(job.Mappings); err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	if err := r.validator.Validate(job.SQL); err != nil {
		return Summary{}, err
	}

	opts := r.sinkOptions(job)
	r.log.Clear()

	// источник и назначение готовятся параллельно
	var (
		rows []extract.Row
		dest sink.Sink
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		src, err := r.conns.Get(gctx, job.Source)
		if err != nil {
			return fmt.Errorf("source %q: %w", job.Source, err)
		}
		query := strings.TrimSpace(job.SQL)
		if job.Limit > 0 {
			query = src.Dialect().LimitRows(query, job.Limit)
		}
		rows, err = extract.Extract(gctx, src.DB(), query)
		return err
	})
	g.Go(func() error {
		var err error
		dest, err = r.openSink(gctx, job, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	sum := Summary{Total: len(rows), DryRun: job.DryRun}
	if p, ok := dest.(sink.Preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			msg := "could not read destination columns: " + err.Error()
			r.log.Error(0, msg)
			sum.Fail = len(rows)
			sum.Messages = []string{msg}
			return sum, nil
		}
	}

	contract := string(dest.Contract())
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		n := i + 1
		start := time.Now()
		res, err := dest.Write(ctx, row, job.DryRun)
		if err != nil {
			res = loader.Fail(err.Error())
		}
		metrics.ObserveRow(metrics.PathBatch, contract, string(res.Outcome), time.Since(start))

		sum.Messages = append(sum.Messages, fmt.Sprintf("row #%d: %s", n, res.Message))
		if res.Success {
			sum.OK++
			r.log.Info(n, res.Message)
			continue
		}
		sum.Fail++
		r.log.Error(n, res.Message)
		log.Debug().Int("row", n).Str("outcome", string(res.Outcome)).Msg(res.Message)
	}

	log.Info().
		Str("source", job.Source).
		Str("contract", contract).
		Int("total", sum.Total).
		Int("ok", sum.OK).
		Int("fail", sum.Fail).
		Bool("dry_run", job.DryRun).
		Msg("migration job finished")
	return sum, nil
}

func (r *Runner) sinkOptions(job Job) sink.Options {
	opts := r.base
	if job.Contract != "" {
		opts.Contract = sink.Contract(job.Contract)
	}
	if job.Schema != "" {
		opts.Schema = job.Schema
	}
	if job.Table != "" {
		opts.Table = job.Table
	}
	opts.Mappings = job.Mappings
	return opts
}

func (r *Runner) openSink(ctx context.Context, job Job, opts sink.Options) (sink.Sink, error) {
	contract, err := sink.ParseContract(string(opts.Contract))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	var dest adapters.Adapter
	if contract != sink.ContractHTTP {
		if strings.TrimSpace(job.Destination) == "" {
			return nil, fmt.Errorf("%w: destination profile is required for %s contract", ErrInvalidJob, contract)
		}
		if dest, err = r.conns.Get(ctx, job.Destination); err != nil {
			return nil, fmt.Errorf("destination %q: %w", job.Destination, err)
		}
	}
	return sink.New(opts, dest)
}
