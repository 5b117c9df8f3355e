package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
	"github.com/ruslano69/tdtp-migrator/pkg/extract"
	"github.com/ruslano69/tdtp-migrator/pkg/loader"
	"github.com/ruslano69/tdtp-migrator/pkg/metrics"
	"github.com/ruslano69/tdtp-migrator/pkg/security"
	"github.com/ruslano69/tdtp-migrator/pkg/sink"
)

// DefaultLogLimit - сколько записей журнала возвращают RunNext/RunAll
const DefaultLogLimit = 50

// Config - параметры сессий
type Config struct {
	MaxRowsDefault         int `yaml:"max_rows_default" json:"maxRowsDefault"`
	HardLimit              int `yaml:"hard_limit" json:"hardLimit"`
	MaxAttempts            int `yaml:"max_attempts" json:"maxAttempts"`
	TTLMinutes             int `yaml:"ttl_minutes" json:"ttlMinutes"`
	CleanupIntervalSeconds int `yaml:"cleanup_interval_seconds" json:"cleanupIntervalSeconds"`
}

// DefaultConfig - значения по умолчанию
func DefaultConfig() Config {
	return Config{
		MaxRowsDefault:         1000,
		HardLimit:              20000,
		MaxAttempts:            3,
		TTLMinutes:             1440,
		CleanupIntervalSeconds: 300,
	}
}

// MaxRows ограничивает запрошенное число строк: nil - значение по умолчанию,
// результат всегда в [1, HardLimit].
func (c Config) MaxRows(requested *int) int {
	dflt := max(1, c.MaxRowsDefault)
	hard := max(1, c.HardLimit)
	v := dflt
	if requested != nil {
		v = *requested
	}
	return min(max(1, v), hard)
}

// withDefaults заполняет незаданные (нулевые) поля значениями по умолчанию
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRowsDefault == 0 {
		c.MaxRowsDefault = d.MaxRowsDefault
	}
	if c.HardLimit == 0 {
		c.HardLimit = d.HardLimit
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.TTLMinutes == 0 {
		c.TTLMinutes = d.TTLMinutes
	}
	if c.CleanupIntervalSeconds == 0 {
		c.CleanupIntervalSeconds = d.CleanupIntervalSeconds
	}
	return c
}

func (c Config) ttl() time.Duration {
	return time.Duration(max(1, c.TTLMinutes)) * time.Minute
}

func (c Config) cleanupInterval() time.Duration {
	if c.CleanupIntervalSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

// Sources выдает подключение источника по имени профиля (adapters.Registry)
type Sources interface {
	Get(ctx context.Context, profile string) (adapters.Adapter, error)
}

// StatusPublisher получает снимок сессии после каждого RunNext/RunAll
type StatusPublisher interface {
	PublishStatus(ctx context.Context, st Status) error
}

// QuarantinePublisher получает строку, исчерпавшую попытки
type QuarantinePublisher interface {
	PublishFailed(ctx context.Context, sessionID uuid.UUID, row FailedRow) error
}

// Option настраивает Service
type Option func(*Service)

// WithStatusPublisher добавляет получателя статусов
func WithStatusPublisher(p StatusPublisher) Option {
	return func(s *Service) { s.statusPubs = append(s.statusPubs, p) }
}

// WithQuarantinePublisher добавляет получателя строк из failed
func WithQuarantinePublisher(p QuarantinePublisher) Option {
	return func(s *Service) { s.quarantinePubs = append(s.quarantinePubs, p) }
}

// WithClock подменяет источник времени (тесты)
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service - сессии миграции: создание, пошаговая обработка, статусы, очистка
type Service struct {
	cfg     Config
	sources Sources
	sink    sink.Sink
	coord   *coordinator
	now     func() time.Time

	statusPubs     []StatusPublisher
	quarantinePubs []QuarantinePublisher
}

// NewService создает сервис и запускает координатор сессий.
// Координатор останавливается при отмене ctx или вызове Close.
func NewService(ctx context.Context, cfg Config, sources Sources, dest sink.Sink, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		cfg:     cfg,
		sources: sources,
		sink:    dest,
		coord:   newCoordinator(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.coord.run(ctx, cfg.cleanupInterval(), cfg.ttl(), s.now)
	return s
}

// Close останавливает координатор; последующие вызовы возвращают ErrClosed
func (s *Service) Close() {
	s.coord.stop()
}

// Create проверяет SQL (только один SELECT), ограничивает число строк,
// выполняет запрос на источнике и ставит все строки в очередь новой сессии.
func (s *Service) Create(ctx context.Context, profile, sql string, maxRows *int) (Status, error) {
	if err := security.ValidateSelectOnly(sql); err != nil {
		return Status{}, err
	}
	limit := s.cfg.MaxRows(maxRows)

	src, err := s.sources.Get(ctx, profile)
	if err != nil {
		return Status{}, fmt.Errorf("source %q: %w", profile, err)
	}
	limited := src.Dialect().LimitRows(strings.TrimSpace(sql), limit)

	rows, err := extract.Extract(ctx, src.DB(), limited)
	if err != nil {
		return Status{}, err
	}

	sess := newSession(profile, limited, rows, s.now)
	if err := s.coord.put(sess); err != nil {
		return Status{}, err
	}
	log.Info().
		Str("session", sess.ID().String()).
		Str("profile", profile).
		Int("rows", len(rows)).
		Int("limit", limit).
		Msg("migration session created")
	return sess.Status(DefaultLogLimit), nil
}

// RunNext обрабатывает строку из головы очереди; пустая очередь - no-op.
// Ошибки записи не возвращаются: они учитываются в счетчиках и журнале сессии.
func (s *Service) RunNext(ctx context.Context, id uuid.UUID, dryRun bool) (Status, error) {
	sess, err := s.coord.acquire(id)
	if err != nil {
		return Status{}, err
	}
	defer s.coord.release(id)

	s.processOne(ctx, sess, dryRun)
	st := sess.Status(DefaultLogLimit)
	s.publishStatus(ctx, st)
	return st, nil
}

// RunAll обрабатывает min(pending, maxItems) строк; бюджет фиксируется
// в начале вызова, строки, возвращенные в очередь во время прохода, его
// не увеличивают. maxItems=nil - все строки очереди. Отмена ctx
// прекращает проход между строками.
func (s *Service) RunAll(ctx context.Context, id uuid.UUID, dryRun bool, maxItems *int) (Status, error) {
	sess, err := s.coord.acquire(id)
	if err != nil {
		return Status{}, err
	}
	defer s.coord.release(id)

	budget := sess.PendingCount()
	if maxItems != nil {
		budget = min(budget, max(0, *maxItems))
	}
	for i := 0; i < budget; i++ {
		if ctx.Err() != nil {
			log.Warn().Str("session", id.String()).Int("processed", i).Int("budget", budget).Msg("run all interrupted")
			break
		}
		if !s.processOne(ctx, sess, dryRun) {
			break
		}
	}
	st := sess.Status(DefaultLogLimit)
	s.publishStatus(ctx, st)
	return st, nil
}

// processOne снимает строку с головы очереди и пишет ее в назначение.
// Сессия не блокируется на время записи.
func (s *Service) processOne(ctx context.Context, sess *Session, dryRun bool) bool {
	b := sess.pollNext()
	if b == nil {
		return false
	}

	start := time.Now()
	res, err := s.write(ctx, b.Row, dryRun)
	contract := string(s.sink.Contract())

	if err == nil && res.Success {
		details := string(res.Outcome)
		if res.ID != nil {
			details = fmt.Sprintf("id=%d", *res.ID)
		}
		sess.markOk(res.Message, details)
		metrics.ObserveRow(metrics.PathSession, contract, string(res.Outcome), time.Since(start))
		return true
	}

	msg := res.Message
	if err != nil {
		msg = err.Error()
	}
	metrics.ObserveRow(metrics.PathSession, contract, string(loader.OutcomeFailed), time.Since(start))

	failed := sess.registerFailure(b, msg, s.cfg.MaxAttempts)
	if failed == nil {
		log.Debug().Str("session", sess.ID().String()).Int("attempt", b.Attempts).Str("error", msg).Msg("row requeued")
		return true
	}

	metrics.RowQuarantined()
	log.Warn().Str("session", sess.ID().String()).Int("attempt", failed.Attempts).Str("error", msg).Msg("row quarantined")
	for _, p := range s.quarantinePubs {
		if err := p.PublishFailed(ctx, sess.ID(), *failed); err != nil {
			log.Warn().Err(err).Str("session", sess.ID().String()).Msg("quarantine publish failed")
		}
	}
	return true
}

// write вызывает sink; паника записи превращается в ошибку попытки
func (s *Service) write(ctx context.Context, row extract.Row, dryRun bool) (res loader.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("destination write panicked: %v", r)
		}
	}()
	return s.sink.Write(ctx, row, dryRun)
}

func (s *Service) publishStatus(ctx context.Context, st Status) {
	for _, p := range s.statusPubs {
		if err := p.PublishStatus(ctx, st); err != nil {
			log.Warn().Err(err).Str("session", st.ID.String()).Msg("status publish failed")
		}
	}
}

// Status возвращает снимок сессии с последними logLimit записями журнала
func (s *Service) Status(id uuid.UUID, logLimit int) (Status, error) {
	sess, err := s.coord.get(id)
	if err != nil {
		return Status{}, err
	}
	return sess.Status(logLimit), nil
}

// Statuses возвращает снимки всех сессий в порядке создания
func (s *Service) Statuses(logLimit int) ([]Status, error) {
	list, err := s.coord.list()
	if err != nil {
		return nil, err
	}
	out := make([]Status, len(list))
	for i, sess := range list {
		out[i] = sess.Status(logLimit)
	}
	return out, nil
}

// Failed возвращает до max последних строк из failed
func (s *Service) Failed(id uuid.UUID, max int) ([]FailedRow, error) {
	sess, err := s.coord.get(id)
	if err != nil {
		return nil, err
	}
	return sess.FailedRows(max), nil
}

// Delete удаляет сессию; false - сессии не было
func (s *Service) Delete(id uuid.UUID) (bool, error) {
	return s.coord.remove(id)
}

// DeleteAll удаляет все сессии и возвращает их количество
func (s *Service) DeleteAll() (int, error) {
	return s.coord.removeAll()
}

// Sweep немедленно удаляет простаивающие сессии старше TTL
func (s *Service) Sweep() (int, error) {
	return s.coord.sweepNow(s.now().Add(-s.cfg.ttl()))
}
