package brokers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ruslano69/tdtp-migrator/pkg/quarantine"
	"github.com/ruslano69/tdtp-migrator/pkg/retry"
	"github.com/ruslano69/tdtp-migrator/pkg/session"
)

// QuarantinePublisher отправляет строки, исчерпавшие попытки, в брокер.
// Тело - JSON quarantine.Record, ключ - отпечаток строки.
type QuarantinePublisher struct {
	broker  MessageBroker
	retryer *retry.Retryer
}

// NewQuarantinePublisher оборачивает подключенный брокер.
// r == nil - одна попытка отправки.
func NewQuarantinePublisher(b MessageBroker, r *retry.Retryer) *QuarantinePublisher {
	return &QuarantinePublisher{broker: b, retryer: r}
}

// Open создает брокер по конфигурации и подключается к нему
func Open(ctx context.Context, cfg Config) (*QuarantinePublisher, error) {
	r, err := retry.New(cfg.Retry)
	if err != nil {
		return nil, err
	}
	b, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := b.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", b.GetBrokerType(), err)
	}
	return NewQuarantinePublisher(b, r), nil
}

// PublishFailed реализует session.QuarantinePublisher
func (p *QuarantinePublisher) PublishFailed(ctx context.Context, sessionID uuid.UUID, row session.FailedRow) error {
	rec := quarantine.FromFailed(sessionID, row)
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal quarantine record: %w", err)
	}
	send := func(ctx context.Context) error {
		return p.broker.Send(ctx, []byte(rec.Fingerprint), body)
	}
	if p.retryer == nil {
		return send(ctx)
	}
	return p.retryer.Do(ctx, p.broker.GetBrokerType()+" send", send)
}

// Close закрывает брокер
func (p *QuarantinePublisher) Close() error {
	return p.broker.Close()
}
