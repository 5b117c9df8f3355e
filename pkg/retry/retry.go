// Package retry повторяет отправку во внешние системы с backoff.
// Повторы строк миграции ведет очередь сессии; здесь - только транспорт.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Func - операция, которую можно повторить
type Func func(ctx context.Context) error

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку как неповторяемую
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent сообщает, помечена ли ошибка как неповторяемая
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retryer выполняет операцию с повторами
type Retryer struct {
	config Config
	sleep  func(ctx context.Context, d time.Duration) error
}

// New создает Retryer; нулевые поля конфигурации заполняются по умолчанию
func New(config Config) (*Retryer, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	return &Retryer{config: config, sleep: sleepCtx}, nil
}

// Do выполняет fn, пока она не вернет nil, Permanent-ошибку
// или не закончатся попытки. op - имя операции для журнала.
func (r *Retryer) Do(ctx context.Context, op string, fn Func) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if IsPermanent(err) {
			return err
		}
		if attempt >= r.config.MaxAttempts {
			return fmt.Errorf("%s: %d attempts exhausted: %w", op, attempt, lastErr)
		}

		delay := r.Delay(attempt)
		log.Debug().Err(err).Str("op", op).Int("attempt", attempt).Dur("delay", delay).Msg("retrying")
		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w (last error: %v)", op, err, lastErr)
		}
	}
}

// Delay - задержка после попытки attempt (с 1)
func (r *Retryer) Delay(attempt int) time.Duration {
	var delay time.Duration
	switch r.config.Backoff {
	case BackoffLinear:
		delay = r.config.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		delay = time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1)))
	default:
		delay = r.config.InitialDelay
	}
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	if r.config.Jitter > 0 {
		delay += time.Duration(float64(delay) * r.config.Jitter * (rand.Float64()*2 - 1))
		if delay < 0 {
			delay = r.config.InitialDelay
		}
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
