package retry

import (
	"fmt"
	"time"
)

// BackoffStrategy определяет стратегию задержки между повторами
type BackoffStrategy string

const (
	// BackoffConstant - постоянная задержка
	BackoffConstant BackoffStrategy = "constant"
	// BackoffLinear - задержка растет линейно
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential - задержка умножается на Multiplier
	BackoffExponential BackoffStrategy = "exponential"
)

// Config - повторы отправки во внешние системы (брокер карантина).
// MaxAttempts включает первую попытку; 1 = без повторов.
type Config struct {
	MaxAttempts  int             `yaml:"max_attempts" json:"maxAttempts"`
	InitialDelay time.Duration   `yaml:"initial_delay" json:"initialDelay"`
	MaxDelay     time.Duration   `yaml:"max_delay" json:"maxDelay"`
	Backoff      BackoffStrategy `yaml:"backoff" json:"backoff"`
	Multiplier   float64         `yaml:"multiplier" json:"multiplier"`
	Jitter       float64         `yaml:"jitter" json:"jitter"` // 0.0 - 1.0
}

// DefaultConfig: 3 попытки, 200ms..5s, экспонента x2, jitter 10%
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Backoff:      BackoffExponential,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// SetDefaults заполняет нулевые поля значениями DefaultConfig
func (c *Config) SetDefaults() {
	def := DefaultConfig()
	if c.MaxAttempts == 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Backoff == "" {
		c.Backoff = def.Backoff
	}
	if c.Multiplier <= 0 {
		c.Multiplier = def.Multiplier
	}
}

// Validate проверяет корректность конфигурации
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("initial_delay must be >= 0")
	}
	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("max_delay (%v) must be >= initial_delay (%v)", c.MaxDelay, c.InitialDelay)
	}
	switch c.Backoff {
	case BackoffConstant, BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("invalid backoff strategy: %s", c.Backoff)
	}
	if c.Jitter < 0 || c.Jitter > 1.0 {
		return fmt.Errorf("jitter must be between 0.0 and 1.0, got %f", c.Jitter)
	}
	return nil
}
