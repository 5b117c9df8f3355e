package resultlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ruslano69/tdtp-migrator/pkg/session"
)

// Config - секция result_log конфигурации
type Config struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"-"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"keyPrefix"`
	Channel   string `yaml:"channel" json:"channel"`

	// TTL ключа состояния в секундах; 0 - без срока
	TTL int `yaml:"ttl" json:"ttl"`
}

// SetDefaults заполняет незаданные поля
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "tdtp:migrator:"
	}
	if c.Channel == "" {
		c.Channel = "tdtp:migrator:events"
	}
}

// ErrNotFound - состояние сессии отсутствует или истекло
var ErrNotFound = errors.New("session state not found")

// Event - сообщение канала: снимок сессии и момент публикации
type Event struct {
	Type        string         `json:"type"`
	PublishedAt time.Time      `json:"publishedAt"`
	Status      session.Status `json:"status"`
}

// RedisPublisher публикует снимок сессии в Redis после каждого шага:
//
//	SET  <prefix>session:<id>:state  <JSON>  EX <ttl>  - для опроса
//	PUB  <channel>                   <Event>           - для подписки
type RedisPublisher struct {
	client *redis.Client
	config Config
	owned  bool
}

// NewRedisPublisher создает клиента по конфигурации
func NewRedisPublisher(config Config) *RedisPublisher {
	config.SetDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisPublisher{client: client, config: config, owned: true}
}

// WithClient использует готового клиента (miniredis в --dev)
func WithClient(client *redis.Client, config Config) *RedisPublisher {
	config.SetDefaults()
	return &RedisPublisher{client: client, config: config}
}

// StateKey - ключ последнего состояния сессии
func (p *RedisPublisher) StateKey(id uuid.UUID) string {
	return fmt.Sprintf("%ssession:%s:state", p.config.KeyPrefix, id)
}

// PublishStatus реализует session.StatusPublisher
func (p *RedisPublisher) PublishStatus(ctx context.Context, st session.Status) error {
	state, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	event, err := json.Marshal(Event{Type: "session.progress", PublishedAt: time.Now().UTC(), Status: st})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ttl := time.Duration(p.config.TTL) * time.Second
	if err := p.client.Set(ctx, p.StateKey(st.ID), state, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	if err := p.client.Publish(ctx, p.config.Channel, event).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH failed: %w", err)
	}
	return nil
}

// Latest читает последнее опубликованное состояние сессии
func (p *RedisPublisher) Latest(ctx context.Context, id uuid.UUID) (session.Status, error) {
	data, err := p.client.Get(ctx, p.StateKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.Status{}, ErrNotFound
	}
	if err != nil {
		return session.Status{}, fmt.Errorf("redis GET failed: %w", err)
	}
	var st session.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return session.Status{}, fmt.Errorf("corrupt state for %s: %w", id, err)
	}
	return st, nil
}

// Ping проверяет доступность Redis
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close закрывает соединение, если клиент создан публикатором
func (p *RedisPublisher) Close() error {
	if !p.owned {
		return nil
	}
	return p.client.Close()
}
