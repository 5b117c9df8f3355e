package brokers

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ реализует MessageBroker для RabbitMQ
type RabbitMQ struct {
	config  Config
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQ создает новый RabbitMQ брокер
func NewRabbitMQ(cfg Config) (*RabbitMQ, error) {
	if cfg.Queue == "" {
		return nil, fmt.Errorf("queue name is required for RabbitMQ")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		if cfg.UseTLS {
			cfg.Port = 5671
		} else {
			cfg.Port = 5672
		}
	}
	if cfg.VHost == "" {
		cfg.VHost = "/"
	}
	return &RabbitMQ{config: cfg}, nil
}

// URL - amqp[s]://user:password@host:port/vhost
func (r *RabbitMQ) URL() string {
	scheme := "amqp"
	if r.config.UseTLS {
		scheme = "amqps"
	}
	return fmt.Sprintf("%s://%s:%s@%s:%d/%s",
		scheme, r.config.User, r.config.Password, r.config.Host, r.config.Port, r.config.VHost)
}

// Connect устанавливает соединение и объявляет очередь карантина
func (r *RabbitMQ) Connect(ctx context.Context) error {
	var err error
	if r.config.UseTLS {
		r.conn, err = amqp.DialTLS(r.URL(), &tls.Config{
			ServerName: r.config.Host,
			MinVersion: tls.VersionTLS12,
		})
	} else {
		r.conn, err = amqp.Dial(r.URL())
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	r.channel, err = r.conn.Channel()
	if err != nil {
		r.conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	// ВАЖНО: параметры должны совпадать с существующей очередью
	_, err = r.channel.QueueDeclare(
		r.config.Queue,
		r.config.Durable,
		r.config.AutoDelete,
		r.config.Exclusive,
		false,
		nil,
	)
	if err != nil {
		r.channel.Close()
		r.conn.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение
func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			return fmt.Errorf("failed to close channel: %w", err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	return nil
}

// Send публикует сообщение; key уходит в MessageId
func (r *RabbitMQ) Send(ctx context.Context, key, message []byte) error {
	if r.channel == nil {
		return fmt.Errorf("not connected to RabbitMQ")
	}

	routingKey := r.config.RoutingKey
	if routingKey == "" {
		routingKey = r.config.Queue
	}
	err := r.channel.PublishWithContext(ctx,
		r.config.Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    string(key),
			Body:         message,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Ping проверяет доступность RabbitMQ
func (r *RabbitMQ) Ping(ctx context.Context) error {
	if r.conn == nil || r.conn.IsClosed() {
		return fmt.Errorf("not connected to RabbitMQ")
	}
	if r.channel == nil {
		return fmt.Errorf("channel not open")
	}
	return nil
}

// GetBrokerType возвращает тип брокера
func (r *RabbitMQ) GetBrokerType() string {
	return "rabbitmq"
}
