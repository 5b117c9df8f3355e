package brokers

import (
	"context"
	"fmt"

	"github.com/ruslano69/tdtp-migrator/pkg/retry"
)

// MessageBroker - универсальный интерфейс публикации в очередь сообщений.
// Поддерживает RabbitMQ и Apache Kafka.
type MessageBroker interface {
	// Connect устанавливает соединение с брокером
	Connect(ctx context.Context) error

	// Close закрывает соединение с брокером
	Close() error

	// Send отправляет сообщение; key - ключ партиционирования/дедупликации
	Send(ctx context.Context, key, message []byte) error

	// Ping проверяет доступность брокера
	Ping(ctx context.Context) error

	// GetBrokerType возвращает тип брокера (rabbitmq, kafka)
	GetBrokerType() string
}

// Config содержит параметры подключения к message broker.
// Пустой Type - публикация карантина выключена.
type Config struct {
	Type       string `yaml:"type" json:"type"`             // rabbitmq, kafka
	Host       string `yaml:"host" json:"host"`             // Хост (для RabbitMQ)
	Port       int    `yaml:"port" json:"port"`             // Порт (для RabbitMQ)
	User       string `yaml:"user" json:"user"`             // Пользователь (для RabbitMQ)
	Password   string `yaml:"password" json:"-"`            // Пароль (для RabbitMQ)
	Queue      string `yaml:"queue" json:"queue"`           // Имя очереди (для RabbitMQ)
	VHost      string `yaml:"vhost" json:"vhost"`           // Virtual host (для RabbitMQ, по умолчанию "/")
	UseTLS     bool   `yaml:"use_tls" json:"useTls"`        // amqps:// для RabbitMQ
	Exchange   string `yaml:"exchange" json:"exchange"`     // RabbitMQ exchange (пустая строка = default exchange)
	RoutingKey string `yaml:"routing_key" json:"routingKey"` // RabbitMQ routing key (если пустой, используется имя очереди)

	// RabbitMQ параметры очереди (ВАЖНО: должны совпадать с существующей очередью!)
	Durable    bool `yaml:"durable" json:"durable"`
	AutoDelete bool `yaml:"auto_delete" json:"autoDelete"`
	Exclusive  bool `yaml:"exclusive" json:"exclusive"`

	// Kafka специфичные параметры
	Brokers []string `yaml:"brokers" json:"brokers"` // Список Kafka brokers
	Topic   string   `yaml:"topic" json:"topic"`     // Имя Kafka topic

	// Повторы Send; нулевые поля - retry.DefaultConfig
	Retry retry.Config `yaml:"retry" json:"retry"`
}

// Enabled сообщает, настроен ли брокер
func (c Config) Enabled() bool { return c.Type != "" }

// New создает новый MessageBroker на основе конфигурации
func New(cfg Config) (MessageBroker, error) {
	switch cfg.Type {
	case "rabbitmq":
		return NewRabbitMQ(cfg)
	case "kafka":
		return NewKafka(cfg)
	default:
		return nil, fmt.Errorf("unsupported broker type: %s (supported: rabbitmq, kafka)", cfg.Type)
	}
}
