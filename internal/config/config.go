package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	TransportKafka  = "kafka"
	TransportNATS   = "nats"
	TransportMemory = "memory"
)

type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	Service   ServiceConfig   `yaml:"service"`
	HTTP      HTTPConfig      `yaml:"http"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Storage   string          `yaml:"storage" env:"STORAGE" env-default:"postgres"`
	Transport string          `yaml:"transport" env:"TRANSPORT" env-default:"kafka"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	NATS      NATSConfig      `yaml:"nats"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Ordering  OrderingConfig  `yaml:"ordering"`
	Payment   PaymentConfig   `yaml:"payment"`
	Shipping  ShippingConfig  `yaml:"shipping"`
	Webhooks  WebhooksConfig  `yaml:"webhooks"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
}

type ServiceConfig struct {
	// Name is also the consumer group / durable name of the service.
	Name string `yaml:"name" env:"SERVICE_NAME" env-default:"ordering"`
}

type HTTPConfig struct {
	Port            int           `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type PostgresConfig struct {
	Port    string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	Host    string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	DbName  string `yaml:"db_name" env:"POSTGRES_DB"`
	User    string `yaml:"user" env:"POSTGRES_USER"`
	Pwd     string `yaml:"password" env:"POSTGRES_PASSWORD"`
	SslMode string `yaml:"sslmode" env:"POSTGRES_SSLMODE" env-default:"disable"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		c.Host, c.Port, c.User, c.DbName, c.Pwd, c.SslMode)
}

type KafkaConfig struct {
	BrokerList []string `yaml:"broker_list" env:"KAFKA_BROKERS" env-separator:","`
	Topic      string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"eshop_event_bus"`
}

type NATSConfig struct {
	URL        string `yaml:"url" env:"NATS_URL" env-default:"nats://localhost:4222"`
	Stream     string `yaml:"stream" env:"NATS_STREAM" env-default:"ESHOP"`
	Subject    string `yaml:"subject" env:"NATS_SUBJECT" env-default:"eshop.events"`
	MaxDeliver int    `yaml:"max_deliver" env:"NATS_MAX_DELIVER" env-default:"-1"`
}

type OutboxConfig struct {
	SweepInterval     time.Duration `yaml:"sweep_interval" env:"OUTBOX_SWEEP_INTERVAL" env-default:"5s"`
	BatchSize         int           `yaml:"batch_size" env:"OUTBOX_BATCH_SIZE" env-default:"100"`
	InProgressTimeout time.Duration `yaml:"in_progress_timeout" env:"OUTBOX_IN_PROGRESS_TIMEOUT" env-default:"1m"`
	PublishTimeout    time.Duration `yaml:"publish_timeout" env:"OUTBOX_PUBLISH_TIMEOUT" env-default:"5s"`
}

type OrderingConfig struct {
	GracePeriod  time.Duration `yaml:"grace_period" env:"ORDERING_GRACE_PERIOD" env-default:"1m"`
	PollInterval time.Duration `yaml:"poll_interval" env:"ORDERING_POLL_INTERVAL" env-default:"10s"`
	CacheSize    int           `yaml:"cache_size" env:"ORDERING_CACHE_SIZE" env-default:"128"`
	CacheTTL     time.Duration `yaml:"cache_ttl" env:"ORDERING_CACHE_TTL" env-default:"10m"`
}

type PaymentConfig struct {
	// PaymentSucceeded decides the outcome of every simulated payment.
	PaymentSucceeded bool `yaml:"payment_succeeded" env:"PAYMENT_SUCCEEDED"`
}

type ShippingConfig struct {
	// Route is the ordered list of warehouses every new shipment travels
	// through; the first one is the pick-up origin.
	Route []int `yaml:"route" env:"SHIPPING_ROUTE" env-separator:"," env-default:"1"`
}

type WarehouseConfig struct {
	// Seed lists warehouses created at startup if they do not exist yet.
	Seed []WarehouseSeed `yaml:"seed"`
}

type WarehouseSeed struct {
	ID       int    `yaml:"id"`
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
}

type WebhooksConfig struct {
	URLs     []string      `yaml:"urls" env:"WEBHOOKS_URLS" env-separator:","`
	Timeout  time.Duration `yaml:"timeout" env:"WEBHOOKS_TIMEOUT" env-default:"5s"`
	RetryMax int           `yaml:"retry_max" env:"WEBHOOKS_RETRY_MAX" env-default:"2"`
}

func InitConfig() Config {
	configPath := getConfigPath()

	if configPath == "" {
		panic("config path is not set")
	}

	cfg, err := Load(configPath)
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	return cfg, nil
}

// FromEnv builds the configuration from environment variables and defaults only.
func FromEnv() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	return cfg, nil
}

func getConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	return path
}
