package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func New() (*Config, error) {
	var Config Config
	if os.Getenv("GO_ENV") == "local" {
		_ = godotenv.Load(".env")
	}

	if err := env.Parse(&Config); err != nil {
		logrus.Fatalf("Error initializing: %s", err.Error())
		os.Exit(1)
	}
	return &Config, nil
}

type Config struct {
	APP
	DB
	Kafka
	Charity
	Auth
	Cache
}

type APP struct {
	PORT string `env:"APP_PORT" envDefault:"8090"`
}

type DB struct {
	HOST     string `env:"DB_HOST"`
	USER     string `env:"DB_USER"`
	PASSWORD string `env:"DB_PASSWORD"`
	NAME     string `env:"DB_NAME"`
	PORT     string `env:"DB_PORT"`
	SSLMODE  string `env:"DB_SSLMODE"`
}

type Kafka struct {
	Brokers          string        `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	ConsumerGroup    string        `env:"KAFKA_WALLET_GROUP_ID" envDefault:"donation-tracker"`
	SubscriberTopics string        `env:"KAFKA_SUBSCRIBER_TOPICS" envDefault:"wallet.funded,donation.recorded"`
	PublishTopics    string        `env:"KAFKA_PUBLISH_TOPICS" envDefault:"wallet.funded,donation.recorded,wallet.dlq"`
	RetryMaxAttempts int           `env:"KAFKA_RETRY_MAX_ATTEMPTS" envDefault:"5"`
	RetryBaseDelay   time.Duration `env:"KAFKA_RETRY_BASE_DELAY" envDefault:"100ms"`
	RetryMaxDelay    time.Duration `env:"KAFKA_RETRY_MAX_DELAY" envDefault:"10s"`
	RetryJitter      bool          `env:"KAFKA_RETRY_JITTER" envDefault:"true"`
}

type Charity struct {
	BaseURL string `env:"CHARITY_API_BASE_URL" envDefault:"https://partners.every.org/v0.2"`
	APIKey  string `env:"CHARITY_API_KEY"`
}

type Auth struct {
	BaseURL string `env:"AUTH_API_BASE_URL" envDefault:"https://identitytoolkit.googleapis.com/v1"`
	APIKey  string `env:"AUTH_API_KEY"`
}

type Cache struct {
	Path string `env:"CACHE_DB_PATH" envDefault:"./wallet-cache.db"`
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

func (k Kafka) GetRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: k.RetryMaxAttempts,
		BaseDelay:   k.RetryBaseDelay,
		MaxDelay:    k.RetryMaxDelay,
		Jitter:      k.RetryJitter,
	}
}
