package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/tracing"
)

type Config struct {
	AppConfig      *AppConfig
	Logger         *logger.Config
	Tracing        *tracing.JaegerConfig
	DatabaseConfig *DatabaseConfig
	RedisConfig    *RedisConfig
	RabbitMQConfig *RabbitMQConfig
	TrackingConfig *TrackingConfig
	ImapConfig     *ImapConfig
	ArchiveConfig  *ArchiveConfig
	DedupConfig    *DedupConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:      &AppConfig{},
		Logger:         &logger.Config{},
		Tracing:        &tracing.JaegerConfig{},
		DatabaseConfig: &DatabaseConfig{},
		RedisConfig:    &RedisConfig{},
		RabbitMQConfig: &RabbitMQConfig{},
		TrackingConfig: &TrackingConfig{},
		ImapConfig:     &ImapConfig{},
		ArchiveConfig:  &ArchiveConfig{},
		DedupConfig:    &DedupConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
