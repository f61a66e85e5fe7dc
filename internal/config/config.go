// Package config содержит логику чтения конфигурации коммерческого сервиса.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации коммерческого сервиса.
type Config struct {
	RunAddress            string        `env:"RUN_ADDRESS"`
	DatabaseURI           string        `env:"DATABASE_URI"`
	MemberServiceAddress  string        `env:"MEMBER_SERVICE_ADDRESS"`
	ProductServiceAddress string        `env:"PRODUCT_SERVICE_ADDRESS"`
	EventRedisAddress     string        `env:"EVENT_REDIS_ADDRESS"`
	CollaboratorTimeout   time.Duration `env:"COLLABORATOR_TIMEOUT" envDefault:"3s"`
	LedgerRetryAttempts   int           `env:"LEDGER_RETRY_ATTEMPTS" envDefault:"3"`
	PGSuccessRate         int           `env:"PG_SUCCESS_RATE" envDefault:"90"`
	BNPLSuccessRate       int           `env:"BNPL_SUCCESS_RATE" envDefault:"85"`
	PGLatency             time.Duration `env:"PG_LATENCY" envDefault:"50ms"`
	BNPLLatency           time.Duration `env:"BNPL_LATENCY" envDefault:"75ms"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envMemberAddress := cfg.MemberServiceAddress
	envProductAddress := cfg.ProductServiceAddress
	envRedisAddress := cfg.EventRedisAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.MemberServiceAddress, "m", "", "member service address (empty for local mode)")
	flag.StringVar(&cfg.ProductServiceAddress, "p", "", "product service address (empty for local mode)")
	flag.StringVar(&cfg.EventRedisAddress, "e", "", "redis address for domain events (empty to log events)")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envMemberAddress != "" {
		cfg.MemberServiceAddress = envMemberAddress
	}
	if envProductAddress != "" {
		cfg.ProductServiceAddress = envProductAddress
	}
	if envRedisAddress != "" {
		cfg.EventRedisAddress = envRedisAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.LedgerRetryAttempts <= 0 {
		cfg.LedgerRetryAttempts = 3
	}

	return cfg, nil
}
