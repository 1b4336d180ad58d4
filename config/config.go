package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type AppConfig struct {
	App struct {
		Name     string `env:"APP_NAME" envDefault:"cdex-web-client"`
		LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	}

	API struct {
		BaseURL           string        `env:"CDEX_API_URL" envDefault:"http://localhost:8080/api/v1"`
		Timeout           time.Duration `env:"CDEX_API_TIMEOUT" envDefault:"15s"`
		RequestsPerSecond float64       `env:"CDEX_REQUESTS_PER_SECOND" envDefault:"20"`
		Burst             int           `env:"CDEX_REQUEST_BURST" envDefault:"10"`
	}

	Auth struct {
		AccessTokenLifetime time.Duration `env:"CDEX_ACCESS_TOKEN_LIFETIME" envDefault:"24h"`
		BridgeTokenLifetime time.Duration `env:"CDEX_BRIDGE_TOKEN_LIFETIME" envDefault:"24h"`
		ValidityCheck       time.Duration `env:"CDEX_VALIDITY_CHECK_INTERVAL" envDefault:"1m"`
		// Tokens handed over by the identity bridge, used when no session
		// can be restored.
		BridgeAccessToken  string `env:"CDEX_BRIDGE_ACCESS_TOKEN"`
		BridgeRefreshToken string `env:"CDEX_BRIDGE_REFRESH_TOKEN"`
	}

	Identity struct {
		Provider            string `env:"CDEX_IDENTITY_PROVIDER"`
		ID                  string `env:"CDEX_IDENTITY_ID"`
		Email               string `env:"CDEX_IDENTITY_EMAIL"`
		Name                string `env:"CDEX_IDENTITY_NAME"`
		Image               string `env:"CDEX_IDENTITY_IMAGE"`
		ProviderAccessToken string `env:"CDEX_IDENTITY_PROVIDER_TOKEN"`
	}

	Submissions struct {
		ContestID   string        `env:"CDEX_CONTEST_ID"`
		SettleDelay time.Duration `env:"CDEX_REPO_SETTLE_DELAY" envDefault:"3s"`
	}

	Invitations struct {
		EnhanceWorkers int           `env:"CDEX_ENHANCE_WORKERS" envDefault:"4"`
		DetailTTL      time.Duration `env:"CDEX_DETAIL_CACHE_TTL" envDefault:"10m"`
	}

	Socket struct {
		URL string `env:"CDEX_SOCKET_URL"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Kafka struct {
		Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
		GroupID string   `env:"KAFKA_GROUP_ID" envDefault:"cdex-web-client"`
	}

	Metrics struct {
		Addr string `env:"METRICS_ADDR" envDefault:":9102"`
	}
}

func InitConfig(devMode bool) (*AppConfig, error) {
	if devMode {
		if err := godotenv.Load(); err != nil {
			log.Error().Err(err).Msg("Error loading .env file")
		}
	}

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return &cfg, nil
}
