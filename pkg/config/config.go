package config

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env         string `env:"APP_ENV" env-default:"development"`
		Port        int    `env:"APP_PORT" env-default:"8080"`
		SentryUrl   string `env:"SENTRY_URL"`
		LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
		CorsOrigins string `env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
	}
	Postgres struct {
		Port     int    `env:"POSTGRES_PORT" env-default:"5432"`
		Host     string `env:"POSTGRES_HOST" env-default:"localhost"`
		User     string `env:"POSTGRES_USER"`
		Pass     string `env:"POSTGRES_PASS"`
		Name     string `env:"POSTGRES_NAME"`
		SslMode  string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
		MaxConns int32  `env:"POSTGRES_MAX_CONNS" env-default:"10"`
	}
	Stories struct {
		Source               string        `env:"STORIES_SOURCE" env-default:"file" env-description:"file or postgres"`
		File                 string        `env:"STORIES_FILE" env-default:"./data/stories.json"`
		DefaultImageDuration time.Duration `env:"STORIES_DEFAULT_IMAGE_DURATION" env-default:"5s"`
		ReloadInterval       time.Duration `env:"STORIES_RELOAD_INTERVAL" env-default:"1m"`
		DefaultAvatarURL     string        `env:"STORIES_DEFAULT_AVATAR_URL" env-default:"/user-avatars/default.png"`
		ProbeAvatars         bool          `env:"STORIES_PROBE_AVATARS" env-default:"false"`
	}
	Ledger struct {
		Backend string `env:"LEDGER_BACKEND" env-default:"file" env-description:"file, pebble, postgres or memory"`
		Key     string `env:"LEDGER_KEY" env-default:"viewedStoryIds"`
		Path    string `env:"LEDGER_PATH" env-default:"./data/ledger"`
	}
	Viewer struct {
		ProgressInterval time.Duration `env:"VIEWER_PROGRESS_INTERVAL" env-default:"50ms"`
	}
	Websocket struct {
		MessagesPerSecond int `env:"WS_MESSAGES_PER_SECOND" env-default:"20"`
		Burst             int `env:"WS_BURST" env-default:"40"`
	}
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}

// GetDSN returns the postgres connection string used by pgx and goose.
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Pass,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.Name,
		c.Postgres.SslMode,
	)
}

// NeedsPostgres reports whether any configured backend lives in postgres.
func (c *Config) NeedsPostgres() bool {
	return c.Stories.Source == "postgres" || c.Ledger.Backend == "postgres"
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.App.CorsOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
