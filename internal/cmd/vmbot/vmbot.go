// Package vmbot parses bot command flags and launches the bot runtime.
package vmbot

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/xqbot/vmbot/internal/platform/cmd"
	botserver "github.com/xqbot/vmbot/internal/services/vmbot/app"
)

// Config holds bot command configuration.
type Config struct {
	Port                int           `env:"VMBOT_PORT" envDefault:"8091"`
	APIEndpoint         string        `env:"VMBOT_API_ENDPOINT"`
	FeedEndpoint        string        `env:"VMBOT_FEED_ENDPOINT"`
	FeedWiki            string        `env:"VMBOT_FEED_WIKI" envDefault:"dewiki"`
	Username            string        `env:"VMBOT_USERNAME"`
	Password            string        `env:"VMBOT_PASSWORD"`
	ProjectPage         string        `env:"VMBOT_PROJECT_PAGE" envDefault:"VM"`
	DBPath              string        `env:"VMBOT_DB_PATH" envDefault:"data/vmbot.db"`
	OptOutTTL           time.Duration `env:"VMBOT_OPTOUT_TTL" envDefault:"6h"`
	CursorResetInterval time.Duration `env:"VMBOT_CURSOR_RESET_INTERVAL" envDefault:"250s"`
	FeedIdleTimeout     time.Duration `env:"VMBOT_FEED_IDLE_TIMEOUT" envDefault:"5m"`
	BatchSize           int           `env:"VMBOT_BATCH_SIZE" envDefault:"15"`
	ExperienceThreshold int           `env:"VMBOT_EXPERIENCE_THRESHOLD" envDefault:"10"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The bot health gRPC server port")
	fs.StringVar(&cfg.APIEndpoint, "api-endpoint", cfg.APIEndpoint, "The wiki action API endpoint")
	fs.StringVar(&cfg.FeedEndpoint, "feed-endpoint", cfg.FeedEndpoint, "The recent-changes websocket endpoint")
	fs.StringVar(&cfg.FeedWiki, "feed-wiki", cfg.FeedWiki, "The wiki identifier to subscribe to on the feed")
	fs.StringVar(&cfg.Username, "username", cfg.Username, "The bot account name")
	fs.StringVar(&cfg.Password, "password", cfg.Password, "The bot account password")
	fs.StringVar(&cfg.ProjectPage, "projectpage", cfg.ProjectPage, "The coordination page variant to clerk for")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The journal SQLite database path")
	fs.DurationVar(&cfg.OptOutTTL, "optout-ttl", cfg.OptOutTTL, "Opt-out list cache lifetime")
	fs.DurationVar(&cfg.CursorResetInterval, "cursor-reset-interval", cfg.CursorResetInterval, "How often the event cursor rescans from the floor")
	fs.DurationVar(&cfg.FeedIdleTimeout, "feed-idle-timeout", cfg.FeedIdleTimeout, "Maximum wait for a relevant feed event")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Log query page size after the startup scan")
	fs.IntVar(&cfg.ExperienceThreshold, "experience-threshold", cfg.ExperienceThreshold, "Minimum defendant edit count for talk-page notices")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the bot runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceVMBot, func(context.Context) error {
		return botserver.Run(ctx, botserver.RuntimeConfig{
			Port:                cfg.Port,
			APIEndpoint:         cfg.APIEndpoint,
			FeedEndpoint:        cfg.FeedEndpoint,
			FeedWiki:            cfg.FeedWiki,
			Username:            cfg.Username,
			Password:            cfg.Password,
			Project:             cfg.ProjectPage,
			DBPath:              cfg.DBPath,
			OptOutTTL:           cfg.OptOutTTL,
			CursorResetInterval: cfg.CursorResetInterval,
			FeedIdleTimeout:     cfg.FeedIdleTimeout,
			BatchSize:           cfg.BatchSize,
			ExperienceThreshold: cfg.ExperienceThreshold,
		})
	})
}
