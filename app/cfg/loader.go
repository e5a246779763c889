package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// HTTP control API
	Port         string `long:"port" env:"PORT" default:"3000" description:"HTTP server port"`
	APIAccessKey string `long:"api-access-key" env:"API_ACCESS_KEY" description:"Access key protecting the /api endpoints (optional)"`

	// Downstream delivery
	APIEndpoint     string        `long:"api-endpoint" env:"DISTRO_API_ENDPOINT" description:"Downstream ingestion endpoint" validate:"omitempty,url"`
	APIKey          string        `long:"api-key" env:"DISTRO_API_KEY" description:"Downstream API key, sent as bearer token and X-API-Key"`
	DeliveryTimeout time.Duration `long:"delivery-timeout" env:"DELIVERY_TIMEOUT" default:"10s" description:"Timeout for a single delivery request" validate:"gt=0"`

	// Feeds
	FeedsFile    string        `long:"feeds-file" env:"FEEDS_FILE" default:"./feeds.yml" description:"YAML file listing feed sources"`
	FeedURLs     string        `long:"feed-urls" env:"KILL_THE_NEWSLETTER_FEEDS" description:"Comma separated feed URLs added to the feeds file"`
	FetchTimeout time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"10s" description:"Timeout for a single feed fetch" validate:"gt=0"`
	MaxFeedBytes int64         `long:"max-feed-bytes" env:"MAX_FEED_BYTES" default:"10485760" description:"Largest accepted feed document in bytes" validate:"gt=0"`
	UserAgent    string        `long:"user-agent" env:"USER_AGENT" default:"Distro-Newsletter-Mode/1.0" description:"User agent string for feed requests"`

	// Scheduling and pacing
	Schedule     string        `long:"schedule" env:"CRON_SCHEDULE" default:"*/5 * * * *" description:"Cron expression (UTC) for feed processing"`
	SendInterval time.Duration `long:"send-interval" env:"SEND_INTERVAL" default:"1s" description:"Minimum interval between deliveries" validate:"gte=0"`
	RunOnce      bool          `long:"run-once" env:"RUN_ONCE" description:"Run a single cycle, print the report and exit"`

	// Ledger
	LedgerBackend string `long:"ledger-backend" env:"LEDGER_BACKEND" default:"file" description:"Ledger backend: file, redis, sqlite or postgres" validate:"oneof=file redis sqlite postgres"`
	LedgerPath    string `long:"ledger-path" env:"LEDGER_PATH" default:"./data/processed-entries.json" description:"Ledger file (file backend) or database file (sqlite backend)" validate:"required_if=LedgerBackend file,required_if=LedgerBackend sqlite"`
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address (redis backend)" validate:"required_if=LedgerBackend redis"`
	RedisPassword string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password (redis backend)"`
	RedisKey      string `long:"redis-key" env:"REDIS_KEY" default:"newsletter:processed-entries" description:"Redis set holding delivered fingerprints"`
	DatabaseURL   string `long:"database-url" env:"DATABASE_URL" description:"Postgres connection string (postgres backend)" validate:"required_if=LedgerBackend postgres"`

	// Application metadata
	LogLevel string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level: debug, info, warn or error" validate:"oneof=debug info warn warning error"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

// Load reads .env (when present), then flags and environment variables.
// A nil config with a nil error means help was printed.
func Load() (*Cfg, error) {
	return load(nil)
}

func load(args []string) (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("Warning: failed to read .env: %v\n", err)
	}

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validator.New().Struct(raw); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Cfg{
		Port:            raw.Port,
		APIAccessKey:    raw.APIAccessKey,
		APIEndpoint:     raw.APIEndpoint,
		APIKey:          raw.APIKey,
		DeliveryTimeout: raw.DeliveryTimeout,
		FeedsFile:       raw.FeedsFile,
		FeedURLs:        splitList(raw.FeedURLs),
		FetchTimeout:    raw.FetchTimeout,
		MaxFeedBytes:    raw.MaxFeedBytes,
		UserAgent:       raw.UserAgent,
		Schedule:        raw.Schedule,
		SendInterval:    raw.SendInterval,
		RunOnce:         raw.RunOnce,
		LedgerBackend:   raw.LedgerBackend,
		LedgerPath:      raw.LedgerPath,
		RedisAddr:       raw.RedisAddr,
		RedisPassword:   raw.RedisPassword,
		RedisKey:        raw.RedisKey,
		DatabaseURL:     raw.DatabaseURL,
		LogLevel:        raw.LogLevel,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
