package cfg

import "time"

type Cfg struct {
	// HTTP control API
	Port         string
	APIAccessKey string

	// Downstream delivery
	APIEndpoint     string
	APIKey          string
	DeliveryTimeout time.Duration

	// Feeds
	FeedsFile    string
	FeedURLs     []string
	FetchTimeout time.Duration
	MaxFeedBytes int64
	UserAgent    string

	// Scheduling and pacing
	Schedule     string
	SendInterval time.Duration
	RunOnce      bool

	// Ledger
	LedgerBackend string
	LedgerPath    string
	RedisAddr     string
	RedisPassword string
	RedisKey      string
	DatabaseURL   string

	// Application metadata
	LogLevel string
	Debug    bool
	Version  string
}
