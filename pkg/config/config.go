package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// DefaultFeedURL is the Dota 2 news event list on Steam
const DefaultFeedURL = "https://store.steampowered.com/events/ajaxgetpartnereventspageable/" +
	"?clan_accountid=0&appid=570&offset=0&count=100&l=english&origin=https:%2F%2Fwww.dota2.com"

// DefaultPreamble points readers to the full news page, MarkdownV2
const DefaultPreamble = "_*To see more updates and news follow this [link](https://www.dota2.com/news?l=english)*_"

// Config holds the application configuration
type Config struct {
	Feed     FeedConfig     `yaml:"feed" json:"feed" jsonschema:"description=Feed source configuration"`
	Poll     PollConfig     `yaml:"poll" json:"poll" jsonschema:"description=Polling configuration"`
	Telegram TelegramConfig `yaml:"telegram" json:"telegram" jsonschema:"description=Telegram delivery configuration"`
	Storage  StorageConfig  `yaml:"storage" json:"storage" jsonschema:"description=Snapshot storage configuration"`
	Message  MessageConfig  `yaml:"message" json:"message" jsonschema:"description=Message formatting configuration"`
	Server   ServerConfig   `yaml:"server" json:"server" jsonschema:"description=Status server configuration"`
}

// FeedConfig defines where and how the feed is fetched
type FeedConfig struct {
	URL       string        `yaml:"url" json:"url" jsonschema:"required,description=Feed URL"`
	Format    string        `yaml:"format" json:"format" jsonschema:"default=steam,enum=steam,enum=rss,description=Feed document format"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Fetch timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=newsrelay/1.0,description=User agent for feed requests"`
}

// PollConfig defines polling schedule
type PollConfig struct {
	Interval time.Duration `yaml:"interval" json:"interval" jsonschema:"default=5s,description=Sleep between poll cycles"`
}

// TelegramConfig defines the bot and the destination chat
type TelegramConfig struct {
	Token       string        `yaml:"token" json:"token" jsonschema:"description=Bot token (can use environment variable)"`
	Destination string        `yaml:"destination" json:"destination" jsonschema:"description=Chat id or @channel name"`
	APIURL      string        `yaml:"api_url" json:"api_url" jsonschema:"default=https://api.telegram.org,description=Bot API endpoint"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Send timeout"`
	RateLimit   float64       `yaml:"rate_limit" json:"rate_limit" jsonschema:"default=1,minimum=0,description=Messages per second sent to the destination"`
}

// StorageConfig defines snapshot persistence
type StorageConfig struct {
	Type string `yaml:"type" json:"type" jsonschema:"default=file,enum=file,enum=sqlite,description=Snapshot store type"`
	Path string `yaml:"path" json:"path" jsonschema:"default=newsrelay-snapshot.json,description=Snapshot file for file storage"`
	DSN  string `yaml:"dsn" json:"dsn" jsonschema:"default=file:newsrelay.db,description=Database connection string for sqlite storage"`
}

// MessageConfig defines outgoing message layout
type MessageConfig struct {
	Preamble    string `yaml:"preamble" json:"preamble" jsonschema:"description=MarkdownV2 text put before every message"`
	MaxChunkLen int    `yaml:"max_chunk_len" json:"max_chunk_len" jsonschema:"default=4000,minimum=1,maximum=4000,description=Maximum characters per message chunk"`
}

// ServerConfig defines the status server
type ServerConfig struct {
	Listen  string        `yaml:"listen" json:"listen" jsonschema:"description=HTTP status server listen address, empty disables the server"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
}

// Load reads configuration from a YAML file. Empty path gives the default configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		// expand environment variables
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.setDefaults()

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	// feed
	if c.Feed.URL == "" {
		c.Feed.URL = DefaultFeedURL
	}
	if c.Feed.Format == "" {
		c.Feed.Format = "steam"
	}
	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = 30 * time.Second
	}
	if c.Feed.UserAgent == "" {
		c.Feed.UserAgent = "newsrelay/1.0"
	}

	// poll
	if c.Poll.Interval == 0 {
		c.Poll.Interval = 5 * time.Second
	}

	// telegram
	if c.Telegram.APIURL == "" {
		c.Telegram.APIURL = "https://api.telegram.org"
	}
	if c.Telegram.Timeout == 0 {
		c.Telegram.Timeout = 30 * time.Second
	}
	if c.Telegram.RateLimit == 0 {
		c.Telegram.RateLimit = 1
	}

	// storage
	if c.Storage.Type == "" {
		c.Storage.Type = "file"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "newsrelay-snapshot.json"
	}
	if c.Storage.DSN == "" {
		c.Storage.DSN = "file:newsrelay.db"
	}

	// message
	if c.Message.Preamble == "" {
		c.Message.Preamble = DefaultPreamble
	}
	if c.Message.MaxChunkLen == 0 {
		c.Message.MaxChunkLen = 4000
	}

	// server
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	// validate feed config
	u, err := url.Parse(cfg.Feed.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("feed.url must be an absolute http(s) url, got %q", cfg.Feed.URL)
	}
	if cfg.Feed.Format != "steam" && cfg.Feed.Format != "rss" {
		return fmt.Errorf("feed.format must be steam or rss, got %q", cfg.Feed.Format)
	}
	if cfg.Feed.Timeout < time.Second {
		return fmt.Errorf("feed.timeout must be at least 1 second")
	}

	// validate poll config
	if cfg.Poll.Interval < 0 {
		return fmt.Errorf("poll.interval must be positive")
	}

	// validate telegram config
	if cfg.Telegram.RateLimit < 0 {
		return fmt.Errorf("telegram.rate_limit must be non-negative")
	}
	if cfg.Telegram.Timeout < time.Second {
		return fmt.Errorf("telegram.timeout must be at least 1 second")
	}

	// validate storage config
	if cfg.Storage.Type != "file" && cfg.Storage.Type != "sqlite" {
		return fmt.Errorf("storage.type must be file or sqlite, got %q", cfg.Storage.Type)
	}

	// validate message config
	if cfg.Message.MaxChunkLen < 1 || cfg.Message.MaxChunkLen > 4000 {
		return fmt.Errorf("message.max_chunk_len must be between 1 and 4000")
	}

	// validate server config
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	return nil
}

// Validate checks the final configuration, after command line overrides are applied.
// Delivery settings are checked here as they usually come from the environment.
func (c *Config) Validate() error {
	if err := validate(c); err != nil {
		return err
	}
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if c.Telegram.Destination == "" {
		return fmt.Errorf("telegram.destination is required")
	}
	if err := VerifyAgainstEmbeddedSchema(c); err != nil {
		return fmt.Errorf("verify config: %w", err)
	}
	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}
