package config

// Config is the process configuration, loaded once at startup and passed
// explicitly to component constructors. Only the logging section may be
// re-applied at runtime (see Watch); everything else is immutable for the
// process lifetime.
//
// All durations are Go duration strings (e.g. "500ms", "5s", "1h").
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Probe   ProbeConfig   `json:"probe"`
	Catalog CatalogConfig `json:"catalog"`

	// SubscribersFile points at the separate subscribers declaration.
	SubscribersFile string `json:"subscribers_file"`

	Notify   NotifyConfig   `json:"notify"`
	EventLog EventLogConfig `json:"eventlog"`
	Metrics  MetricsConfig  `json:"metrics,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ProbeConfig controls the availability probe.
//
// Defaults (when fields are omitted/zero):
//   - timeout: "5s"
//   - poll_delay: "5s"
//   - rate_per_sec: 0 (unlimited)
//   - min_body_bytes: 2048
type ProbeConfig struct {
	// TestMode replaces the HTTP probe with one that always reports
	// the item as available. Intended for end-to-end dry runs.
	TestMode bool `json:"test_mode,omitempty"`

	Timeout   string `json:"timeout,omitempty"`
	PollDelay string `json:"poll_delay,omitempty"`

	// RatePerSec caps outbound probe requests across all items.
	RatePerSec int `json:"rate_per_sec,omitempty"`

	// OutOfStockPattern is a regular expression; when it matches the
	// response body the item is reported unavailable.
	OutOfStockPattern string `json:"out_of_stock_pattern,omitempty"`

	// MinBodyBytes treats shorter responses as indeterminate
	// (truncated or interstitial pages).
	MinBodyBytes int `json:"min_body_bytes,omitempty"`
}

// CatalogConfig declares the monitored items.
//
// Items may be listed explicitly, generated from the color/size grid,
// or both. Grid URLs are built from URLTemplate with the placeholders
// {color}, {size} and {color_name} (the display name from Colors).
type CatalogConfig struct {
	URLTemplate string            `json:"url_template,omitempty"`
	Colors      map[string]string `json:"colors,omitempty"`
	Sizes       []string          `json:"sizes,omitempty"`

	Items []ItemConfig `json:"items,omitempty"`
}

type ItemConfig struct {
	Key   string            `json:"key"`
	URL   string            `json:"url"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// NotifyConfig controls outbound notification delivery.
//
// Defaults: channel "smtp", retry_max 5, retry_base "5s".
type NotifyConfig struct {
	// Channel is the default delivery channel for subscribers that
	// don't declare one ("smtp" or "telegram").
	Channel string `json:"channel,omitempty"`

	RetryMax  int    `json:"retry_max,omitempty"`
	RetryBase string `json:"retry_base,omitempty"`

	SMTP     SMTPConfig     `json:"smtp,omitempty"`
	Telegram TelegramConfig `json:"telegram,omitempty"`
}

type SMTPConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"` // default 465 (implicit TLS)
	From string `json:"from,omitempty"`
	// Password may be omitted and provided via STOCKWATCH_SMTP_PASSWORD.
	Password string `json:"password,omitempty"`
}

type TelegramConfig struct {
	// Token may be omitted and provided via STOCKWATCH_TELEGRAM_TOKEN.
	Token string `json:"token,omitempty"`
}

// EventLogConfig controls the durable availability-event store.
//
// Driver values:
//   - "file": JSON checkpoint file, overwritten atomically (default)
//   - "sqlite": SQLite database file
type EventLogConfig struct {
	Driver          string `json:"driver,omitempty"`
	Path            string `json:"path"`
	CheckpointEvery string `json:"checkpoint_every,omitempty"` // default "5s"
	BusyTimeout     string `json:"busy_timeout,omitempty"`     // sqlite only
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:9091"
}

// SubscriberConfig is one entry of the subscribers file: the key is the
// subscriber address, the value its constraints. A nil value means
// "every item, first notification only" (interval 0).
type SubscriberConfig struct {
	// Match restricts the subscription to items whose attributes carry
	// all listed values, e.g. {color: white} or {color: blue, size: "64"}.
	Match map[string]string `json:"match,omitempty"`

	// Interval is the minimum re-notify interval. Zero or omitted means
	// the subscriber is notified once per item and never again.
	Interval string `json:"interval,omitempty"`

	Channel string `json:"channel,omitempty"` // "smtp" | "telegram"
	ChatID  int64  `json:"chat_id,omitempty"` // telegram only
}
