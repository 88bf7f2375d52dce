package config

// Config is the full on-disk configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1h").
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Monitor  MonitorConfig  `json:"monitor"`
	Fetch    FetchConfig    `json:"fetch"`
	Telegram TelegramConfig `json:"telegram"`
	HTTP     HTTPConfig     `json:"http"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the SQLite store.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// MonitorConfig controls the recurring price checks.
//
// Defaults (when fields are omitted/zero):
//   - check_interval: "1h"
//   - check_timeout:  "2m"
type MonitorConfig struct {
	CheckInterval string `json:"check_interval,omitempty"`
	CheckTimeout  string `json:"check_timeout,omitempty"`
}

// FetchConfig controls how product snapshots are obtained.
//
// Mode selects the fetcher implementation:
//   - "headless": render the page in headless Chrome (default)
//   - "static":   plain HTTP + HTML parsing
type FetchConfig struct {
	Mode          string `json:"mode,omitempty"`
	NavTimeout    string `json:"nav_timeout,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	RatePerMinute int    `json:"rate_per_minute,omitempty"`
	RespectRobots bool   `json:"respect_robots,omitempty"`
}

type TelegramConfig struct {
	Enabled     bool   `json:"enabled"`
	Token       string `json:"token,omitempty"`
	ChatID      int64  `json:"chat_id,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}

type HTTPConfig struct {
	Addr         string `json:"addr,omitempty"` // default "127.0.0.1:8080"
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}
