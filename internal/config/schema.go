package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config represents the root configuration structure for tgcopy.
type Config struct {
	DataDir string       `json:"dataDir"`
	Copy    CopyConfig   `json:"copy"`
	Client  ClientConfig `json:"client"`
	Notify  NotifyConfig `json:"notify"`
	Stream  StreamConfig `json:"stream"`
	Log     LogConfig    `json:"log"`
}

// CopyConfig holds the defaults of a copy run.
type CopyConfig struct {
	Text      bool `json:"text"`
	Media     bool `json:"media"`
	Documents bool `json:"documents"`

	PacingMs             int    `json:"pacingMs"`
	MaxRetries           int    `json:"maxRetries"`
	ReconnectIntervalSec int    `json:"reconnectIntervalSec"`
	ResolveRetry         string `json:"resolveRetry"` // "shared" or "unbounded"
	Journal              bool   `json:"journal"`
}

// ClientConfig describes how the MTProto client presents itself and paces
// its requests.
type ClientConfig struct {
	DeviceModel       string `json:"deviceModel"`
	SystemVersion     string `json:"systemVersion"`
	AppVersion        string `json:"appVersion"`
	CodeTimeoutSec    int    `json:"codeTimeoutSec"`
	RequestIntervalMs int    `json:"requestIntervalMs"`
	RequestBurst      int    `json:"requestBurst"`
	FloodWaitRetries  int    `json:"floodWaitRetries"`
}

// NotifyConfig represents the Bot API run notifier.
type NotifyConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token" env:"TGCOPY_NOTIFY_TOKEN"`
	ChatID  int64  `json:"chatId" env:"TGCOPY_NOTIFY_CHAT_ID"`
}

// StreamConfig represents the websocket event stream.
type StreamConfig struct {
	Addr string `json:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `json:"level" env:"TGCOPY_LOG_LEVEL"`
}

// DefaultConfig returns a new Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "~/" + DefaultConfigDir,
		Copy: CopyConfig{
			Text:                 true,
			Media:                true,
			Documents:            true,
			PacingMs:             500,
			MaxRetries:           5,
			ReconnectIntervalSec: 5,
			ResolveRetry:         "shared",
			Journal:              false,
		},
		Client: ClientConfig{
			DeviceModel:       "Desktop",
			SystemVersion:     "Windows",
			AppVersion:        "1.0",
			CodeTimeoutSec:    60,
			RequestIntervalMs: 400,
			RequestBurst:      2,
			FloodWaitRetries:  5,
		},
		Notify: NotifyConfig{
			Enabled: false,
		},
		Stream: StreamConfig{
			Addr: "127.0.0.1:8765",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DataPath returns the absolute data directory, expanding ~.
func (c *Config) DataPath() string {
	dir := c.DataDir
	if dir == "" {
		dir = "~/" + DefaultConfigDir
	}
	return expandPath(dir)
}

// LogDir returns the directory of the log file.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataPath(), "logs")
}

// JournalDir returns the directory of the copy journals.
func (c *Config) JournalDir() string {
	return filepath.Join(c.DataPath(), "journal")
}

// JobsPath returns the scheduled jobs file.
func (c *Config) JobsPath() string {
	return filepath.Join(c.DataPath(), "jobs.json")
}

// CredentialsPath returns the credentials file.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.DataPath(), CredentialsFile)
}

// Pacing returns the delay between copied messages.
func (c CopyConfig) Pacing() time.Duration {
	return time.Duration(c.PacingMs) * time.Millisecond
}

// ReconnectInterval returns the wait between reconnect attempts.
func (c CopyConfig) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectIntervalSec) * time.Second
}

// CodeTimeout returns how long login waits for the verification code.
func (c ClientConfig) CodeTimeout() time.Duration {
	return time.Duration(c.CodeTimeoutSec) * time.Second
}

// RequestInterval returns the minimum spacing between API requests.
func (c ClientConfig) RequestInterval() time.Duration {
	return time.Duration(c.RequestIntervalMs) * time.Millisecond
}

// expandPath expands ~ to the user's home directory and resolves the path.
func expandPath(path string) string {
	if path == "" {
		return path
	}

	// Expand ~ to home directory
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if len(path) == 1 {
			return home
		}
		// Handle ~/path and ~path cases
		if path[1] == '/' || path[1] == filepath.Separator {
			path = filepath.Join(home, path[2:])
		} else {
			path = filepath.Join(home, path[1:])
		}
	}

	// Convert to absolute path
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	return absPath
}
