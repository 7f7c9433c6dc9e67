package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MonitorConfig configures a shop terminal running rentalwatch
type MonitorConfig struct {
	BackendURL  string              `yaml:"backend_url"`
	BranchID    int64               `yaml:"branch_id"`
	SessionFile string              `yaml:"session_file"`
	Intervals   IntervalConfig      `yaml:"intervals"`
	Notify      MonitorNotifyConfig `yaml:"notify"`
	Log         LogConfig           `yaml:"log"`
}

// IntervalConfig holds the terminal's loop periods
type IntervalConfig struct {
	PollSeconds          int `yaml:"poll_seconds"`
	SyncSeconds          int `yaml:"sync_seconds"`
	TickMillis           int `yaml:"tick_millis"`
	ActionTimeoutSeconds int `yaml:"action_timeout_seconds"`
	HTTPRetries          int `yaml:"http_retries"`
}

// MonitorNotifyConfig selects where near-end and ended alerts go. The log
// sink is always on; e-mail and push are added when configured.
type MonitorNotifyConfig struct {
	AlertEmail          string         `yaml:"alert_email"`
	SendGrid            SendGridConfig `yaml:"sendgrid"`
	FirebaseCredentials string         `yaml:"firebase_credentials"`
	TopicPrefix         string         `yaml:"topic_prefix"`
	QueueSize           int            `yaml:"queue_size"`
}

// LoadMonitor reads the terminal configuration. The file is optional; a
// missing file means defaults plus environment.
func LoadMonitor(configPath string) (*MonitorConfig, error) {
	var cfg MonitorConfig
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *MonitorConfig) overrideWithEnv() {
	if val := os.Getenv("RENTALWATCH_BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("RENTALWATCH_BRANCH_ID"); val != "" {
		fmt.Sscanf(val, "%d", &c.BranchID)
	}
	if val := os.Getenv("RENTALWATCH_SESSION_FILE"); val != "" {
		c.SessionFile = val
	}
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Notify.SendGrid.APIKey = val
	}
	if val := os.Getenv("FIREBASE_CREDENTIALS"); val != "" {
		c.Notify.FirebaseCredentials = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
}

// Validate checks the terminal configuration and fills defaults
func (c *MonitorConfig) Validate() error {
	if c.BackendURL == "" {
		c.BackendURL = "http://localhost:8080"
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend url: %q", c.BackendURL)
	}
	if c.BranchID < 0 {
		return fmt.Errorf("invalid branch id: %d", c.BranchID)
	}

	if c.Intervals.PollSeconds <= 0 {
		c.Intervals.PollSeconds = 5
	}
	if c.Intervals.SyncSeconds <= 0 {
		c.Intervals.SyncSeconds = 60
	}
	if c.Intervals.TickMillis <= 0 {
		c.Intervals.TickMillis = 1000
	}
	if c.Intervals.ActionTimeoutSeconds <= 0 {
		c.Intervals.ActionTimeoutSeconds = 10
	}
	if c.Intervals.HTTPRetries < 0 {
		c.Intervals.HTTPRetries = 0
	}

	if c.Notify.SendGrid.APIKey != "" {
		if c.Notify.AlertEmail == "" || c.Notify.SendGrid.FromEmail == "" {
			return fmt.Errorf("alert_email and sendgrid from_email are required for e-mail alerts")
		}
		if c.Notify.SendGrid.FromName == "" {
			c.Notify.SendGrid.FromName = "Rental Shop"
		}
	}
	if c.Notify.TopicPrefix == "" {
		c.Notify.TopicPrefix = "branch-"
	}
	if c.Notify.QueueSize <= 0 {
		c.Notify.QueueSize = 64
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	return nil
}

func (c *MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.Intervals.PollSeconds) * time.Second
}

func (c *MonitorConfig) SyncInterval() time.Duration {
	return time.Duration(c.Intervals.SyncSeconds) * time.Second
}

func (c *MonitorConfig) TickInterval() time.Duration {
	return time.Duration(c.Intervals.TickMillis) * time.Millisecond
}

func (c *MonitorConfig) ActionTimeout() time.Duration {
	return time.Duration(c.Intervals.ActionTimeoutSeconds) * time.Second
}
