package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Tracking      TrackingConfig     `mapstructure:"tracking"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Report        ReportConfig       `mapstructure:"report"`
	Screenshot    ScreenshotConfig   `mapstructure:"screenshot"`
	Scheduler     SchedulerConfig    `mapstructure:"scheduler"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
}

// TrackingConfig defines idle detection and accounting settings
type TrackingConfig struct {
	IdleMinutes       int    `mapstructure:"idle_minutes"`
	TickInterval      string `mapstructure:"tick_interval"`
	MaxTickDelta      string `mapstructure:"max_tick_delta"` // Cap on a single tick's credited time
	ResumeToday       bool   `mapstructure:"resume_today"`
	InputPollInterval string `mapstructure:"input_poll_interval"`
}

// NotificationConfig defines usage thresholds and break reminders (minutes)
type NotificationConfig struct {
	WarningMinutes       int    `mapstructure:"warning_minutes"`
	SoftLimitMinutes     int    `mapstructure:"soft_limit_minutes"`
	HardLimitMinutes     int    `mapstructure:"hard_limit_minutes"`
	BreakIntervalMinutes int    `mapstructure:"break_interval_minutes"` // 0 disables break reminders
	CheckIntervalMinutes int    `mapstructure:"check_interval_minutes"`
	DailyResetTime       string `mapstructure:"daily_reset_time"`
	Backend              string `mapstructure:"backend"` // auto, desktop, stdout, log
}

// ReportConfig defines the daily report job
type ReportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Time    string `mapstructure:"time"`
}

// ScreenshotConfig defines the hourly screenshot hook
type ScreenshotConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Command string `mapstructure:"command"`
	Timeout string `mapstructure:"timeout"`
}

// SchedulerConfig defines the job polling loop
type SchedulerConfig struct {
	PollInterval string `mapstructure:"poll_interval"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type          string      `mapstructure:"type"`
	Path          string      `mapstructure:"path"`
	Timeout       string      `mapstructure:"timeout"`
	RetentionDays int         `mapstructure:"retention_days"`
	Redis         RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Password        string `mapstructure:"password"`
	DB              int    `mapstructure:"db"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	DialTimeout     string `mapstructure:"dial_timeout"`
	ReadTimeout     string `mapstructure:"read_timeout"`
	WriteTimeout    string `mapstructure:"write_timeout"`
	ConnectAttempts int    `mapstructure:"connect_attempts"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("SCREENTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the configuration produced by defaults alone.
func Defaults() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Tracking defaults
	v.SetDefault("tracking.idle_minutes", 5)
	v.SetDefault("tracking.tick_interval", "1s")
	v.SetDefault("tracking.max_tick_delta", "5s")
	v.SetDefault("tracking.resume_today", true)
	v.SetDefault("tracking.input_poll_interval", "1s")

	// Notification defaults
	v.SetDefault("notifications.warning_minutes", 60)
	v.SetDefault("notifications.soft_limit_minutes", 90)
	v.SetDefault("notifications.hard_limit_minutes", 120)
	v.SetDefault("notifications.break_interval_minutes", 30)
	v.SetDefault("notifications.check_interval_minutes", 5)
	v.SetDefault("notifications.daily_reset_time", "00:05")
	v.SetDefault("notifications.backend", "auto")

	// Report defaults
	v.SetDefault("report.enabled", true)
	v.SetDefault("report.time", "21:00")

	// Screenshot defaults
	v.SetDefault("screenshot.enabled", false)
	v.SetDefault("screenshot.command", "")
	v.SetDefault("screenshot.timeout", "30s")

	// Scheduler defaults
	v.SetDefault("scheduler.poll_interval", "30s")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "~/.local/share/screentime/screentime.bolt")
	v.SetDefault("storage.timeout", "2s")
	v.SetDefault("storage.retention_days", 90)
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.key_prefix", "screentime")
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.connect_attempts", 3)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", "127.0.0.1:9464")
}

// Validate validates the configuration. It fills in derived values such as
// the hard limit falling back to the soft limit.
func Validate(cfg *Config) error {
	if cfg.Tracking.IdleMinutes < 0 {
		return fmt.Errorf("tracking.idle_minutes must be >= 0, got %d", cfg.Tracking.IdleMinutes)
	}

	tick, err := positiveDuration("tracking.tick_interval", cfg.Tracking.TickInterval)
	if err != nil {
		return err
	}
	maxDelta, err := positiveDuration("tracking.max_tick_delta", cfg.Tracking.MaxTickDelta)
	if err != nil {
		return err
	}
	if maxDelta < tick {
		return fmt.Errorf("tracking.max_tick_delta (%s) must not be shorter than tracking.tick_interval (%s)", maxDelta, tick)
	}
	if _, err := positiveDuration("tracking.input_poll_interval", cfg.Tracking.InputPollInterval); err != nil {
		return err
	}

	n := &cfg.Notifications
	if n.HardLimitMinutes == 0 {
		n.HardLimitMinutes = n.SoftLimitMinutes
	}
	if n.WarningMinutes <= 0 {
		return fmt.Errorf("notifications.warning_minutes must be > 0, got %d", n.WarningMinutes)
	}
	if n.SoftLimitMinutes <= 0 {
		return fmt.Errorf("notifications.soft_limit_minutes must be > 0, got %d", n.SoftLimitMinutes)
	}
	if n.SoftLimitMinutes < n.WarningMinutes {
		return fmt.Errorf("notifications.soft_limit_minutes (%d) must be >= warning_minutes (%d)", n.SoftLimitMinutes, n.WarningMinutes)
	}
	if n.HardLimitMinutes < n.SoftLimitMinutes {
		return fmt.Errorf("notifications.hard_limit_minutes (%d) must be >= soft_limit_minutes (%d)", n.HardLimitMinutes, n.SoftLimitMinutes)
	}
	if n.BreakIntervalMinutes < 0 {
		return fmt.Errorf("notifications.break_interval_minutes must be >= 0, got %d", n.BreakIntervalMinutes)
	}
	if n.CheckIntervalMinutes < 1 {
		return fmt.Errorf("notifications.check_interval_minutes must be >= 1, got %d", n.CheckIntervalMinutes)
	}
	if _, err := ParseClock(n.DailyResetTime); err != nil {
		return fmt.Errorf("notifications.daily_reset_time: %w", err)
	}
	switch n.Backend {
	case "", "auto", "desktop", "stdout", "log":
	default:
		return fmt.Errorf("notifications.backend must be one of auto, desktop, stdout, log, got %q", n.Backend)
	}

	if cfg.Report.Enabled {
		if _, err := ParseClock(cfg.Report.Time); err != nil {
			return fmt.Errorf("report.time: %w", err)
		}
	}

	if cfg.Screenshot.Enabled {
		if strings.TrimSpace(cfg.Screenshot.Command) == "" {
			return fmt.Errorf("screenshot.command is required when screenshot.enabled is true")
		}
		if _, err := positiveDuration("screenshot.timeout", cfg.Screenshot.Timeout); err != nil {
			return err
		}
	}

	if _, err := positiveDuration("scheduler.poll_interval", cfg.Scheduler.PollInterval); err != nil {
		return err
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "bolt"
	}
	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s (bolt or redis)", cfg.Storage.Type)
	}
	if _, err := positiveDuration("storage.timeout", cfg.Storage.Timeout); err != nil {
		return err
	}
	if cfg.Storage.RetentionDays < 0 {
		return fmt.Errorf("storage.retention_days must be >= 0, got %d", cfg.Storage.RetentionDays)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Address == "" {
		return fmt.Errorf("metrics.address is required when metrics are enabled")
	}

	return nil
}

// ClockTime is a time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

// String formats the time as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock parses an HH:MM time of day.
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("time must be in HH:MM format, got %q", s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// ParseDuration parses a duration string with a fallback
func ParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// isMissingFile reports whether err means an explicitly named config file
// does not exist. Viper only returns ConfigFileNotFoundError for searched paths.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func positiveDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}
