package main

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/screentime/internal/config"
	"github.com/goodtune/screentime/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the screentime configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := storage.ExpandHome(configPath)

	// Load configuration
	cfg, err := config.Load(path)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with --dump)
	unknownKeys, err := findUnknownKeys(path)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", path)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		_, _ = fmt.Fprintln(os.Stdout)
		_, _ = red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		_, _ = fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	// If dump requested, show full configuration with defaults highlighted
	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(cfg, config.Defaults(), unknownKeys)
	}

	return nil
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	validKeys := getValidKeys()

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	return unknown, nil
}

// getValidKeys returns the set of configuration keys. Every key has a
// default, so the defaults define the schema.
func getValidKeys() map[string]bool {
	v := viper.New()
	config.SetDefaults(v)

	keys := make(map[string]bool)
	for _, key := range v.AllKeys() {
		keys[key] = true
	}
	return keys
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config, unknownKeys []string) {
	// Setup colors (only if terminal supports it)
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	// Tracking
	_, _ = cyan.Println("\n[tracking]")
	dumpField("  idle_minutes", cfg.Tracking.IdleMinutes, defaultCfg.Tracking.IdleMinutes, yellow, green)
	dumpField("  tick_interval", cfg.Tracking.TickInterval, defaultCfg.Tracking.TickInterval, yellow, green)
	dumpField("  max_tick_delta", cfg.Tracking.MaxTickDelta, defaultCfg.Tracking.MaxTickDelta, yellow, green)
	dumpField("  resume_today", cfg.Tracking.ResumeToday, defaultCfg.Tracking.ResumeToday, yellow, green)
	dumpField("  input_poll_interval", cfg.Tracking.InputPollInterval, defaultCfg.Tracking.InputPollInterval, yellow, green)

	// Notifications
	_, _ = cyan.Println("\n[notifications]")
	dumpField("  warning_minutes", cfg.Notifications.WarningMinutes, defaultCfg.Notifications.WarningMinutes, yellow, green)
	dumpField("  soft_limit_minutes", cfg.Notifications.SoftLimitMinutes, defaultCfg.Notifications.SoftLimitMinutes, yellow, green)
	dumpField("  hard_limit_minutes", cfg.Notifications.HardLimitMinutes, defaultCfg.Notifications.HardLimitMinutes, yellow, green)
	dumpField("  break_interval_minutes", cfg.Notifications.BreakIntervalMinutes, defaultCfg.Notifications.BreakIntervalMinutes, yellow, green)
	dumpField("  check_interval_minutes", cfg.Notifications.CheckIntervalMinutes, defaultCfg.Notifications.CheckIntervalMinutes, yellow, green)
	dumpField("  daily_reset_time", cfg.Notifications.DailyResetTime, defaultCfg.Notifications.DailyResetTime, yellow, green)
	dumpField("  backend", cfg.Notifications.Backend, defaultCfg.Notifications.Backend, yellow, green)

	// Report
	_, _ = cyan.Println("\n[report]")
	dumpField("  enabled", cfg.Report.Enabled, defaultCfg.Report.Enabled, yellow, green)
	dumpField("  time", cfg.Report.Time, defaultCfg.Report.Time, yellow, green)

	// Screenshot
	_, _ = cyan.Println("\n[screenshot]")
	dumpField("  enabled", cfg.Screenshot.Enabled, defaultCfg.Screenshot.Enabled, yellow, green)
	dumpField("  command", cfg.Screenshot.Command, defaultCfg.Screenshot.Command, yellow, green)
	dumpField("  timeout", cfg.Screenshot.Timeout, defaultCfg.Screenshot.Timeout, yellow, green)

	// Scheduler
	_, _ = cyan.Println("\n[scheduler]")
	dumpField("  poll_interval", cfg.Scheduler.PollInterval, defaultCfg.Scheduler.PollInterval, yellow, green)

	// Storage
	_, _ = cyan.Println("\n[storage]")
	dumpField("  type", cfg.Storage.Type, defaultCfg.Storage.Type, yellow, green)
	dumpField("  path", cfg.Storage.Path, defaultCfg.Storage.Path, yellow, green)
	dumpField("  timeout", cfg.Storage.Timeout, defaultCfg.Storage.Timeout, yellow, green)
	dumpField("  retention_days", cfg.Storage.RetentionDays, defaultCfg.Storage.RetentionDays, yellow, green)
	_, _ = cyan.Println("  [storage.redis]")
	dumpField("    host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host, yellow, green)
	dumpField("    port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port, yellow, green)
	dumpField("    password", redactPassword(cfg.Storage.Redis.Password), redactPassword(defaultCfg.Storage.Redis.Password), yellow, green)
	dumpField("    db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB, yellow, green)
	dumpField("    key_prefix", cfg.Storage.Redis.KeyPrefix, defaultCfg.Storage.Redis.KeyPrefix, yellow, green)
	dumpField("    dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout, yellow, green)
	dumpField("    read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout, yellow, green)
	dumpField("    write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout, yellow, green)
	dumpField("    connect_attempts", cfg.Storage.Redis.ConnectAttempts, defaultCfg.Storage.Redis.ConnectAttempts, yellow, green)

	// Logging
	_, _ = cyan.Println("\n[logging]")
	dumpField("  level", cfg.Logging.Level, defaultCfg.Logging.Level, yellow, green)
	dumpField("  format", cfg.Logging.Format, defaultCfg.Logging.Format, yellow, green)

	// Metrics
	_, _ = cyan.Println("\n[metrics]")
	dumpField("  enabled", cfg.Metrics.Enabled, defaultCfg.Metrics.Enabled, yellow, green)
	dumpField("  address", cfg.Metrics.Address, defaultCfg.Metrics.Address, yellow, green)

	// Display unknown keys if any
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)

		_, _ = cyan.Println("\n[UNKNOWN KEYS - These will be ignored!]")
		for _, key := range unknownKeys {
			_, _ = red.Printf("  %s = (unknown key - check for typos)\n", key)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	isDefault := reflect.DeepEqual(value, defaultValue)

	valueStr := fmt.Sprintf("%v", value)

	if isDefault {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
