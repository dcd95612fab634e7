package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration. It is read once at startup
// and never mutated at runtime.
type Config struct {
	Gerrit        GerritConfig        `toml:"gerrit"`
	Filter        FilterConfig        `toml:"filter"`
	Summary       SummaryConfig       `toml:"summary"`
	Reviewer      ReviewerConfig      `toml:"reviewer"`
	Schedule      ScheduleConfig      `toml:"schedule"`
	Tracking      TrackingConfig      `toml:"tracking"`
	Notifications NotificationsConfig `toml:"notifications"`
	Log           LogConfig           `toml:"log"`
}

// GerritConfig holds SSH connection settings for the review server
type GerritConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Username    string `toml:"username"`
	SSHKeyPath  string `toml:"ssh_key_path"`
	QueryAge    string `toml:"query_age"`     // e.g. "2d"; empty means unbounded
	ReviewScore int    `toml:"review_score"`  // Code-Review label, 0 means none
	HTTPBaseURL string `toml:"http_base_url"` // REST endpoint for file content, optional
}

// FilterConfig holds the triage policy for changes
type FilterConfig struct {
	Extensions      []string `toml:"extensions"`
	ExcludePatterns []string `toml:"exclude_patterns"`
	MaxLinesChanged int      `toml:"max_lines_changed"`
	MaxFileSizeKB   int      `toml:"max_file_size_kb"`
}

// SummaryConfig holds thresholds for change-scale classification
type SummaryConfig struct {
	SmallThreshold  int `toml:"small_threshold"`
	LargeThreshold  int `toml:"large_threshold"`
	MaxContentBytes int `toml:"max_content_bytes"` // full-file context cutoff
}

// ReviewerConfig holds settings for the Claude CLI invocation
type ReviewerConfig struct {
	Command        string `toml:"command"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	CleanMarker    string `toml:"clean_marker"` // verdict text meaning "nothing to report"
}

// Timeout returns the analysis budget as a duration
func (c ReviewerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ScheduleConfig holds the recurring trigger configuration
type ScheduleConfig struct {
	IntervalMinutes      int      `toml:"interval_minutes"`
	FixedTimes           []string `toml:"fixed_times"` // "HH:MM" wall-clock times
	CheckIntervalSeconds int      `toml:"check_interval_seconds"`
	CooldownSeconds      int      `toml:"cooldown_seconds"`
	InterCallDelaySecs   int      `toml:"inter_call_delay_seconds"`
}

// Interval returns the recurring pass interval
func (c ScheduleConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// CheckInterval returns the polling granularity of the scheduler loop
func (c ScheduleConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

// Cooldown returns the wait applied after a failed pass
func (c ScheduleConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// InterCallDelay returns the pause between changes within a pass
func (c ScheduleConfig) InterCallDelay() time.Duration {
	return time.Duration(c.InterCallDelaySecs) * time.Second
}

// TrackingConfig selects and locates the dedup store
type TrackingConfig struct {
	Backend string `toml:"backend"` // "file" or "sqlite"
	Path    string `toml:"path"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	SlackWebhook string `toml:"slack_webhook"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "text"
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Gerrit: GerritConfig{
			Port:       29418,
			SSHKeyPath: filepath.Join(home, ".ssh", "id_rsa"),
		},
		Filter: FilterConfig{
			Extensions: []string{
				".py", ".java", ".js", ".ts", ".go", ".rs", ".cpp", ".c", ".h",
				".sh", ".bash", ".zsh", ".fish",
				".yaml", ".yml", ".json", ".xml", ".toml",
				".sql", ".md", ".txt", ".cfg", ".ini", ".conf",
				".kt", ".scala", ".rb", ".php", ".swift", ".dart",
			},
			ExcludePatterns: []string{
				"test/", "tests/", "__pycache__/", "node_modules/",
				".git/", "build/", "dist/", "target/",
				"generated/", "auto-generated",
			},
			MaxLinesChanged: 5000,
			MaxFileSizeKB:   512,
		},
		Summary: SummaryConfig{
			SmallThreshold:  50,
			LargeThreshold:  500,
			MaxContentBytes: 10240,
		},
		Reviewer: ReviewerConfig{
			Command:        "claude",
			TimeoutSeconds: 120,
			CleanMarker:    "LGTM",
		},
		Schedule: ScheduleConfig{
			IntervalMinutes:      30,
			FixedTimes:           []string{"09:00", "14:00"},
			CheckIntervalSeconds: 60,
			CooldownSeconds:      300,
			InterCallDelaySecs:   2,
		},
		Tracking: TrackingConfig{
			Backend: "file",
			Path:    "reviewed_changes.txt",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults,
// then applies overrides from the environment. A .env file next to the
// process (or named by ENV_FILE) is loaded first so credentials can stay
// out of the TOML file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnv()

	cfg.Gerrit.SSHKeyPath = ExpandPath(cfg.Gerrit.SSHKeyPath)
	cfg.Tracking.Path = ExpandPath(cfg.Tracking.Path)

	return cfg, nil
}

// applyEnv overrides settings from environment variables. Names match the
// .env contract the deployment scripts already use.
func (c *Config) applyEnv() {
	setString(&c.Gerrit.Host, "GERRIT_HOST")
	setInt(&c.Gerrit.Port, "GERRIT_PORT")
	setString(&c.Gerrit.Username, "GERRIT_USERNAME")
	setString(&c.Gerrit.SSHKeyPath, "SSH_KEY_PATH")
	setString(&c.Gerrit.QueryAge, "GERRIT_QUERY_AGE")
	setInt(&c.Filter.MaxLinesChanged, "MAX_LINES_CHANGED")
	setInt(&c.Reviewer.TimeoutSeconds, "CLAUDE_CLI_TIMEOUT")
	setString(&c.Tracking.Path, "TRACKING_FILE")
	setInt(&c.Schedule.IntervalMinutes, "SCHEDULE_MINUTES")
	setInt(&c.Schedule.CheckIntervalSeconds, "SCHEDULE_CHECK_SECONDS")
	setInt(&c.Schedule.CooldownSeconds, "ERROR_RETRY_SECONDS")
	setInt(&c.Schedule.InterCallDelaySecs, "API_DELAY_SECONDS")
	setString(&c.Notifications.SlackWebhook, "SLACK_WEBHOOK")
	setString(&c.Log.Level, "LOG_LEVEL")
}

// Validate checks that mandatory settings are present. Called once at
// startup; a failure here is a non-zero exit.
func (c *Config) Validate() error {
	if c.Gerrit.Host == "" {
		return fmt.Errorf("gerrit.host is required")
	}
	if c.Gerrit.Username == "" {
		return fmt.Errorf("gerrit.username is required")
	}
	if c.Gerrit.Port <= 0 {
		return fmt.Errorf("gerrit.port must be positive")
	}
	if _, err := os.Stat(c.Gerrit.SSHKeyPath); err != nil {
		return fmt.Errorf("ssh key not found: %s", c.Gerrit.SSHKeyPath)
	}
	if c.Summary.SmallThreshold >= c.Summary.LargeThreshold {
		return fmt.Errorf("summary.small_threshold must be below large_threshold")
	}
	switch c.Tracking.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("tracking.backend must be \"file\" or \"sqlite\", got %q", c.Tracking.Backend)
	}
	if c.Tracking.Path == "" {
		return fmt.Errorf("tracking.path is required")
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "gerrit-reviewer", "config.toml")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
