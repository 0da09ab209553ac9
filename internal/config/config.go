package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. BLOODCAMP_DATABASE_URL
const EnvPrefix = "BLOODCAMP_"

// ScheduleBlackout is a recurring date on which camps cannot be scheduled
type ScheduleBlackout struct {
	RRule  string `yaml:"rrule" validate:"required"`
	Reason string `yaml:"reason" validate:"required"`
}

// StatisticsConfig tunes the derived dashboards
type StatisticsConfig struct {
	AttendanceWeight     float64 `yaml:"attendanceWeight" validate:"gte=0,lte=1"`
	UtilizationWeight    float64 `yaml:"utilizationWeight" validate:"gte=0,lte=1"`
	UrgentAttendanceRate float64 `yaml:"urgentAttendanceRate" validate:"gte=0,lte=100"`
	LowAttendanceRate    float64 `yaml:"lowAttendanceRate" validate:"gte=0,lte=100"`
}

// NotificationsConfig configures the asynchronous event sinks
type NotificationsConfig struct {
	QueueSize       int     `yaml:"queueSize" validate:"gte=1"`
	Workers         int     `yaml:"workers" validate:"gte=1,lte=64"`
	AMQPURL         string  `yaml:"amqpURL,omitempty" env:"AMQP_URL, overwrite" validate:"omitempty,url"`
	Exchange        string  `yaml:"exchange,omitempty" env:"AMQP_EXCHANGE, overwrite" validate:"required_with=AMQPURL"`
	Email           bool    `yaml:"email"`
	EmailsPerMinute float64 `yaml:"emailsPerMinute" validate:"gte=0"`
}

// DonationRetryConfig bounds retries of donation writes that failed after attendance was committed
type DonationRetryConfig struct {
	MaxAttempts     int `yaml:"maxAttempts" validate:"gte=1"`
	IntervalSeconds int `yaml:"intervalSeconds" validate:"gte=1"`
}

// Config represents the application configuration
type Config struct {
	DatabaseURL       string              `yaml:"databaseURL" env:"DATABASE_URL, overwrite" validate:"required"`
	CooldownMonths    int                 `yaml:"cooldownMonths" validate:"gte=1,lte=24"`
	ScheduleBlackouts []ScheduleBlackout  `yaml:"scheduleBlackouts,omitempty" validate:"dive"`
	Statistics        StatisticsConfig    `yaml:"statistics"`
	Notifications     NotificationsConfig `yaml:"notifications" env:",prefix=NOTIFY_"`
	DonationRetry     DonationRetryConfig `yaml:"donationRetry"`
	ReportSheetID     string              `yaml:"reportSheetID,omitempty" env:"REPORT_SHEET_ID, overwrite"`
	RosterSheetID     string              `yaml:"rosterSheetID,omitempty" env:"ROSTER_SHEET_ID, overwrite"`
	RosterTab         string              `yaml:"rosterTab,omitempty" validate:"required_with=RosterSheetID"`
	MetricsAddr       string              `yaml:"metricsAddr" env:"METRICS_ADDR, overwrite" validate:"required,hostname_port"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from bloodcamp_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads the configuration for an environment suffix
// For example, env="test" will look for "bloodcamp_config.test.yaml" and ".env.test"
func LoadWithEnv(env string) (*Config, error) {
	fileName := "bloodcamp_config.yaml"
	if env != "" {
		fileName = "bloodcamp_config." + env + ".yaml"
	}

	configPath, err := findFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	if err := loadDotEnv(env); err != nil {
		return nil, err
	}

	return LoadFromPath(configPath, envconfig.OsLookuper())
}

// LoadFromPath loads the configuration from a specific path, applies environment
// overrides from lookuper and validates the result
func LoadFromPath(path string, lookuper envconfig.Lookuper) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if lookuper != nil {
		if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
			Target:   &cfg,
			Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
		}); err != nil {
			return nil, fmt.Errorf("failed to process environment overrides: %w", err)
		}
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills unset tuning values
func ApplyDefaults(cfg *Config) {
	if cfg.CooldownMonths == 0 {
		cfg.CooldownMonths = 6
	}
	if cfg.Statistics.AttendanceWeight == 0 && cfg.Statistics.UtilizationWeight == 0 {
		cfg.Statistics.AttendanceWeight = 0.6
		cfg.Statistics.UtilizationWeight = 0.4
	}
	if cfg.Statistics.UrgentAttendanceRate == 0 {
		cfg.Statistics.UrgentAttendanceRate = 50
	}
	if cfg.Statistics.LowAttendanceRate == 0 {
		cfg.Statistics.LowAttendanceRate = 40
	}
	if cfg.Notifications.QueueSize == 0 {
		cfg.Notifications.QueueSize = 256
	}
	if cfg.Notifications.Workers == 0 {
		cfg.Notifications.Workers = 2
	}
	if cfg.Notifications.EmailsPerMinute == 0 {
		cfg.Notifications.EmailsPerMinute = 20
	}
	if cfg.DonationRetry.MaxAttempts == 0 {
		cfg.DonationRetry.MaxAttempts = 5
	}
	if cfg.DonationRetry.IntervalSeconds == 0 {
		cfg.DonationRetry.IntervalSeconds = 60
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = "localhost:9102"
	}
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	// Run struct validation
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Validate rrule syntax for each blackout
	for i, blackout := range cfg.ScheduleBlackouts {
		if _, err := rrule.StrToRRule(blackout.RRule); err != nil {
			return fmt.Errorf("invalid rrule in scheduleBlackouts[%d]: %w", i, err)
		}
	}

	return nil
}

// loadDotEnv loads .env.<env> then .env into the process environment. Missing files are ignored.
func loadDotEnv(env string) error {
	files := []string{".env"}
	if env != "" {
		files = []string{".env." + env, ".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// findFile searches for fileName in the current directory and then the home directory
func findFile(fileName string) (string, error) {
	// Check current directory
	if _, err := os.Stat(fileName); err == nil {
		return fileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homePath := filepath.Join(homeDir, fileName)
	if _, err := os.Stat(homePath); err == nil {
		return homePath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", fileName)
}
