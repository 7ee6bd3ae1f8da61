package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	domainwf "github.com/garyjia/emission-workflow/internal/domain/workflow"
	"github.com/garyjia/emission-workflow/pkg/utils"
)

// EnvPrefix prefixes every environment override, e.g. EMISSION_SERVER_PORT
const EnvPrefix = "EMISSION"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Rules    RulesConfig    `mapstructure:"rules"`
	SLA      SLAConfig      `mapstructure:"sla"`
	Reports  ReportsConfig  `mapstructure:"reports"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// MigrationsDir overrides the migrations embedded in the binary
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// LarkConfig holds the notification bot credentials and the chat per
// escalation target (operations, medical)
type LarkConfig struct {
	AppID         string            `mapstructure:"app_id"`
	AppSecret     string            `mapstructure:"app_secret"`
	DefaultChatID string            `mapstructure:"default_chat_id"`
	Chats         map[string]string `mapstructure:"chats"`
}

// RulesConfig holds the requirement rule values
type RulesConfig struct {
	OfficialIDThreshold  string            `mapstructure:"official_id_threshold"`
	OfficialIDThresholds map[string]string `mapstructure:"official_id_thresholds"`
	SeniorityGapDays     int               `mapstructure:"seniority_gap_days"`
}

// CurrencyThresholds parses the per-currency thresholds. Keys are ISO codes
// in any case.
func (r RulesConfig) CurrencyThresholds() (map[string]decimal.Decimal, error) {
	thresholds := make(map[string]decimal.Decimal, len(r.OfficialIDThresholds))
	for key, raw := range r.OfficialIDThresholds {
		code := strings.ToUpper(key)
		if err := utils.ValidateCurrency(code); err != nil {
			return nil, fmt.Errorf("rules.official_id_thresholds: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("rules.official_id_thresholds.%s: %w", key, err)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("rules.official_id_thresholds.%s must not be negative", key)
		}
		thresholds[code] = amount
	}
	return thresholds, nil
}

// SLAConfig holds the per-state budgets and the sweep schedule
type SLAConfig struct {
	// Budgets is keyed by lifecycle state, case-insensitive
	Budgets          map[string]time.Duration `mapstructure:"budgets"`
	WarningRatio     float64                  `mapstructure:"warning_ratio"`
	HighRatio        float64                  `mapstructure:"high_ratio"`
	SweepInterval    time.Duration            `mapstructure:"sweep_interval"`
	SweepConcurrency int                      `mapstructure:"sweep_concurrency"`
	SweepOnStart     bool                     `mapstructure:"sweep_on_start"`
}

// ReportsConfig holds the SLA report archive settings
type ReportsConfig struct {
	Dir        string `mapstructure:"dir"`
	ArchiveDir string `mapstructure:"archive_dir"`
	Retention  int    `mapstructure:"retention"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configuration from configPath (skipped when empty) and the
// environment, applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.path", "data/emissions.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.migrations_dir", "")

	v.SetDefault("rules.official_id_threshold", "500000")
	v.SetDefault("rules.seniority_gap_days", 30)

	v.SetDefault("sla.budgets", map[string]interface{}{
		"draft":                "24h",
		"under_ocr_review":     "4h",
		"missing_items":        "72h",
		"viable":               "24h",
		"escalated_operations": "48h",
		"escalated_medical":    "72h",
	})
	v.SetDefault("sla.warning_ratio", 0.8)
	v.SetDefault("sla.high_ratio", 2.0)
	v.SetDefault("sla.sweep_interval", 15*time.Minute)
	v.SetDefault("sla.sweep_concurrency", 8)
	v.SetDefault("sla.sweep_on_start", true)

	v.SetDefault("reports.dir", "data/reports")
	v.SetDefault("reports.archive_dir", "sla")
	v.SetDefault("reports.retention", 96)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the credentials to their conventional unprefixed names
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.default_chat_id", "LARK_DEFAULT_CHAT_ID")
	_ = v.BindEnv("lark.chats.operations", "LARK_OPERATIONS_CHAT_ID")
	_ = v.BindEnv("lark.chats.medical", "LARK_MEDICAL_CHAT_ID")
	_ = v.BindEnv("database.path", EnvPrefix+"_DATABASE_PATH", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}
	chats := 0
	for target, chatID := range c.Lark.Chats {
		if !domainwf.EscalationTarget(target).IsValid() {
			return fmt.Errorf("lark.chats: unknown escalation target %q", target)
		}
		if chatID != "" {
			chats++
		}
	}
	if c.Lark.AppID != "" && c.Lark.DefaultChatID == "" && chats == 0 {
		return fmt.Errorf("lark is enabled but no chat is configured")
	}

	threshold, err := decimal.NewFromString(c.Rules.OfficialIDThreshold)
	if err != nil {
		return fmt.Errorf("rules.official_id_threshold: %w", err)
	}
	if threshold.IsNegative() {
		return fmt.Errorf("rules.official_id_threshold must not be negative")
	}
	if _, err := c.Rules.CurrencyThresholds(); err != nil {
		return err
	}
	if c.Rules.SeniorityGapDays < 0 {
		return fmt.Errorf("rules.seniority_gap_days must not be negative")
	}

	if _, err := c.SLA.StateBudgets(); err != nil {
		return err
	}
	if c.SLA.WarningRatio <= 0 || c.SLA.WarningRatio >= 1 {
		return fmt.Errorf("sla.warning_ratio must be in (0, 1), got %v", c.SLA.WarningRatio)
	}
	if c.SLA.HighRatio < 1 {
		return fmt.Errorf("sla.high_ratio must be at least 1, got %v", c.SLA.HighRatio)
	}
	if c.SLA.SweepInterval <= 0 {
		return fmt.Errorf("sla.sweep_interval must be positive")
	}
	if c.SLA.SweepConcurrency <= 0 {
		return fmt.Errorf("sla.sweep_concurrency must be positive")
	}

	if c.Reports.Retention < 0 {
		return fmt.Errorf("reports.retention must not be negative")
	}

	return nil
}

// StateBudgets converts the configured budgets to lifecycle states. Keys are
// lowercased by viper, so they are matched case-insensitively.
func (s SLAConfig) StateBudgets() (map[domainwf.State]time.Duration, error) {
	budgets := make(map[domainwf.State]time.Duration, len(s.Budgets))
	for key, budget := range s.Budgets {
		state, err := domainwf.ParseState(strings.ToUpper(key))
		if err != nil {
			return nil, fmt.Errorf("sla.budgets: %w", err)
		}
		if budget <= 0 {
			return nil, fmt.Errorf("sla.budgets: budget for %s must be positive", state)
		}
		budgets[state] = budget
	}
	return budgets, nil
}
