// Package container wires the emission workflow components together and
// manages their lifecycle.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/emission-workflow/internal/domain/requirement"
	"github.com/garyjia/emission-workflow/internal/domain/sla"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Lark     LarkConfig
	Rules    requirement.RuleSet
	SLA      SLAConfig
	Reports  ReportsConfig
	Server   ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsDir replaces the embedded migrations when set
	MigrationsDir string
}

// LarkConfig holds the notification bot settings. Notifications are only
// logged when AppID is empty.
type LarkConfig struct {
	AppID         string
	AppSecret     string
	DefaultChatID string

	// Chats maps an escalation target to its team chat
	Chats map[string]string
}

// SLAConfig holds the SLA policy and the sweep schedule.
type SLAConfig struct {
	Policy           sla.Policy
	SweepInterval    time.Duration
	SweepConcurrency int
	SweepOnStart     bool
}

// ReportsConfig holds the SLA report archive settings. Archiving is
// disabled when Dir is empty.
type ReportsConfig struct {
	Dir        string
	ArchiveDir string
	Retention  int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with the production rule values and budgets.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/emissions.db",
			MaxOpenConns:    4,
			MaxIdleConns:    4,
			ConnMaxLifetime: time.Hour,
		},
		Rules: requirement.DefaultRuleSet(),
		SLA: SLAConfig{
			Policy:           sla.DefaultPolicy(),
			SweepInterval:    15 * time.Minute,
			SweepConcurrency: 8,
			SweepOnStart:     true,
		},
		Reports: ReportsConfig{
			Dir:        "data/reports",
			ArchiveDir: "sla",
			Retention:  96,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Lark.AppID != "" && c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
	}
	if len(c.SLA.Policy.Budgets) == 0 {
		return fmt.Errorf("sla budgets are required")
	}
	if c.SLA.SweepInterval <= 0 {
		return fmt.Errorf("sla sweep interval must be positive")
	}
	if c.SLA.SweepConcurrency <= 0 {
		return fmt.Errorf("sla sweep concurrency must be positive")
	}
	return nil
}
