package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/emission-workflow/internal/container"
	"github.com/garyjia/emission-workflow/internal/domain/requirement"
	"github.com/garyjia/emission-workflow/internal/domain/sla"
)

// ToContainerConfig converts the file-based configuration into the explicit
// values the container wires into the engine.
func (c *Config) ToContainerConfig() (*container.Config, error) {
	threshold, err := decimal.NewFromString(c.Rules.OfficialIDThreshold)
	if err != nil {
		return nil, fmt.Errorf("rules.official_id_threshold: %w", err)
	}
	currencies, err := c.Rules.CurrencyThresholds()
	if err != nil {
		return nil, err
	}
	budgets, err := c.SLA.StateBudgets()
	if err != nil {
		return nil, err
	}

	chats := make(map[string]string, len(c.Lark.Chats))
	for target, chatID := range c.Lark.Chats {
		if chatID != "" {
			chats[target] = chatID
		}
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Lark: container.LarkConfig{
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			DefaultChatID: c.Lark.DefaultChatID,
			Chats:         chats,
		},
		Rules: requirement.RuleSet{
			OfficialIDThreshold: threshold,
			CurrencyThresholds:  currencies,
			SeniorityGapDays:    c.Rules.SeniorityGapDays,
		},
		SLA: container.SLAConfig{
			Policy: sla.Policy{
				Budgets:      budgets,
				WarningRatio: c.SLA.WarningRatio,
				HighRatio:    c.SLA.HighRatio,
			},
			SweepInterval:    c.SLA.SweepInterval,
			SweepConcurrency: c.SLA.SweepConcurrency,
			SweepOnStart:     c.SLA.SweepOnStart,
		},
		Reports: container.ReportsConfig{
			Dir:        c.Reports.Dir,
			ArchiveDir: c.Reports.ArchiveDir,
			Retention:  c.Reports.Retention,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
	}, nil
}
