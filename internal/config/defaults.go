package config

import (
	"github.com/flemzord/toolguard/internal/cron"
	"github.com/flemzord/toolguard/internal/moderation"
	"github.com/flemzord/toolguard/internal/telemetry"
)

// CurrentVersion is the only supported config format version.
const CurrentVersion = "1"

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero values. Admin defaults are applied by the admin
// server itself.
func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = CurrentVersion
	}

	m := &c.Moderation
	if m.Threshold == nil {
		m.Threshold = intPtr(moderation.DefaultThreshold)
	}
	if m.MinTextLength == nil {
		m.MinTextLength = intPtr(moderation.DefaultMinTextLength)
	}
	if m.Policy == "" {
		m.Policy = string(moderation.PolicyOfferBypass)
	}

	if c.Classifier.Timeout == 0 {
		c.Classifier.Timeout = moderation.DefaultTimeout
	}

	if c.Ledger.Retention == 0 {
		c.Ledger.Retention = cron.DefaultRetention
	}
	if c.Ledger.Schedule == "" {
		c.Ledger.Schedule = cron.DefaultRetentionSchedule
	}

	if c.Telemetry.Tracing.ServiceName == "" {
		c.Telemetry.Tracing.ServiceName = telemetry.DefaultServiceName
	}
}

func intPtr(v int) *int { return &v }
