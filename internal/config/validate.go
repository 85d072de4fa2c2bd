package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/flemzord/toolguard/internal/cron"
	"github.com/flemzord/toolguard/internal/moderation"
)

// Validate checks the structural validity of a Config and reports every
// problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: %q)", cfg.Version, CurrentVersion))
	}

	errs = append(errs, validateModeration(cfg.Moderation)...)
	errs = append(errs, validateClassifier(cfg.Classifier)...)
	errs = append(errs, validateProvider(cfg.Provider)...)
	errs = append(errs, validateLedger(cfg.Ledger)...)

	if cfg.Admin.Listen != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.Admin.Listen); err != nil {
			errs = append(errs, fmt.Errorf("config: admin.listen: invalid address %q", cfg.Admin.Listen))
		}
	}

	if cfg.Tools.ReadMaxSize < 0 {
		errs = append(errs, errors.New("config: tools.read_max_size must not be negative"))
	}
	if wf := cfg.Tools.WebFetch; wf.MaxBodySize < 0 || wf.MaxLines < 0 || wf.Timeout < 0 {
		errs = append(errs, errors.New("config: tools.web_fetch limits must not be negative"))
	}

	return errors.Join(errs...)
}

func validateModeration(m ModerationConfig) []error {
	var errs []error
	if t := m.Threshold; t != nil && (*t < 1 || *t > 100) {
		errs = append(errs, fmt.Errorf("config: moderation.threshold %d out of range [1,100]", *t))
	}
	if n := m.MinTextLength; n != nil && *n < 1 {
		errs = append(errs, fmt.Errorf("config: moderation.min_text_length %d must be at least 1", *n))
	}
	if !moderation.Policy(m.Policy).Valid() {
		errs = append(errs, fmt.Errorf("config: moderation.policy %q is not one of %q, %q",
			m.Policy, moderation.PolicyOfferBypass, moderation.PolicyStrict))
	}
	return errs
}

func validateClassifier(c ClassifierConfig) []error {
	var errs []error
	if c.Timeout < 0 {
		errs = append(errs, errors.New("config: classifier.timeout must not be negative"))
	}
	if c.APIKey != "" && c.APIKeyEnv != "" {
		errs = append(errs, errors.New("config: classifier.api_key and classifier.api_key_env are mutually exclusive"))
	}
	if err := validateURL("classifier.base_url", c.BaseURL); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func validateProvider(p *ProviderConfig) []error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.BaseURL == "" {
		errs = append(errs, errors.New("config: provider.base_url is required"))
	} else if err := validateURL("provider.base_url", p.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if p.Model == "" {
		errs = append(errs, errors.New("config: provider.model is required"))
	}
	if p.MaxTokens < 0 {
		errs = append(errs, errors.New("config: provider.max_tokens must not be negative"))
	}
	return errs
}

func validateLedger(l LedgerConfig) []error {
	if l.Path == "" {
		return nil
	}
	var errs []error
	if l.Retention < 0 {
		errs = append(errs, errors.New("config: ledger.retention must not be negative"))
	}
	if err := cron.ParseSchedule(l.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("config: ledger.schedule: %w", err))
	}
	return errs
}

// validateURL accepts an empty value or an absolute http(s) URL.
func validateURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: %s: %q is not an absolute http(s) URL", field, raw)
	}
	return nil
}
