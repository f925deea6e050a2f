// Package profile loads the server configuration from flags, a config
// file, and REMINDD_* environment variables, in that order of precedence.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Profile is the configuration to start the reminder server.
type Profile struct {
	// Mode can be "prod" or "dev".
	Mode string `mapstructure:"mode"`
	// Addr is the binding address for the HTTP API.
	Addr string `mapstructure:"addr"`
	// Port is the binding port for the HTTP API.
	Port int `mapstructure:"port"`
	// Data is the data directory.
	Data string `mapstructure:"data"`
	// Driver is the storage driver ("sqlite" or "memory").
	Driver string `mapstructure:"driver"`
	// DSN points to where remindd stores its own data.
	DSN string `mapstructure:"dsn"`
	// RosterPath is the YAML file listing valid assignees/assigners.
	RosterPath string `mapstructure:"roster"`
	// Version is the current server version.
	Version string

	// Parser configuration (external LLM-backed structured parser).
	ParserAPIKey  string        `mapstructure:"parser_api_key"`
	ParserBaseURL string        `mapstructure:"parser_base_url"`
	ParserModel   string        `mapstructure:"parser_model"`
	ParserTimeout time.Duration `mapstructure:"parser_timeout"`

	// Webhook delivery. When WebhookURL is empty, notifications go to the
	// console deliverer.
	WebhookURL    string `mapstructure:"webhook_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`

	// Pipeline tuning.
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	ClarificationRounds int           `mapstructure:"clarification_rounds"`
	EscalationWindow    time.Duration `mapstructure:"escalation_window"`
	DeliveryRetries     int           `mapstructure:"delivery_retries"`
	OperatorRecipient   string        `mapstructure:"operator_recipient"`
}

// IsDev returns true unless running in prod mode.
func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Load reads configuration from the optional config file and environment.
func Load(configPath string) (*Profile, error) {
	v := viper.New()

	v.SetDefault("mode", "dev")
	v.SetDefault("addr", "")
	v.SetDefault("port", 8092)
	v.SetDefault("data", "")
	v.SetDefault("driver", "sqlite")
	v.SetDefault("roster", "roster.yaml")
	v.SetDefault("parser_base_url", "https://api.openai.com/v1")
	v.SetDefault("parser_model", "gpt-4o-mini")
	v.SetDefault("parser_timeout", 30*time.Second)
	v.SetDefault("confidence_threshold", 0.6)
	v.SetDefault("clarification_rounds", 3)
	v.SetDefault("escalation_window", 30*time.Minute)
	v.SetDefault("delivery_retries", 3)
	v.SetDefault("operator_recipient", "")

	v.SetEnvPrefix("remindd")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "unable to read config file %s", configPath)
		}
	}

	p := &Profile{}
	if err := v.Unmarshal(p); err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal configuration")
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if a relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and fills derived defaults.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	if p.Driver != "sqlite" && p.Driver != "memory" {
		return errors.Errorf("unsupported storage driver %q", p.Driver)
	}
	if p.Driver == "sqlite" && p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("remindd_%s.db", p.Mode))
	}

	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return errors.Errorf("confidence threshold %f out of range [0,1]", p.ConfidenceThreshold)
	}
	if p.ClarificationRounds <= 0 {
		p.ClarificationRounds = 3
	}
	if p.DeliveryRetries <= 0 {
		p.DeliveryRetries = 3
	}

	return nil
}
