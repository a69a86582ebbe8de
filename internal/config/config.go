// File path: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every tunable of the cattle service. Values resolve in
// order: defaults, then the optional YAML file, then environment variables.
type Config struct {
	Addr        string `yaml:"addr"`
	StorageRoot string `yaml:"storage_root"`

	EngineCommand    string        `yaml:"engine_command"`
	EngineTimeout    time.Duration `yaml:"-"`
	EngineTimeoutStr string        `yaml:"engine_timeout"`

	// CompanionWait is the tolerance window a webhook for a fresh .csv
	// waits before listing assets, so a near-simultaneous .json upload can
	// land first. Pairing after the window may still yield a single
	// instead of a pair; that is accepted behavior.
	CompanionWait    time.Duration `yaml:"-"`
	CompanionWaitStr string        `yaml:"companion_wait"`

	DruidAPI     string        `yaml:"druid_api"`
	DruidToken   string        `yaml:"druid_token"`
	DruidTimeout time.Duration `yaml:"-"`
	DruidTimeStr string        `yaml:"druid_timeout"`

	MailgunAPI    string `yaml:"mailgun_api"`
	MailgunDomain string `yaml:"mailgun_domain"`
	MailgunKey    string `yaml:"mailgun_key"`
	MailSender    string `yaml:"mail_sender"`

	SupportContact string `yaml:"support_contact"`
}

// Merge overlays non-empty fields from the override onto the base config.
func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(override.Addr) != "" {
		result.Addr = strings.TrimSpace(override.Addr)
	}
	if strings.TrimSpace(override.StorageRoot) != "" {
		result.StorageRoot = strings.TrimSpace(override.StorageRoot)
	}
	if strings.TrimSpace(override.EngineCommand) != "" {
		result.EngineCommand = strings.TrimSpace(override.EngineCommand)
	}
	if override.EngineTimeout > 0 {
		result.EngineTimeout = override.EngineTimeout
	}
	if strings.TrimSpace(override.EngineTimeoutStr) != "" {
		result.EngineTimeoutStr = strings.TrimSpace(override.EngineTimeoutStr)
	}
	if override.CompanionWait > 0 {
		result.CompanionWait = override.CompanionWait
	}
	if strings.TrimSpace(override.CompanionWaitStr) != "" {
		result.CompanionWaitStr = strings.TrimSpace(override.CompanionWaitStr)
	}
	if strings.TrimSpace(override.DruidAPI) != "" {
		result.DruidAPI = strings.TrimSpace(override.DruidAPI)
	}
	if strings.TrimSpace(override.DruidToken) != "" {
		result.DruidToken = override.DruidToken
	}
	if override.DruidTimeout > 0 {
		result.DruidTimeout = override.DruidTimeout
	}
	if strings.TrimSpace(override.DruidTimeStr) != "" {
		result.DruidTimeStr = strings.TrimSpace(override.DruidTimeStr)
	}
	if strings.TrimSpace(override.MailgunAPI) != "" {
		result.MailgunAPI = strings.TrimSpace(override.MailgunAPI)
	}
	if strings.TrimSpace(override.MailgunDomain) != "" {
		result.MailgunDomain = strings.TrimSpace(override.MailgunDomain)
	}
	if strings.TrimSpace(override.MailgunKey) != "" {
		result.MailgunKey = override.MailgunKey
	}
	if strings.TrimSpace(override.MailSender) != "" {
		result.MailSender = strings.TrimSpace(override.MailSender)
	}
	if strings.TrimSpace(override.SupportContact) != "" {
		result.SupportContact = strings.TrimSpace(override.SupportContact)
	}
	return result
}

// Load resolves the effective configuration. The path argument may be empty,
// in which case CATTLE_CONFIG_FILE is consulted before falling back to
// defaults plus environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv("CATTLE_CONFIG_FILE"))
	}
	if path != "" {
		fileCfg, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	cfg = cfg.Merge(loadEnv())
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = ":8088"
	}
	if strings.TrimSpace(c.StorageRoot) == "" {
		c.StorageRoot = filepath.Join(os.TempDir(), "cattle_storage")
	}
	if strings.TrimSpace(c.EngineCommand) == "" {
		c.EngineCommand = "cow_tool"
	}
	c.EngineTimeout = resolveDuration(c.EngineTimeout, c.EngineTimeoutStr, 5*time.Minute)
	c.CompanionWait = resolveDuration(c.CompanionWait, c.CompanionWaitStr, 10*time.Second)
	c.DruidTimeout = resolveDuration(c.DruidTimeout, c.DruidTimeStr, 30*time.Second)
	if strings.TrimSpace(c.MailgunAPI) == "" {
		c.MailgunAPI = "https://api.mailgun.net/v3"
	}
	if strings.TrimSpace(c.SupportContact) == "" {
		c.SupportContact = "cattle@clariah.nl"
	}
}

func resolveDuration(current time.Duration, raw string, fallback time.Duration) time.Duration {
	if current > 0 {
		return current
	}
	if raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func loadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func loadEnv() Config {
	cfg := Config{}
	if v := strings.TrimSpace(os.Getenv("CATTLE_ADDR")); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("CATTLE_STORAGE_ROOT")); v != "" {
		cfg.StorageRoot = v
	}
	if v := strings.TrimSpace(os.Getenv("CATTLE_ENGINE")); v != "" {
		cfg.EngineCommand = v
	}
	if v := strings.TrimSpace(os.Getenv("CATTLE_ENGINE_TIMEOUT")); v != "" {
		cfg.EngineTimeoutStr = v
	}
	if v := strings.TrimSpace(os.Getenv("CATTLE_COMPANION_WAIT")); v != "" {
		cfg.CompanionWaitStr = v
	}
	if v := strings.TrimSpace(os.Getenv("DRUID_API")); v != "" {
		cfg.DruidAPI = v
	}
	if v := strings.TrimSpace(os.Getenv("DRUID_TOKEN")); v != "" {
		cfg.DruidToken = v
	}
	if v := strings.TrimSpace(os.Getenv("DRUID_TIMEOUT")); v != "" {
		cfg.DruidTimeStr = v
	}
	if v := strings.TrimSpace(os.Getenv("MAILGUN_API")); v != "" {
		cfg.MailgunAPI = v
	}
	if v := strings.TrimSpace(os.Getenv("MAILGUN_DOMAIN")); v != "" {
		cfg.MailgunDomain = v
	}
	if v := strings.TrimSpace(os.Getenv("MAILGUN_API_KEY")); v != "" {
		cfg.MailgunKey = v
	}
	if v := strings.TrimSpace(os.Getenv("MAIL_SENDER")); v != "" {
		cfg.MailSender = v
	}
	if v := strings.TrimSpace(os.Getenv("CATTLE_SUPPORT_CONTACT")); v != "" {
		cfg.SupportContact = v
	}
	return cfg
}
