package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// StackConfig represents the top-level stack.yml configuration.
// It is the single explicit home for everything the stack's tooling needs:
// which Claude instances exist, where the shared board lives, and the
// credentials for each optional integration.
type StackConfig struct {
	Version   string              `yaml:"version"`
	Project   string              `yaml:"project"`
	Redis     RedisConfig         `yaml:"redis"`
	Instances map[string]Instance `yaml:"instances"`
	Sheets    *SheetsConfig       `yaml:"sheets,omitempty"`
	Discord   *DiscordConfig      `yaml:"discord,omitempty"`
	MQTT      *MQTTConfig         `yaml:"mqtt,omitempty"`
	N8N       *N8NConfig          `yaml:"n8n,omitempty"`
	Scanners  *ScannersConfig     `yaml:"scanners,omitempty"`
}

// RedisConfig locates the shared task board.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// Instance describes one Claude instance participating in the project.
type Instance struct {
	Role    string `yaml:"role"`              // Required: what this instance is for (dev, ops, scanner, relay)
	Persona string `yaml:"persona,omitempty"` // Built-in persona ID used for its briefing
}

// SheetsConfig points at the Google Sheet used as the human-visible task board.
type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	Tab             string `yaml:"tab,omitempty"` // Defaults to "CLAUDE_TASKS"
	CredentialsFile string `yaml:"credentials_file"`
}

// DiscordConfig holds the webhook used for notifications.
type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Username   string `yaml:"username,omitempty"` // Defaults to "brewery-coordinator"
}

// MQTTConfig describes the broker and the UNS topic root.
type MQTTConfig struct {
	BrokerURL      string `yaml:"broker_url"`
	ClientIDPrefix string `yaml:"client_id_prefix,omitempty"` // Defaults to project name
	Username       string `yaml:"username,omitempty"`
	Password       string `yaml:"password,omitempty"`
	QoS            *byte  `yaml:"qos,omitempty"` // 0, 1 or 2; defaults to 1 when omitted
	Site           string `yaml:"site"`
	Area           string `yaml:"area,omitempty"`
	Line           string `yaml:"line,omitempty"`
}

// N8NConfig locates the workflow automation API.
type N8NConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// ScannersConfig carries defaults for the discovery utilities.
type ScannersConfig struct {
	TimeoutMs     int `yaml:"timeout_ms,omitempty"`      // Per-request timeout, default 2000
	ModbusUnitMin int `yaml:"modbus_unit_min,omitempty"` // Default 1
	ModbusUnitMax int `yaml:"modbus_unit_max,omitempty"` // Default 10
}

// instanceNamePattern enforces DNS-style instance names; they end up in Redis
// keys and MQTT topics.
var instanceNamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// Timeout returns the per-request scanner timeout as a duration.
func (s *ScannersConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// Validate performs strict validation on the configuration and applies
// defaults for omitted optional fields.
func (c *StackConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: project
	if c.Project == "" {
		return fmt.Errorf("project name is required")
	}
	if !instanceNamePattern.MatchString(c.Project) {
		return fmt.Errorf("invalid project name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", c.Project)
	}

	// Required: redis
	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}

	// Required: at least one instance
	if len(c.Instances) == 0 {
		return fmt.Errorf("no instances defined")
	}

	for name, inst := range c.Instances {
		if !instanceNamePattern.MatchString(name) {
			return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
		}
		if inst.Role == "" {
			return fmt.Errorf("instance '%s': role is required", name)
		}
	}

	if c.Sheets != nil {
		if c.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("sheets.spreadsheet_id is required when sheets is configured")
		}
		if c.Sheets.CredentialsFile == "" {
			return fmt.Errorf("sheets.credentials_file is required when sheets is configured")
		}
		if c.Sheets.Tab == "" {
			c.Sheets.Tab = "CLAUDE_TASKS"
		}
	}

	if c.Discord != nil {
		if c.Discord.WebhookURL == "" {
			return fmt.Errorf("discord.webhook_url is required when discord is configured")
		}
		if c.Discord.Username == "" {
			c.Discord.Username = "brewery-coordinator"
		}
	}

	if c.MQTT != nil {
		if c.MQTT.BrokerURL == "" {
			return fmt.Errorf("mqtt.broker_url is required when mqtt is configured")
		}
		if c.MQTT.Site == "" {
			return fmt.Errorf("mqtt.site is required when mqtt is configured")
		}
		if c.MQTT.QoS == nil {
			qos := byte(1)
			c.MQTT.QoS = &qos
		}
		if *c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", *c.MQTT.QoS)
		}
		if c.MQTT.ClientIDPrefix == "" {
			c.MQTT.ClientIDPrefix = c.Project
		}
	}

	if c.N8N != nil {
		if c.N8N.BaseURL == "" {
			return fmt.Errorf("n8n.base_url is required when n8n is configured")
		}
	}

	// Scanner defaults apply whether or not the section is present.
	if c.Scanners == nil {
		c.Scanners = &ScannersConfig{}
	}
	if c.Scanners.TimeoutMs == 0 {
		c.Scanners.TimeoutMs = 2000
	}
	if c.Scanners.TimeoutMs < 0 {
		return fmt.Errorf("scanners.timeout_ms must be positive, got %d", c.Scanners.TimeoutMs)
	}
	if c.Scanners.ModbusUnitMin == 0 {
		c.Scanners.ModbusUnitMin = 1
	}
	if c.Scanners.ModbusUnitMax == 0 {
		c.Scanners.ModbusUnitMax = 10
	}
	if c.Scanners.ModbusUnitMin < 1 || c.Scanners.ModbusUnitMax > 247 {
		return fmt.Errorf("scanners modbus unit range must stay within 1-247")
	}
	if c.Scanners.ModbusUnitMin > c.Scanners.ModbusUnitMax {
		return fmt.Errorf("scanners.modbus_unit_min (%d) must not exceed scanners.modbus_unit_max (%d)",
			c.Scanners.ModbusUnitMin, c.Scanners.ModbusUnitMax)
	}

	return nil
}

// Load reads and validates stack.yml from the specified path.
func Load(path string) (*StackConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config StackConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
