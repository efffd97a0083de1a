package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *StackConfig {
	return &StackConfig{
		Version: "1.0",
		Project: "brewery",
		Redis:   RedisConfig{URL: "redis://localhost:6379/0"},
		Instances: map[string]Instance{
			"mac-claude":    {Role: "dev"},
			"server-claude": {Role: "ops", Persona: "server-claude"},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*StackConfig)
		wantErr string
	}{
		{
			name:   "minimal valid config",
			mutate: func(c *StackConfig) {},
		},
		{
			name:    "wrong version",
			mutate:  func(c *StackConfig) { c.Version = "2.0" },
			wantErr: "unsupported version",
		},
		{
			name:    "missing project",
			mutate:  func(c *StackConfig) { c.Project = "" },
			wantErr: "project name is required",
		},
		{
			name:    "uppercase project rejected",
			mutate:  func(c *StackConfig) { c.Project = "Brewery" },
			wantErr: "invalid project name",
		},
		{
			name:    "missing redis url",
			mutate:  func(c *StackConfig) { c.Redis.URL = "" },
			wantErr: "redis.url is required",
		},
		{
			name:    "no instances",
			mutate:  func(c *StackConfig) { c.Instances = nil },
			wantErr: "no instances defined",
		},
		{
			name: "instance missing role",
			mutate: func(c *StackConfig) {
				c.Instances["mac-claude"] = Instance{}
			},
			wantErr: "role is required",
		},
		{
			name: "bad instance name",
			mutate: func(c *StackConfig) {
				c.Instances["Mac_Claude"] = Instance{Role: "dev"}
			},
			wantErr: "invalid instance name",
		},
		{
			name: "sheets without spreadsheet id",
			mutate: func(c *StackConfig) {
				c.Sheets = &SheetsConfig{CredentialsFile: "credentials.json"}
			},
			wantErr: "sheets.spreadsheet_id is required",
		},
		{
			name: "sheets without credentials",
			mutate: func(c *StackConfig) {
				c.Sheets = &SheetsConfig{SpreadsheetID: "abc123"}
			},
			wantErr: "sheets.credentials_file is required",
		},
		{
			name: "discord without webhook",
			mutate: func(c *StackConfig) {
				c.Discord = &DiscordConfig{}
			},
			wantErr: "discord.webhook_url is required",
		},
		{
			name: "mqtt without broker",
			mutate: func(c *StackConfig) {
				c.MQTT = &MQTTConfig{Site: "brewery"}
			},
			wantErr: "mqtt.broker_url is required",
		},
		{
			name: "mqtt without site",
			mutate: func(c *StackConfig) {
				c.MQTT = &MQTTConfig{BrokerURL: "tcp://localhost:1883"}
			},
			wantErr: "mqtt.site is required",
		},
		{
			name: "mqtt qos out of range",
			mutate: func(c *StackConfig) {
				qos := byte(3)
				c.MQTT = &MQTTConfig{BrokerURL: "tcp://localhost:1883", Site: "brewery", QoS: &qos}
			},
			wantErr: "mqtt.qos must be 0, 1 or 2",
		},
		{
			name: "n8n without base url",
			mutate: func(c *StackConfig) {
				c.N8N = &N8NConfig{APIKey: "key"}
			},
			wantErr: "n8n.base_url is required",
		},
		{
			name: "inverted modbus unit range",
			mutate: func(c *StackConfig) {
				c.Scanners = &ScannersConfig{ModbusUnitMin: 20, ModbusUnitMax: 5}
			},
			wantErr: "must not exceed",
		},
		{
			name: "modbus units outside protocol range",
			mutate: func(c *StackConfig) {
				c.Scanners = &ScannersConfig{ModbusUnitMin: 1, ModbusUnitMax: 300}
			},
			wantErr: "1-247",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Sheets = &SheetsConfig{SpreadsheetID: "abc", CredentialsFile: "credentials.json"}
	cfg.Discord = &DiscordConfig{WebhookURL: "https://discord.com/api/webhooks/1/x"}
	cfg.MQTT = &MQTTConfig{BrokerURL: "tcp://localhost:1883", Site: "brewery"}

	require.NoError(t, cfg.Validate())

	assert.Equal(t, "CLAUDE_TASKS", cfg.Sheets.Tab)
	assert.Equal(t, "brewery-coordinator", cfg.Discord.Username)
	require.NotNil(t, cfg.MQTT.QoS)
	assert.Equal(t, byte(1), *cfg.MQTT.QoS)
	assert.Equal(t, "brewery", cfg.MQTT.ClientIDPrefix)
	require.NotNil(t, cfg.Scanners)
	assert.Equal(t, 2*time.Second, cfg.Scanners.Timeout())
	assert.Equal(t, 1, cfg.Scanners.ModbusUnitMin)
	assert.Equal(t, 10, cfg.Scanners.ModbusUnitMax)
}

func TestValidateExplicitQoSZero(t *testing.T) {
	cfg := validConfig()
	qos := byte(0)
	cfg.MQTT = &MQTTConfig{BrokerURL: "tcp://localhost:1883", Site: "brewery", QoS: &qos}

	require.NoError(t, cfg.Validate())

	// qos: 0 is a real choice, distinct from leaving the field out.
	require.NotNil(t, cfg.MQTT.QoS)
	assert.Equal(t, byte(0), *cfg.MQTT.QoS)
}

func TestLoad(t *testing.T) {
	t.Run("loads valid file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "stack.yml")
		content := `version: "1.0"
project: brewery
redis:
  url: redis://localhost:6379/0
instances:
  mac-claude:
    role: dev
    persona: mac-claude
  server-claude:
    role: ops
mqtt:
  broker_url: tcp://localhost:1883
  site: brewery
  area: cellar
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "brewery", cfg.Project)
		assert.Len(t, cfg.Instances, 2)
		assert.Equal(t, "cellar", cfg.MQTT.Area)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "stack.yml")
		require.NoError(t, os.WriteFile(path, []byte("version: [broken"), 0644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse YAML")
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "stack.yml")
		require.NoError(t, os.WriteFile(path, []byte("version: \"1.0\"\nproject: brewery\n"), 0644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
