package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "./sahara-data", cfg.DataDir)
	assert.Equal(t, 16, cfg.Provisioning.FanOut)
	assert.Equal(t, 600*time.Second, cfg.Provisioning.DiskSetupTimeout)
	assert.Equal(t, 22, cfg.SSH.Port)
	assert.Equal(t, "mapr", cfg.Templates.PluginName)
	assert.False(t, cfg.Replicated)
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sahara.yaml")
	content := `
data_dir: /var/lib/sahara
plugin_version: 5.2.0.mrv2
log:
  level: debug
provisioning:
  fan_out: 4
  install_timeout: 10m
templates:
  plugin_versions: ["5.2.0.mrv2"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("SAHARA_SSH_USER", "ubuntu")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("fan-out", 1, "")
	require.NoError(t, flags.Parse([]string{"--fan-out=8"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/sahara", cfg.DataDir)
	assert.Equal(t, "5.2.0.mrv2", cfg.PluginVersion)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10*time.Minute, cfg.Provisioning.InstallTimeout)
	assert.Equal(t, "ubuntu", cfg.SSH.User)
	assert.Equal(t, 8, cfg.Provisioning.FanOut)
	assert.Equal(t, []string{"5.2.0.mrv2"}, cfg.Templates.PluginVersions)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "no data dir", mutate: func(c *Config) { c.DataDir = "" }, wantErr: true},
		{name: "zero fan out", mutate: func(c *Config) { c.Provisioning.FanOut = 0 }, wantErr: true},
		{name: "bad ssh port", mutate: func(c *Config) { c.SSH.Port = 70000 }, wantErr: true},
		{
			name: "replicated without bind addr",
			mutate: func(c *Config) {
				c.Replicated = true
				c.RaftBindAddr = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("", nil)
			require.NoError(t, err)
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}
