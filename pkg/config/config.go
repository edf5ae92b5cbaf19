package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the complete runtime configuration, built once at startup and
// passed by reference to the components that need it.
type Config struct {
	DataDir       string             `mapstructure:"data_dir"`
	NodeID        string             `mapstructure:"node_id"`
	Replicated    bool               `mapstructure:"replicated"`
	RaftBindAddr  string             `mapstructure:"raft_bind_addr"`
	MetricsAddr   string             `mapstructure:"metrics_addr"`
	PluginVersion string             `mapstructure:"plugin_version"`
	SecretKey     string             `mapstructure:"secret_key"`
	Log           LogConfig          `mapstructure:"log"`
	SSH           SSHConfig          `mapstructure:"ssh"`
	Provisioning  ProvisioningConfig `mapstructure:"provisioning"`
	Templates     TemplatesConfig    `mapstructure:"templates"`
}

// LogConfig controls the global logger
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// SSHConfig controls remote execution against cluster instances
type SSHConfig struct {
	User    string        `mapstructure:"user"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProvisioningConfig bounds the lifecycle orchestrator
type ProvisioningConfig struct {
	FanOut            int           `mapstructure:"fan_out"`
	InstallTimeout    time.Duration `mapstructure:"install_timeout"`
	DiskSetupTimeout  time.Duration `mapstructure:"disk_setup_timeout"`
	CommandTimeout    time.Duration `mapstructure:"command_timeout"`
	HeartbeatTimeout  time.Duration `mapstructure:"heartbeat_timeout"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

// TemplatesConfig drives the default-template bulk loader
type TemplatesConfig struct {
	Directory      string   `mapstructure:"directory"`
	Tenant         string   `mapstructure:"tenant"`
	PluginName     string   `mapstructure:"plugin_name"`
	PluginVersions []string `mapstructure:"plugin_versions"`
	Prune          bool     `mapstructure:"prune"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./sahara-data")
	v.SetDefault("node_id", "sahara-1")
	v.SetDefault("replicated", false)
	v.SetDefault("raft_bind_addr", "127.0.0.1:7946")
	v.SetDefault("metrics_addr", "127.0.0.1:9090")
	v.SetDefault("plugin_version", "6.0.0.mrv2")
	v.SetDefault("secret_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("ssh.user", "cloud-user")
	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.timeout", 30*time.Second)

	v.SetDefault("provisioning.fan_out", 16)
	v.SetDefault("provisioning.install_timeout", 30*time.Minute)
	v.SetDefault("provisioning.disk_setup_timeout", 600*time.Second)
	v.SetDefault("provisioning.command_timeout", 5*time.Minute)
	v.SetDefault("provisioning.heartbeat_timeout", 10*time.Minute)
	v.SetDefault("provisioning.reconcile_interval", 10*time.Second)

	v.SetDefault("templates.directory", "./default-templates")
	v.SetDefault("templates.tenant", "")
	v.SetDefault("templates.plugin_name", "mapr")
	v.SetDefault("templates.plugin_versions", []string{})
	v.SetDefault("templates.prune", false)
}

// Load builds a Config from defaults, an optional YAML file, SAHARA_*
// environment variables and any bound command-line flags, in increasing
// order of precedence.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("sahara")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flag name -> config key
var flagKeys = map[string]string{
	"data-dir":        "data_dir",
	"node-id":         "node_id",
	"replicated":      "replicated",
	"raft-bind-addr":  "raft_bind_addr",
	"metrics-addr":    "metrics_addr",
	"plugin-version":  "plugin_version",
	"log-level":       "log.level",
	"log-json":        "log.json",
	"ssh-user":        "ssh.user",
	"fan-out":         "provisioning.fan_out",
	"templates-dir":   "templates.directory",
	"tenant":          "templates.tenant",
	"plugin-name":     "templates.plugin_name",
	"plugin-versions": "templates.plugin_versions",
	"prune":           "templates.prune",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Validate checks the invariants the rest of the system relies on
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must be set")
	}
	if c.Provisioning.FanOut < 1 {
		return fmt.Errorf("provisioning.fan_out must be at least 1, got %d", c.Provisioning.FanOut)
	}
	if c.SSH.Port <= 0 || c.SSH.Port > 65535 {
		return fmt.Errorf("ssh.port out of range: %d", c.SSH.Port)
	}
	if c.Replicated && c.RaftBindAddr == "" {
		return fmt.Errorf("raft_bind_addr is required when replicated")
	}
	return nil
}
