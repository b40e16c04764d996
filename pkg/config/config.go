// Package config loads settings for the coordinator and burner
// binaries from command-line flags, optionally layered over a YAML
// config file. Flags always take precedence over the file.
package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Coordinator holds the burnerd binary's settings.
type Coordinator struct {
	Port        int    `mapstructure:"port"`
	Verbosity   int    `mapstructure:"verbosity"`
	LogFile     string `mapstructure:"logfile"`
	Curses      bool   `mapstructure:"curses"`
	StatePath   string `mapstructure:"state_path"`
	PoolSize    uint   `mapstructure:"pool_size"`
	RetryLimit  int    `mapstructure:"retry_limit"`
	RefreshCron string `mapstructure:"refresh_cron"`
}

// coordinatorFlags maps viper/mapstructure keys to the coordinator
// binary's flag names.
var coordinatorFlags = map[string]string{
	"port":         "port",
	"verbosity":    "verbose",
	"logfile":      "logfile",
	"curses":       "curses",
	"state_path":   "state-path",
	"pool_size":    "pool-size",
	"retry_limit":  "retry-limit",
	"refresh_cron": "refresh-cron",
}

// LoadCoordinator reads coordinator settings from flags, merging in
// configPath (if non-empty) as defaults underneath them.
func LoadCoordinator(flags *pflag.FlagSet, configPath string) (Coordinator, error) {
	v := viper.New()
	v.SetDefault("port", 1234)
	v.SetDefault("state_path", "custom_burner_server.db")
	v.SetDefault("pool_size", 16)
	v.SetDefault("retry_limit", 5)
	v.SetDefault("refresh_cron", "@every 30s")

	if err := loadFile(v, configPath); err != nil {
		return Coordinator{}, err
	}
	if err := bindFlags(v, flags, coordinatorFlags); err != nil {
		return Coordinator{}, err
	}

	var cfg Coordinator
	if err := v.Unmarshal(&cfg); err != nil {
		return Coordinator{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// Worker holds the burner-worker binary's settings.
type Worker struct {
	Name            string `mapstructure:"name"`
	ListenAddr      string `mapstructure:"listen_addr"`
	ListenPort      int    `mapstructure:"listen_port"`
	CoordinatorAddr string `mapstructure:"coordinator_addr"`
	ImageDir        string `mapstructure:"image_dir"`
	SingleImage     string `mapstructure:"single_image"`
	Verbosity       int    `mapstructure:"verbosity"`
	BurnCommand     string `mapstructure:"burn_command"`
}

// workerFlags maps viper/mapstructure keys to the worker binary's
// flag names.
var workerFlags = map[string]string{
	"name":             "name",
	"listen_addr":      "listen-addr",
	"listen_port":      "listen-port",
	"coordinator_addr": "coordinator",
	"image_dir":        "image-dir",
	"single_image":     "single-image",
	"verbosity":        "verbose",
	"burn_command":     "burn-command",
}

// LoadWorker reads worker settings from flags, merging in configPath
// (if non-empty) as defaults underneath them.
func LoadWorker(flags *pflag.FlagSet, configPath string) (Worker, error) {
	v := viper.New()
	v.SetDefault("listen_addr", ":1235")
	v.SetDefault("burn_command", "/usr/local/bin/do-burn")

	if err := loadFile(v, configPath); err != nil {
		return Worker{}, err
	}
	if err := bindFlags(v, flags, workerFlags); err != nil {
		return Worker{}, err
	}

	var cfg Worker
	if err := v.Unmarshal(&cfg); err != nil {
		return Worker{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func loadFile(v *viper.Viper, configPath string) error {
	if configPath == "" {
		return nil
	}
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: reading %s: %w", configPath, err)
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keyToFlag map[string]string) error {
	for key, flagName := range keyToFlag {
		flag := flags.Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("config: binding flag %s: %w", flagName, err)
		}
	}
	return nil
}
