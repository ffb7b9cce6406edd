package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// CLIConfig holds configuration loaded from flags, env, and
// ~/.macrorun/macrorun.yaml, in that precedence order.
type CLIConfig struct {
	Debug      bool
	TagTimeout time.Duration
	MaxLoops   int
	RecordOut  string
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".macrorun")
}

// loadCLIConfig binds viper to env/YAML and returns the merged config,
// creating a default config file on first run. Flag values are applied
// on top by the calling command.
func loadCLIConfig(v *viper.Viper) CLIConfig {
	v.SetEnvPrefix("MACRORUN")
	v.AutomaticEnv()

	v.SetDefault("debug", false)
	v.SetDefault("tag_timeout_seconds", 6)
	v.SetDefault("max_loops", 1)
	v.SetDefault("record_out", "recorded_macro.iim")

	dir := configDir()
	if dir != "" {
		v.AddConfigPath(dir)
		v.SetConfigName("macrorun")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				writeDefaultConfig(dir)
			}
		}
	}

	return CLIConfig{
		Debug:      v.GetBool("debug"),
		TagTimeout: time.Duration(v.GetFloat64("tag_timeout_seconds") * float64(time.Second)),
		MaxLoops:   v.GetInt("max_loops"),
		RecordOut:  v.GetString("record_out"),
	}
}

func writeDefaultConfig(dir string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	contents := []byte("debug: false\ntag_timeout_seconds: 6\nmax_loops: 1\nrecord_out: recorded_macro.iim\n")
	_ = os.WriteFile(filepath.Join(dir, "macrorun.yaml"), contents, 0o644)
}
