package config

import (
	"fmt"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
)

// Config holds runtime settings shared by the capture and analyze commands.
// CLI flags take precedence over the config file, which takes precedence
// over the built-in defaults.
type Config struct {
	LogLevel      string `koanf:"log_level"`      // Log level: "debug", "info", "warn", "error", "fatal"
	OutputDir     string `koanf:"output_dir"`     // Capture output directory override ("" = profile default)
	UpstreamProxy string `koanf:"upstream_proxy"` // Upstream proxy URL override ("" = profile default)
	SettleSeconds int    `koanf:"settle_seconds"` // Seconds to wait before verifying proxy listeners
	MetricsBind   string `koanf:"metrics_bind"`   // Prometheus bind address ("" = metrics disabled)
}

var defaultConfig = Config{
	LogLevel:      "info",
	SettleSeconds: 2,
}

// Load reads the optional YAML config file over the built-in defaults.
// An empty path skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
