package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/c360/quantdata/errors"
)

// Load reads the configuration from path, layering environment variable
// overrides (QUANTDATA_ prefix, dots become underscores) on top and package
// defaults underneath. An empty path searches the working directory and
// /etc/quantdata for quantdata.yaml; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("quantdata")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/quantdata")
	}

	v.SetEnvPrefix("QUANTDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindKeys(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.WrapFatal(err, "Config", "Load", "read config file")
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindKeys registers the override surface so AutomaticEnv sees keys that are
// absent from the config file.
func bindKeys(v *viper.Viper) {
	for _, key := range []string{
		"log.level",
		"log.format",
		"nats.url",
		"nats.name",
		"nats.subject_prefix",
		"engine.strategy",
		"engine.quality_threshold",
		"engine.historical_timeout",
		"engine.realtime_timeout",
		"engine.provider_concurrency",
		"engine.provider_rate",
		"engine.cache.dir",
		"health.interval",
		"health.probe_timeout",
	} {
		// BindEnv only fails on an empty key.
		_ = v.BindEnv(key)
	}
}
