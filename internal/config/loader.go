package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads a RunConfig from the YAML file at path, applying GRC_-prefixed
// environment overrides (GRC_ASSESSMENT_ID, GRC_DESTINATION, ...). An empty
// path returns a config built from environment variables and defaults only,
// which is the shape a scheduled (Lambda-style) invocation uses.
func Load(path string) (*RunConfig, error) {
	v := viper.New()

	v.SetDefault("region", "us-east-1")
	v.SetDefault("window_days", 7)
	v.SetDefault("fetch_timeout_seconds", 60)
	v.SetDefault("severity_labels", []string{"HIGH", "CRITICAL"})
	v.SetDefault("log_level", "info")

	// Zero-value defaults so AutomaticEnv sees these keys during Unmarshal.
	v.SetDefault("profile", "")
	v.SetDefault("assessment_id", "")
	v.SetDefault("mapping_path", "")
	v.SetDefault("destination", "")
	v.SetDefault("sns_topic_arn", "")
	v.SetDefault("csv_detail", false)

	v.SetEnvPrefix("GRC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg RunConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
