package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/types"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads a YAML configuration file over the defaults, interpolates
// ${VAR} environment references, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "read config file", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "unmarshal config", err)
	}

	interpolate(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithDefaults behaves like Load but falls back to defaults when
// the file does not exist.
func LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

// interpolate replaces ${VAR} references in the string fields operators
// typically feed from the environment (secrets, endpoints).
func interpolate(cfg *Config) {
	for _, field := range []*string{
		&cfg.API.Token,
		&cfg.Graph.Host,
		&cfg.Graph.Username,
		&cfg.Graph.Password,
		&cfg.Upload.CentralURL,
		&cfg.Upload.WorkerID,
		&cfg.Upload.WorkerToken,
		&cfg.Telegram.BotToken,
		&cfg.Telegram.ChatID,
	} {
		*field = expandEnv(*field)
	}
}

func expandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}
