package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig returns a runnable central-node configuration.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/root"
	}

	return &Config{
		Role: RoleCentral,
		API: APIConfig{
			Listen:             ":8000",
			RateLimitPerMinute: 120,
		},
		Graph: GraphConfig{
			Scheme:   "bolt",
			Host:     "neo4j",
			Port:     7687,
			Username: "neo4j",
			Password: "password",
		},
		Scan: ScanConfig{
			Binary:         "bbot",
			ScanRoots:      []string{filepath.Join(home, ".bbot", "scans")},
			BBotConfigPath: filepath.Join(home, ".config", "bbot", "bbot.yml"),
			Defaults: ScanDefaults{
				Presets:            []string{"subdomain-enum"},
				MaxWorkers:         2,
				SpiderDepth:        2,
				SpiderDistance:     1,
				SpiderLinksPerPage: 10,
			},
			CycleSleep:  time.Hour,
			TargetSleep: 5 * time.Minute,
			DetectDelay: time.Second,
			ReadDelay:   15 * time.Second,
			DirMaxAge:   2 * time.Hour,
		},
		Cleanup: CleanupConfig{
			Enabled:                  true,
			EventRetentionDays:       30,
			OfflineHostRetentionDays: 30,
			OrphanSweepEnabled:       true,
		},
		Upload: UploadConfig{
			Compress:  true,
			VerifyTLS: true,
			Timeout:   2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		InitConfigPath: "/app/init_config.json",
		WorkerTokens:   map[string]string{},
	}
}
