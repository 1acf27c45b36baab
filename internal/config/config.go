package config

import (
	"strconv"
	"time"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/types"
)

// Deployment roles. A central node owns the graph store and the ingest
// endpoint; a worker runs scans and pushes artifacts to a central node.
const (
	RoleCentral = "central"
	RoleWorker  = "worker"
)

// Config is the root configuration for the OSINT monitoring service.
type Config struct {
	Role     string         `mapstructure:"role" yaml:"role"`
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Graph    GraphConfig    `mapstructure:"graph" yaml:"graph"`
	Scan     ScanConfig     `mapstructure:"scan" yaml:"scan"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup" yaml:"cleanup"`
	Upload   UploadConfig   `mapstructure:"upload" yaml:"upload"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`

	// InitConfigPath points at the operator-editable init_config.json
	// carrying targets, scan defaults and worker tokens.
	InitConfigPath string `mapstructure:"init_config_path" yaml:"init_config_path"`

	// Applied from init config, not from the YAML file.
	Targets      []string          `mapstructure:"-" yaml:"-"`
	WorkerTokens map[string]string `mapstructure:"-" yaml:"-"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Listen             string `mapstructure:"listen" yaml:"listen"`
	Token              string `mapstructure:"token" yaml:"token"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	SSLCertFile        string `mapstructure:"ssl_cert_file" yaml:"ssl_cert_file"`
	SSLKeyFile         string `mapstructure:"ssl_key_file" yaml:"ssl_key_file"`
}

// GraphConfig configures the Neo4j connection.
type GraphConfig struct {
	Scheme   string `mapstructure:"scheme" yaml:"scheme"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
}

// URI assembles the bolt URI from its parts.
func (g GraphConfig) URI() string {
	return g.Scheme + "://" + g.Host + ":" + strconv.Itoa(g.Port)
}

// ScanConfig configures the scan engine and the continuous scheduler.
type ScanConfig struct {
	Binary    string   `mapstructure:"binary" yaml:"binary"`
	ScanRoots []string `mapstructure:"scan_roots" yaml:"scan_roots"`

	// BBotConfigPath is where init-config module overrides are written.
	BBotConfigPath string `mapstructure:"bbot_config_path" yaml:"bbot_config_path"`

	Defaults ScanDefaults `mapstructure:"defaults" yaml:"defaults"`

	CycleSleep  time.Duration `mapstructure:"cycle_sleep" yaml:"cycle_sleep"`
	TargetSleep time.Duration `mapstructure:"target_sleep" yaml:"target_sleep"`
	DetectDelay time.Duration `mapstructure:"detect_delay" yaml:"detect_delay"`
	ReadDelay   time.Duration `mapstructure:"read_delay" yaml:"read_delay"`
	DirMaxAge   time.Duration `mapstructure:"dir_max_age" yaml:"dir_max_age"`
}

// ScanDefaults mirror the engine request knobs.
type ScanDefaults struct {
	Presets            []string `mapstructure:"presets" yaml:"presets"`
	Flags              []string `mapstructure:"flags" yaml:"flags"`
	MaxWorkers         int      `mapstructure:"max_workers" yaml:"max_workers"`
	SpiderDepth        int      `mapstructure:"spider_depth" yaml:"spider_depth"`
	SpiderDistance     int      `mapstructure:"spider_distance" yaml:"spider_distance"`
	SpiderLinksPerPage int      `mapstructure:"spider_links_per_page" yaml:"spider_links_per_page"`
	AllowDeadly        bool     `mapstructure:"allow_deadly" yaml:"allow_deadly"`
}

// CleanupConfig gates the retention engine.
type CleanupConfig struct {
	Enabled                  bool `mapstructure:"enabled" yaml:"enabled"`
	EventRetentionDays       int  `mapstructure:"event_retention_days" yaml:"event_retention_days"`
	OfflineHostRetentionDays int  `mapstructure:"offline_host_retention_days" yaml:"offline_host_retention_days"`
	OrphanSweepEnabled       bool `mapstructure:"orphan_sweep_enabled" yaml:"orphan_sweep_enabled"`
}

// UploadConfig configures worker-to-central pushes.
type UploadConfig struct {
	CentralURL  string        `mapstructure:"central_url" yaml:"central_url"`
	WorkerID    string        `mapstructure:"worker_id" yaml:"worker_id"`
	WorkerToken string        `mapstructure:"worker_token" yaml:"worker_token"`
	Compress    bool          `mapstructure:"compress" yaml:"compress"`
	VerifyTLS   bool          `mapstructure:"verify_tls" yaml:"verify_tls"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// TelegramConfig configures cycle-summary notifications.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	ChatID   string `mapstructure:"chat_id" yaml:"chat_id"`
}

// LoggingConfig selects slog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Validate rejects configurations the service cannot start with.
// Worker upload credentials are deliberately not required here: their
// absence is a hard failure of the upload operation, not of startup.
func (c *Config) Validate() error {
	if c.Role != RoleCentral && c.Role != RoleWorker {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"role must be \"central\" or \"worker\", got "+c.Role)
	}
	if c.Role == RoleCentral {
		if c.Graph.Host == "" || c.Graph.Port == 0 {
			return types.NewError(types.CONFIG_VALIDATION_FAILED, "graph host and port are required on central")
		}
		if c.Graph.Username == "" || c.Graph.Password == "" {
			return types.NewError(types.CONFIG_VALIDATION_FAILED, "graph credentials are required on central")
		}
	}
	if len(c.Scan.ScanRoots) == 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "at least one scan root is required")
	}
	return nil
}
