package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, RoleCentral, cfg.Role)
	assert.Equal(t, time.Hour, cfg.Scan.CycleSleep)
	assert.Equal(t, 15*time.Second, cfg.Scan.ReadDelay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "central defaults",
			mutate: func(c *Config) {},
		},
		{
			name:   "worker without graph credentials",
			mutate: func(c *Config) { c.Role = RoleWorker; c.Graph = GraphConfig{} },
		},
		{
			name:    "unknown role",
			mutate:  func(c *Config) { c.Role = "observer" },
			wantErr: true,
		},
		{
			name:    "central without graph host",
			mutate:  func(c *Config) { c.Graph.Host = "" },
			wantErr: true,
		},
		{
			name:    "central without graph password",
			mutate:  func(c *Config) { c.Graph.Password = "" },
			wantErr: true,
		},
		{
			name:    "no scan roots",
			mutate:  func(c *Config) { c.Scan.ScanRoots = nil },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGraphConfigURI(t *testing.T) {
	g := GraphConfig{Scheme: "bolt", Host: "graph.internal", Port: 7687}
	assert.Equal(t, "bolt://graph.internal:7687", g.URI())
}

func TestLoad(t *testing.T) {
	t.Setenv("OSINT_GRAPH_PASSWORD", "s3cret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
role: central
api:
  listen: ":9000"
  token: admin-token
graph:
  scheme: bolt
  host: graph.internal
  port: 7687
  username: neo4j
  password: ${OSINT_GRAPH_PASSWORD}
scan:
  scan_roots:
    - /data/scans
  cycle_sleep: 30m
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.API.Listen)
	assert.Equal(t, "graph.internal", cfg.Graph.Host)
	assert.Equal(t, "s3cret", cfg.Graph.Password, "env reference resolved")
	assert.Equal(t, []string{"/data/scans"}, cfg.Scan.ScanRoots)
	assert.Equal(t, 30*time.Minute, cfg.Scan.CycleSleep)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, time.Second, cfg.Scan.DetectDelay, "unset fields keep defaults")
}

func TestLoadUnsetEnvReferenceLeftIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
role: worker
upload:
  central_url: https://central.example.com
  worker_id: worker-1
  worker_token: ${OSINT_MISSING_TOKEN_VAR}
scan:
  scan_roots:
    - /data/scans
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "${OSINT_MISSING_TOKEN_VAR}", cfg.Upload.WorkerToken)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_LOAD_FAILED, types.CodeOf(err))
}

func TestLoadWithDefaultsMissingFile(t *testing.T) {
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, RoleCentral, cfg.Role)
}

func TestLoadInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "init_config.json")
	content := `{
  "targets": ["example.com", "example.org"],
  "scan_defaults": {
    "presets": ["subdomain-enum", "web-basic"],
    "max_workers": 4,
    "allow_deadly": true,
    "cycle_sleep_seconds": 1800,
    "target_sleep_seconds": 60
  },
  "workers": [
    {"id": "worker-1", "token": "tok-1"},
    {"id": "", "token": "orphan"},
    {"id": "worker-2", "token": " "}
  ],
  "TELEGRAM_BOT_TOKEN": "bot-token",
  "TELEGRAM_CHAT_ID": "12345"
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ic := LoadInitConfig(path, testLogger())
	cfg := DefaultConfig()
	cfg.Scan.BBotConfigPath = filepath.Join(t.TempDir(), "bbot.yml")
	ic.Apply(cfg, testLogger())

	assert.Equal(t, []string{"example.com", "example.org"}, cfg.Targets)
	assert.Equal(t, []string{"subdomain-enum", "web-basic"}, cfg.Scan.Defaults.Presets)
	assert.Equal(t, 4, cfg.Scan.Defaults.MaxWorkers)
	assert.True(t, cfg.Scan.Defaults.AllowDeadly)
	assert.Equal(t, 30*time.Minute, cfg.Scan.CycleSleep)
	assert.Equal(t, time.Minute, cfg.Scan.TargetSleep)
	assert.Equal(t, map[string]string{"worker-1": "tok-1"}, cfg.WorkerTokens,
		"entries with blank id or token are dropped")
	assert.Equal(t, "bot-token", cfg.Telegram.BotToken)
	assert.Equal(t, "12345", cfg.Telegram.ChatID)
}

func TestLoadInitConfigMissingFile(t *testing.T) {
	ic := LoadInitConfig(filepath.Join(t.TempDir(), "nope.json"), testLogger())
	cfg := DefaultConfig()
	ic.Apply(cfg, testLogger())
	assert.Empty(t, cfg.Targets)
	assert.Empty(t, cfg.WorkerTokens)
}

func TestLoadInitConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "init_config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	ic := LoadInitConfig(path, testLogger())
	assert.Empty(t, ic.Targets)
}

func TestInitConfigModuleOverlay(t *testing.T) {
	dir := t.TempDir()
	overlay := filepath.Join(dir, "bbot.yml")
	existing := map[string]any{
		"web":     map[string]any{"user_agent": "osint-monitor"},
		"modules": map[string]any{"httpx": map[string]any{"threads": 10}},
	}
	data, err := yaml.Marshal(existing)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(overlay, data, 0o644))

	ic := InitConfig{
		BBotModules:        map[string]any{"nuclei": map[string]any{"severity": "high"}},
		BBotDisableModules: []string{"httpx", "wafw00f"},
	}
	cfg := DefaultConfig()
	cfg.Scan.BBotConfigPath = overlay
	ic.Apply(cfg, testLogger())

	out, err := os.ReadFile(overlay)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, yaml.Unmarshal(out, &got))

	assert.Equal(t, map[string]any{"user_agent": "osint-monitor"}, got["web"],
		"unrelated keys survive the overlay")

	mods, ok := got["modules"].(map[string]any)
	require.True(t, ok)

	httpx, ok := mods["httpx"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, httpx["enabled"])
	assert.Equal(t, 10, httpx["threads"], "disable keeps existing module settings")

	nuclei, ok := mods["nuclei"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "high", nuclei["severity"])

	wafw00f, ok := mods["wafw00f"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, wafw00f["enabled"])
}
