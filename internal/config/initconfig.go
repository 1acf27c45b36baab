package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// InitConfig is the operator-editable document applied on top of the
// static configuration at startup: scan targets, scan defaults, the
// worker token table, notification credentials, and per-module engine
// overrides.
type InitConfig struct {
	Targets      []string       `json:"targets"`
	ScanDefaults map[string]any `json:"scan_defaults"`
	Workers      []WorkerEntry  `json:"workers"`

	TelegramBotToken string `json:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `json:"TELEGRAM_CHAT_ID"`

	BBotModules        map[string]any `json:"bbot_modules"`
	BBotDisableModules []string       `json:"bbot_disable_modules"`
}

// WorkerEntry is one row of the worker token table.
type WorkerEntry struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// LoadInitConfig reads the init config document. A missing or broken
// file yields an empty document, never an error: the service must come
// up even when the operator has not written one yet.
func LoadInitConfig(path string, logger *slog.Logger) InitConfig {
	var ic InitConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return ic
	}
	if err := json.Unmarshal(data, &ic); err != nil {
		logger.Warn("init config is not valid JSON, ignoring", "path", path, "error", err)
		return InitConfig{}
	}
	return ic
}

// Apply merges the init config into cfg and writes engine module
// overrides to the bbot config overlay.
func (ic InitConfig) Apply(cfg *Config, logger *slog.Logger) {
	if len(ic.Targets) > 0 {
		cfg.Targets = append([]string{}, ic.Targets...)
	}

	applyScanDefaults(&cfg.Scan, ic.ScanDefaults)

	tokens := map[string]string{}
	for _, w := range ic.Workers {
		id := strings.TrimSpace(w.ID)
		token := strings.TrimSpace(w.Token)
		if id != "" && token != "" {
			tokens[id] = token
		}
	}
	cfg.WorkerTokens = tokens
	if len(tokens) > 0 {
		logger.Info("loaded worker tokens from init config", "count", len(tokens))
	} else {
		logger.Info("no worker tokens configured, worker ingest disabled")
	}

	if cfg.Telegram.BotToken == "" && ic.TelegramBotToken != "" {
		cfg.Telegram.BotToken = ic.TelegramBotToken
	}
	if cfg.Telegram.ChatID == "" && ic.TelegramChatID != "" {
		cfg.Telegram.ChatID = ic.TelegramChatID
	}

	if len(ic.BBotModules) > 0 || len(ic.BBotDisableModules) > 0 {
		if err := writeModuleOverlay(cfg.Scan.BBotConfigPath, ic.BBotModules, ic.BBotDisableModules); err != nil {
			logger.Warn("failed to write bbot module overlay", "path", cfg.Scan.BBotConfigPath, "error", err)
		}
	}
}

func applyScanDefaults(scan *ScanConfig, defaults map[string]any) {
	if len(defaults) == 0 {
		return
	}
	if v, ok := stringSlice(defaults["presets"]); ok {
		scan.Defaults.Presets = v
	}
	if v, ok := stringSlice(defaults["flags"]); ok {
		scan.Defaults.Flags = v
	}
	if v, ok := intValue(defaults["max_workers"]); ok {
		scan.Defaults.MaxWorkers = v
	}
	if v, ok := intValue(defaults["spider_depth"]); ok {
		scan.Defaults.SpiderDepth = v
	}
	if v, ok := intValue(defaults["spider_distance"]); ok {
		scan.Defaults.SpiderDistance = v
	}
	if v, ok := intValue(defaults["spider_links_per_page"]); ok {
		scan.Defaults.SpiderLinksPerPage = v
	}
	if v, ok := defaults["allow_deadly"].(bool); ok {
		scan.Defaults.AllowDeadly = v
	}
	if v, ok := intValue(defaults["cycle_sleep_seconds"]); ok {
		scan.CycleSleep = time.Duration(v) * time.Second
	}
	if v, ok := intValue(defaults["target_sleep_seconds"]); ok {
		scan.TargetSleep = time.Duration(v) * time.Second
	}
}

// writeModuleOverlay merges module configuration and disabled-module
// entries into the engine's YAML config file, preserving whatever else
// is already there.
func writeModuleOverlay(path string, modules map[string]any, disabled []string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	current := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		_ = yaml.Unmarshal(data, &current)
	}

	mods, _ := current["modules"].(map[string]any)
	if mods == nil {
		mods = map[string]any{}
	}
	for name, modCfg := range modules {
		mods[name] = modCfg
	}
	for _, name := range disabled {
		entry, _ := mods[name].(map[string]any)
		if entry == nil {
			entry = map[string]any{}
		}
		entry["enabled"] = false
		mods[name] = entry
	}
	current["modules"] = mods

	out, err := yaml.Marshal(current)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

func stringSlice(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}
