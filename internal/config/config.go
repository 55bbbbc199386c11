// Package config loads the monkmode configuration file and layers environment
// variables and command-line flags on top of it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Lattixe/MonkMode-windows/internal/blocker"
	"github.com/Lattixe/MonkMode-windows/internal/hotkey"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/process"
	"github.com/Lattixe/MonkMode-windows/internal/session"
	"github.com/Lattixe/MonkMode-windows/internal/timeouts"
)

// EnvPrefix prefixes every environment override, e.g. MONKMODE_SESSION_DURATION.
const EnvPrefix = "MONKMODE"

// Config is the complete monkmode configuration.
type Config struct {
	Session     SessionConfig     `yaml:"session" toml:"session" json:"session"`
	Block       BlockConfig       `yaml:"block" toml:"block" json:"block"`
	Enforcement EnforcementConfig `yaml:"enforcement" toml:"enforcement" json:"enforcement"`
	API         APIConfig         `yaml:"api" toml:"api" json:"api"`
	Log         LogConfig         `yaml:"log" toml:"log" json:"log"`
}

// SessionConfig holds session defaults.
type SessionConfig struct {
	Duration           time.Duration `yaml:"duration" toml:"duration" json:"duration"`
	Task               string        `yaml:"task" toml:"task" json:"task"`
	ConfirmationPhrase string        `yaml:"confirmation_phrase" toml:"confirmation_phrase" json:"confirmation_phrase"`
	EndHotkey          string        `yaml:"end_hotkey" toml:"end_hotkey" json:"end_hotkey"`
	ExtendHotkey       string        `yaml:"extend_hotkey" toml:"extend_hotkey" json:"extend_hotkey"`
}

// BlockConfig lists what the system blocker blocks.
type BlockConfig struct {
	Processes   []string `yaml:"processes" toml:"processes" json:"processes"`
	Domains     []string `yaml:"domains" toml:"domains" json:"domains"`
	HideTaskbar bool     `yaml:"hide_taskbar" toml:"hide_taskbar" json:"hide_taskbar"`
	HostsPath   string   `yaml:"hosts_path" toml:"hosts_path" json:"hosts_path"`
}

// EnforcementConfig tunes the claim pass.
type EnforcementConfig struct {
	SettleDelay    time.Duration `yaml:"settle_delay" toml:"settle_delay" json:"settle_delay"`
	HostRetryDelay time.Duration `yaml:"host_retry_delay" toml:"host_retry_delay" json:"host_retry_delay"`
}

// APIConfig controls the local status API.
type APIConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" toml:"addr" json:"addr"`
}

// LogConfig controls logging.
type LogConfig struct {
	Verbose bool   `yaml:"verbose" toml:"verbose" json:"verbose"`
	Dir     string `yaml:"dir" toml:"dir" json:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			Duration:           25 * time.Minute,
			ConfirmationPhrase: session.DefaultConfirmationPhrase,
			EndHotkey:          "ctrl+alt+q",
			ExtendHotkey:       "ctrl+alt+e",
		},
		Block: BlockConfig{
			Processes: []string{},
			Domains:   []string{},
			HostsPath: blocker.DefaultHostsPath(),
		},
		Enforcement: EnforcementConfig{
			SettleDelay:    timeouts.ClaimSettleDelay,
			HostRetryDelay: timeouts.HostRetryDelay,
		},
		API: APIConfig{
			Addr: "127.0.0.1:7878",
		},
		Log: LogConfig{
			Dir: logger.DefaultLogDir(),
		},
	}
}

// DefaultPath returns %APPDATA%\monkmode\config.yaml.
func DefaultPath() string {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		appData = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
	}

	return filepath.Join(appData, logger.AppName, "config.yaml")
}

// Load reads the file at path, choosing the decoder by extension. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	return cfg, nil
}

// Save writes cfg as YAML or TOML according to the extension of path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := Encode(cfg, filepath.Ext(path))
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Encode renders cfg in the format named by ext (".yaml" or ".toml").
func Encode(cfg *Config, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("encode TOML: %w", err)
		}
		return buf.Bytes(), nil
	default:
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("encode YAML: %w", err)
		}
		return data, nil
	}
}

// BindEnv registers the MONKMODE_* environment variables with v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"session.duration",
		"session.task",
		"session.confirmation_phrase",
		"block.processes",
		"block.domains",
		"block.hide_taskbar",
		"block.hosts_path",
		"api.enabled",
		"api.addr",
		"log.verbose",
		"log.dir",
	} {
		_ = v.BindEnv(key)
	}
}

// ApplyOverrides copies every key set in v (by environment or bound flag)
// over the file values.
func (c *Config) ApplyOverrides(v *viper.Viper) {
	if v.IsSet("session.duration") {
		c.Session.Duration = v.GetDuration("session.duration")
	}
	if v.IsSet("session.task") {
		c.Session.Task = v.GetString("session.task")
	}
	if v.IsSet("session.confirmation_phrase") {
		c.Session.ConfirmationPhrase = v.GetString("session.confirmation_phrase")
	}
	if v.IsSet("block.processes") {
		c.Block.Processes = splitList(v.GetStringSlice("block.processes"))
	}
	if v.IsSet("block.domains") {
		c.Block.Domains = splitList(v.GetStringSlice("block.domains"))
	}
	if v.IsSet("block.hide_taskbar") {
		c.Block.HideTaskbar = v.GetBool("block.hide_taskbar")
	}
	if v.IsSet("block.hosts_path") {
		c.Block.HostsPath = v.GetString("block.hosts_path")
	}
	if v.IsSet("api.enabled") {
		c.API.Enabled = v.GetBool("api.enabled")
	}
	if v.IsSet("api.addr") {
		c.API.Addr = v.GetString("api.addr")
	}
	if v.IsSet("log.verbose") {
		c.Log.Verbose = v.GetBool("log.verbose")
	}
	if v.IsSet("log.dir") {
		c.Log.Dir = v.GetString("log.dir")
	}
}

// splitList flattens comma separated entries, as environment variables carry
// lists in one string.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Session.Duration <= 0 {
		return fmt.Errorf("session.duration must be positive, got %s", c.Session.Duration)
	}

	if strings.TrimSpace(c.Session.ConfirmationPhrase) == "" {
		return errors.New("session.confirmation_phrase must not be empty")
	}

	for _, hk := range []string{c.Session.EndHotkey, c.Session.ExtendHotkey} {
		if hk == "" {
			continue
		}

		if _, err := hotkey.Parse(hk); err != nil {
			return fmt.Errorf("session hotkey: %w", err)
		}
	}

	if c.Session.EndHotkey != "" && strings.EqualFold(c.Session.EndHotkey, c.Session.ExtendHotkey) {
		return errors.New("session.end_hotkey and session.extend_hotkey must differ")
	}

	for _, p := range c.Block.Processes {
		if process.NormalizeName(p) == "" {
			return fmt.Errorf("block.processes: invalid process name %q", p)
		}
	}

	for _, d := range c.Block.Domains {
		if blocker.NormalizeDomain(d) == "" {
			return fmt.Errorf("block.domains: invalid domain %q", d)
		}
	}

	if c.Enforcement.SettleDelay < 0 || c.Enforcement.HostRetryDelay < 0 {
		return errors.New("enforcement delays must not be negative")
	}

	if c.API.Enabled {
		if _, _, err := net.SplitHostPort(c.API.Addr); err != nil {
			return fmt.Errorf("api.addr: %w", err)
		}
	}

	return nil
}
