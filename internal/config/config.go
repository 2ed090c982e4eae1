// Package config loads the TOML configuration file (spec §6) into the
// typed structs the rest of the runtime wires together: provider
// selection, security policy, memory location, reliability/fallback
// order, and static routines.
package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml"

	"github.com/rrclaw/rrclaw/pkg/models"
)

// Config is the root decoded shape of the TOML config file.
type Config struct {
	Default     DefaultConfig             `toml:"default"`
	Providers   map[string]ProviderConfig `toml:"providers"`
	Memory      MemoryConfig              `toml:"memory"`
	Security    SecurityConfig            `toml:"security"`
	Reliability ReliabilityConfig         `toml:"reliability"`
	Skills      SkillsConfig              `toml:"skills"`
	Routines    []RoutineConfig           `toml:"routines"`
}

// DefaultConfig selects the active provider/model pairing and workspace.
type DefaultConfig struct {
	Provider    string  `toml:"provider"`
	Model       string  `toml:"model"`
	RouterModel string  `toml:"router_model"`
	Workspace   string  `toml:"workspace"`
	Temperature float64 `toml:"temperature"`
}

// ProviderConfig holds one [providers.NAME] table's connection details.
type ProviderConfig struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	SessionToken    string `toml:"session_token"`
}

// MemoryConfig points at the SQLite backing file for internal/memory.
type MemoryConfig struct {
	Path string `toml:"path"`
}

// SecurityConfig is the TOML shape of models.SecurityPolicy.
type SecurityConfig struct {
	Autonomy          string   `toml:"autonomy"`
	AllowedCommands   []string `toml:"allowed_commands"`
	BlockedPaths      []string `toml:"blocked_paths"`
	AllowedHTTPHosts  []string `toml:"allowed_http_hosts"`
	InjectionCheck    bool     `toml:"injection_check"`
	MaxActionsPerHour int      `toml:"max_actions_per_hour"`
	AllowDotfiles     bool     `toml:"allow_dotfiles"`
}

// ReliabilityConfig orders ReliableProvider's retry/fallback chain.
type ReliabilityConfig struct {
	FallbackOrder []string `toml:"fallback_order"`
	MaxRetries    int      `toml:"max_retries"`
}

// SkillsConfig names the global/project skill directories. The builtin
// tier is read from the workspace's "skills" directory on disk; no skills
// are embedded in the binary.
type SkillsConfig struct {
	GlobalDir  string `toml:"global_dir"`
	ProjectDir string `toml:"project_dir"`
}

// RoutineConfig is one [[routines]] static entry.
type RoutineConfig struct {
	Name     string `toml:"name"`
	Schedule string `toml:"schedule"`
	Message  string `toml:"message"`
	Channel  string `toml:"channel"`
	Enabled  bool   `toml:"enabled"`
}

// Load reads and decodes the TOML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// SecurityPolicy converts the decoded SecurityConfig into the domain
// type internal/security.New consumes.
func (c *Config) SecurityPolicy() models.SecurityPolicy {
	mode := models.AutonomyMode(c.Security.Autonomy)
	if mode == "" {
		mode = models.ModeSupervised
	}
	return models.SecurityPolicy{
		Mode:              mode,
		AllowedCommands:   toSet(c.Security.AllowedCommands),
		Workspace:         c.Default.Workspace,
		BlockedPaths:      c.Security.BlockedPaths,
		AllowedHTTPHosts:  toSet(c.Security.AllowedHTTPHosts),
		InjectionCheck:    c.Security.InjectionCheck,
		MaxActionsPerHour: c.Security.MaxActionsPerHour,
		AllowDotfiles:     c.Security.AllowDotfiles,
	}
}

// RoutineList converts the static [[routines]] entries into domain values.
func (c *Config) RoutineList() []models.Routine {
	out := make([]models.Routine, 0, len(c.Routines))
	for _, r := range c.Routines {
		out = append(out, models.Routine{
			Name: r.Name, Schedule: r.Schedule, Message: r.Message,
			Channel: r.Channel, Enabled: r.Enabled, Source: "config",
		})
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
