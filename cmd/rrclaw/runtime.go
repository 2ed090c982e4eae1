package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rrclaw/rrclaw/internal/agent"
	"github.com/rrclaw/rrclaw/internal/channels"
	"github.com/rrclaw/rrclaw/internal/config"
	"github.com/rrclaw/rrclaw/internal/cron"
	"github.com/rrclaw/rrclaw/internal/identity"
	"github.com/rrclaw/rrclaw/internal/memory"
	"github.com/rrclaw/rrclaw/internal/metrics"
	"github.com/rrclaw/rrclaw/internal/obslog"
	"github.com/rrclaw/rrclaw/internal/providers"
	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/internal/skills"
	"github.com/rrclaw/rrclaw/internal/tools/configtool"
	"github.com/rrclaw/rrclaw/internal/tools/filetool"
	"github.com/rrclaw/rrclaw/internal/tools/gittool"
	"github.com/rrclaw/rrclaw/internal/tools/httptool"
	"github.com/rrclaw/rrclaw/internal/tools/memorytool"
	"github.com/rrclaw/rrclaw/internal/tools/routinetool"
	"github.com/rrclaw/rrclaw/internal/tools/shelltool"
	"github.com/rrclaw/rrclaw/internal/tools/skilltool"
	"github.com/rrclaw/rrclaw/pkg/models"
)

// runtime bundles every long-lived dependency built from one config file,
// shared by the run/routine/skill subcommands.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	policy   *security.Policy
	mem      *memory.Manager
	skillReg *skills.Registry
	identity *identity.Loader
	provider providers.Provider
	cron     *cron.Engine
	registry *agent.Registry
	metrics  *metrics.Metrics
}

// buildRuntime loads the config file at path and constructs every shared
// dependency. Callers are responsible for closing mem when done; every
// subcommand defers rt.mem.Close().
func buildRuntime(ctx context.Context, path string) (*runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := obslog.New(obslog.Config{Level: os.Getenv("RRCLAW_LOG_LEVEL"), Format: os.Getenv("RRCLAW_LOG_FORMAT")})

	workspace := cfg.Default.Workspace
	if workspace == "" {
		workspace, _ = os.Getwd()
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("ensure workspace: %w", err)
	}

	policySpec := cfg.SecurityPolicy()
	policySpec.Workspace = workspace
	policy, err := security.New(policySpec)
	if err != nil {
		return nil, fmt.Errorf("build security policy: %w", err)
	}

	memPath := cfg.Memory.Path
	if memPath == "" {
		memPath = filepath.Join(workspace, "memory.db")
	}
	mem, err := memory.Open(ctx, memory.Config{Path: memPath})
	if err != nil {
		return nil, fmt.Errorf("open memory: %w", err)
	}

	home, _ := os.UserHomeDir()
	globalSkillsDir := cfg.Skills.GlobalDir
	if globalSkillsDir == "" && home != "" {
		globalSkillsDir = filepath.Join(home, ".rrclaw", "skills")
	}
	projectSkillsDir := cfg.Skills.ProjectDir
	if projectSkillsDir == "" {
		projectSkillsDir = filepath.Join(workspace, ".rrclaw", "skills")
	}
	builtinSkillsDir := filepath.Join(workspace, "skills")
	skillReg := skills.New(builtinSkillsDir, globalSkillsDir, projectSkillsDir, logger)
	if _, err := skillReg.Watch(); err != nil {
		logger.Warn("skill watch failed", "error", err)
	}

	idLoader := identity.New(home, workspace)
	if _, err := idLoader.Watch(func() {}, logger); err != nil {
		logger.Warn("identity watch failed", "error", err)
	}

	m := metrics.New()

	provider, err := buildProvider(cfg, logger, m)
	if err != nil {
		return nil, fmt.Errorf("build provider: %w", err)
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		policy:   policy,
		mem:      mem,
		skillReg: skillReg,
		identity: idLoader,
		provider: provider,
		metrics:  m,
	}

	registry := buildRegistry(rt, workspace)
	rt.registry = registry

	cronEngine, err := cron.New(cron.Config{
		Store:    mem,
		Channels: channels.NewRegistry(channels.NewStderr(os.Stderr)),
		Logger:   logger,
		Factory:  rt.routineAgentFactory,
	}, cfg.RoutineList())
	if err != nil {
		return nil, fmt.Errorf("build cron engine: %w", err)
	}
	rt.cron = cronEngine
	registry.Register(routinetool.New(cronEngine), agent.GroupRoutine)

	return rt, nil
}

// routineAgentFactory builds the fresh, no-Memory Agent each routine
// firing runs against (spec §4.12 step 2: routines must not read or write
// the user's personal memory store).
func (rt *runtime) routineAgentFactory(r models.Routine) *agent.Agent {
	return agent.New(agent.Config{
		Provider:     rt.provider,
		Registry:     rt.registry,
		Policy:       rt.policy,
		Memory:       nil,
		Skills:       rt.skillReg,
		Identity:     rt.identity,
		Model:        rt.cfg.Default.Model,
		RouterModel:  rt.cfg.Default.RouterModel,
		Temperature:  rt.cfg.Default.Temperature,
		SessionID:    fmt.Sprintf("routine:%s:%d", r.Name, time.Now().Unix()),
		Logger:       rt.logger,
		Metrics:      rt.metrics,
		BaseIdentity: "You are executing a scheduled routine with no interactive operator present.",
	})
}

// buildProvider selects cfg.Default.Provider's dialect and wraps it (plus
// every other configured provider, in cfg.Reliability.FallbackOrder) in a
// ReliableProvider (spec §4.7).
func buildProvider(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (providers.Provider, error) {
	primaryName := cfg.Default.Provider
	primary, err := dialProvider(primaryName, cfg)
	if err != nil {
		return nil, err
	}

	var fallbacks []providers.Provider
	for _, name := range cfg.Reliability.FallbackOrder {
		if name == primaryName {
			continue
		}
		p, err := dialProvider(name, cfg)
		if err != nil {
			logger.Warn("fallback provider unavailable", "provider", name, "error", err)
			continue
		}
		fallbacks = append(fallbacks, p)
	}

	policy := providers.DefaultReliablePolicy()
	if cfg.Reliability.MaxRetries > 0 {
		policy.MaxRetries = cfg.Reliability.MaxRetries
	}
	return providers.NewReliableProvider(primary, policy, logger, fallbacks...).WithMetrics(m), nil
}

func dialProvider(name string, cfg *config.Config) (providers.Provider, error) {
	pc := cfg.Providers[name]
	switch strings.ToLower(name) {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{APIKey: pc.APIKey, BaseURL: pc.BaseURL})
	case "bedrock":
		return providers.NewBedrockProvider(context.Background(), providers.BedrockConfig{
			Region: pc.Region, AccessKeyID: pc.AccessKeyID,
			SecretAccessKey: pc.SecretAccessKey, SessionToken: pc.SessionToken,
		})
	default:
		// Every other dialect name (openai, or an OpenAI-compatible proxy
		// like "local"/"venice") speaks the OpenAI wire format.
		return providers.NewOpenAIProvider(providers.OpenAIConfig{APIKey: pc.APIKey, BaseURL: pc.BaseURL, Name: name})
	}
}

// buildRegistry wires every built-in tool into a Registry with its group
// (spec §4.5, §4.13). The routine tool is registered separately by
// buildRuntime once the cron engine exists.
func buildRegistry(rt *runtime, workspace string) *agent.Registry {
	registry := agent.NewRegistry()
	registry.Register(filetool.NewRead(workspace), agent.GroupFileOps)
	registry.Register(filetool.NewWrite(workspace), agent.GroupFileOps)
	registry.Register(shelltool.New(workspace), agent.GroupFileOps)
	registry.Register(gittool.New(workspace), agent.GroupGitOps)
	registry.Register(httptool.New(nil), agent.GroupWeb)
	registry.Register(memorytool.NewStore(rt.mem), agent.GroupMemory)
	registry.Register(memorytool.NewRecall(rt.mem), agent.GroupMemory)
	registry.Register(memorytool.NewForget(rt.mem), agent.GroupMemory)
	registry.Register(configtool.New(configPath), agent.GroupConfig)
	registry.Register(skilltool.New(rt.skillReg), agent.GroupFileOps)
	return registry
}
