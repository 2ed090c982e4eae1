// Package cron implements the Routine engine (spec §4.12): cron-driven
// re-entry into a fresh Agent, backed by robfig/cron/v3 for scheduling.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	robfigcron "github.com/robfig/cron/v3"

	"github.com/rrclaw/rrclaw/internal/agent"
	"github.com/rrclaw/rrclaw/internal/channels"
	"github.com/rrclaw/rrclaw/internal/retry"
	"github.com/rrclaw/rrclaw/pkg/models"
)

const (
	executionTimeout = 5 * time.Minute
	maxRetries       = 3
	retryBackoff     = 5 * time.Minute
)

// Store is the persistence dependency this engine needs, satisfied by
// internal/memory.Manager.
type Store interface {
	SaveRoutine(ctx context.Context, r models.Routine) error
	ListRoutines(ctx context.Context) ([]models.Routine, error)
	DeleteRoutine(ctx context.Context, name string) error
	SetRoutineEnabled(ctx context.Context, name string, enabled bool) error
	AppendRoutineLog(ctx context.Context, id string, exec models.RoutineExecution) error
	RoutineLogs(ctx context.Context, name string, limit int) ([]models.RoutineExecution, error)
	Get(ctx context.Context, key string) (*models.MemoryEntry, bool, error)
}

// AgentFactory builds a fresh Agent for one routine firing, wired with a
// no-op Memory wrapper, the shared tools, and the routine's autonomy
// preference (spec §4.12 step 2).
type AgentFactory func(r models.Routine) *agent.Agent

// Engine is the cron scheduler driving routine re-entry. It satisfies
// internal/tools/routinetool.Engine.
type Engine struct {
	cron     *robfigcron.Cron
	store    Store
	factory  AgentFactory
	channels *channels.Registry
	logger   *slog.Logger

	entryIDs map[string]robfigcron.EntryID
	routines map[string]models.Routine
}

// Config configures a new Engine.
type Config struct {
	Store    Store
	Factory  AgentFactory
	Channels *channels.Registry
	Logger   *slog.Logger
}

// New builds an Engine, loading and scheduling every persisted routine
// from Store plus any statically-configured ones passed in configured.
func New(cfg Config, configured []models.Routine) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cron:     robfigcron.New(robfigcron.WithSeconds()),
		store:    cfg.Store,
		factory:  cfg.Factory,
		channels: cfg.Channels,
		logger:   logger,
		entryIDs: make(map[string]robfigcron.EntryID),
		routines: make(map[string]models.Routine),
	}

	for _, r := range configured {
		r.Source = "config"
		if err := e.schedule(r); err != nil {
			logger.Warn("static routine skipped", "name", r.Name, "error", err)
		}
	}

	if e.store != nil {
		ctx := context.Background()
		dynamic, err := e.store.ListRoutines(ctx)
		if err != nil {
			return nil, fmt.Errorf("load routines: %w", err)
		}
		for _, r := range dynamic {
			if err := e.schedule(r); err != nil {
				logger.Warn("dynamic routine skipped", "name", r.Name, "error", err)
			}
		}
	}

	return e, nil
}

// Start begins the scheduler's background goroutine.
func (e *Engine) Start() { e.cron.Start() }

// Stop blocks until in-flight jobs complete.
func (e *Engine) Stop() { <-e.cron.Stop().Done() }

func (e *Engine) schedule(r models.Routine) error {
	if !r.Enabled {
		e.routines[r.Name] = r
		return nil
	}
	expr := Normalize(r.Schedule)
	id, err := e.cron.AddFunc(expr, func() { e.fire(r) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", r.Name, err)
	}
	e.entryIDs[r.Name] = id
	e.routines[r.Name] = r
	return nil
}

func (e *Engine) unschedule(name string) {
	if id, ok := e.entryIDs[name]; ok {
		e.cron.Remove(id)
		delete(e.entryIDs, name)
	}
}

// fire runs one routine execution: snapshot, recall prior approach,
// retry-wrapped Agent run, dispatch to its channel, log the result
// (spec §4.12 steps 1-5).
func (e *Engine) fire(r models.Routine) {
	ctx := context.Background()
	exec, err := e.run(ctx, r)
	if err != nil {
		e.logger.Warn("routine execution failed", "name", r.Name, "error", err)
	}
	if e.channels != nil && exec != nil {
		out := e.channels.Resolve(r.Channel)
		if out != nil {
			if sendErr := out.Send(ctx, r.Channel, exec.OutputPreview); sendErr != nil {
				e.logger.Warn("routine output dispatch failed", "name", r.Name, "error", sendErr)
			}
		}
	}
}

// run executes one routine firing with up to maxRetries attempts, each
// bounded by executionTimeout, and a linear retryBackoff between
// attempts (spec §4.12 step 4). It is also used directly by RunNow.
func (e *Engine) run(ctx context.Context, r models.Routine) (*models.RoutineExecution, error) {
	if e.factory == nil {
		return nil, fmt.Errorf("no agent factory configured")
	}
	started := time.Now()

	message := r.Message
	if e.store != nil {
		if entry, ok, _ := e.store.Get(ctx, fmt.Sprintf("routine:%s:approach", r.Name)); ok && entry != nil {
			message = fmt.Sprintf("[Prior successful approach]\n%s\n\n%s", entry.Content, r.Message)
		}
	}

	var output string
	result := retry.WithAttemptNumber(ctx, retry.Linear(maxRetries, retryBackoff), func(attempt int) error {
		runCtx, cancel := context.WithTimeout(ctx, executionTimeout)
		a := e.factory(r)
		out, err := a.ProcessMessage(runCtx, message)
		cancel()
		output = out
		if err != nil && attempt < maxRetries {
			e.logger.Warn("routine attempt failed, retrying", "name", r.Name, "attempt", attempt, "error", err)
		}
		return err
	})
	runErr := result.Err

	exec := models.RoutineExecution{
		RoutineName:   r.Name,
		StartedAt:     started.Unix(),
		FinishedAt:    time.Now().Unix(),
		Success:       runErr == nil,
		OutputPreview: truncate(output, 2000),
	}
	if runErr != nil {
		exec.Error = runErr.Error()
	}
	if e.store != nil {
		if logErr := e.store.AppendRoutineLog(ctx, uuid.NewString(), exec); logErr != nil {
			e.logger.Warn("routine log append failed", "name", r.Name, "error", logErr)
		}
	}
	return &exec, runErr
}

// Create adds a dynamic routine, persists it, and schedules it if
// enabled (spec §4.12's "Dynamic add/delete ... persisted immediately").
func (e *Engine) Create(r models.Routine) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("routine name required")
	}
	r.Source = "dynamic"
	ctx := context.Background()
	if e.store != nil {
		if err := e.store.SaveRoutine(ctx, r); err != nil {
			return err
		}
	}
	e.unschedule(r.Name)
	return e.schedule(r)
}

// List returns a snapshot of every known routine.
func (e *Engine) List() []models.Routine {
	out := make([]models.Routine, 0, len(e.routines))
	for _, r := range e.routines {
		out = append(out, r)
	}
	return out
}

// Delete removes a routine from the store and scheduler.
func (e *Engine) Delete(name string) error {
	ctx := context.Background()
	if e.store != nil {
		if err := e.store.DeleteRoutine(ctx, name); err != nil {
			return err
		}
	}
	e.unschedule(name)
	delete(e.routines, name)
	return nil
}

// SetEnabled flips a routine's enabled flag, persists it, and
// (re)schedules or unschedules it. Per spec §4.12, taking effect in the
// running scheduler is best-effort here rather than requiring a
// restart, since robfig/cron/v3 supports runtime Add/Remove cheaply.
func (e *Engine) SetEnabled(name string, enabled bool) error {
	ctx := context.Background()
	if e.store != nil {
		if err := e.store.SetRoutineEnabled(ctx, name, enabled); err != nil {
			return err
		}
	}
	r, ok := e.routines[name]
	if !ok {
		return fmt.Errorf("routine %q not found", name)
	}
	r.Enabled = enabled
	e.unschedule(name)
	return e.schedule(r)
}

// RunNow fires a routine immediately, outside its schedule.
func (e *Engine) RunNow(ctx context.Context, name string) (*models.RoutineExecution, error) {
	r, ok := e.routines[name]
	if !ok {
		return nil, fmt.Errorf("routine %q not found", name)
	}
	return e.run(ctx, r)
}

// Logs returns the most recent execution records for a routine.
func (e *Engine) Logs(name string, limit int) ([]models.RoutineExecution, error) {
	if e.store == nil {
		return nil, nil
	}
	return e.store.RoutineLogs(context.Background(), name, limit)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
