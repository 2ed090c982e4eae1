package agent

import (
	"context"

	"github.com/rrclaw/rrclaw/pkg/models"
)

// MemoryStore is the narrow slice of internal/memory.Manager the agent
// loop depends on. Declaring it here (rather than importing the memory
// package's concrete type) keeps internal/agent import-cycle free and
// lets tests substitute an in-process fake.
type MemoryStore interface {
	Store(ctx context.Context, key, content, category string) error
	Recall(ctx context.Context, query string, limit int) ([]models.MemoryEntry, error)
	Get(ctx context.Context, key string) (*models.MemoryEntry, bool, error)
	Forget(ctx context.Context, key string) error
	Count(ctx context.Context) (int, error)
}

// SkillRegistry is the narrow slice of internal/skills.Registry the
// prompt assembler and router depend on.
type SkillRegistry interface {
	Meta() []models.SkillMeta
	Load(name string) (*models.SkillContent, bool)
}

// IdentityLoader supplies the concatenated identity-context string of
// spec §4.9. Re-invoked at the start of every turn so on-disk edits to
// USER.md/SOUL.md/AGENT.md take effect without a restart.
type IdentityLoader interface {
	Load() (string, error)
}
