package skills

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/rrclaw/rrclaw/pkg/models"
)

// entry is one discovered skill, indexed by name.
type entry struct {
	meta models.SkillMeta
	dir  string
}

// Registry is the three-tier skill registry: project skills override
// global skills override builtin skills by name (spec §4.9). Grounded on
// the teacher's DiscoverAll priority-merge pattern
// (haasonsaas-nexus/internal/skills/discovery.go), simplified to plain
// local directories since this spec names no git/registry skill sources.
type Registry struct {
	builtinDir string
	globalDir  string
	projectDir string

	log *slog.Logger

	mu      sync.RWMutex
	entries map[string]entry

	watcher *fsnotify.Watcher
}

// New builds a registry over the three skill directories. Any of them
// may be empty/absent; a missing directory simply contributes nothing.
func New(builtinDir, globalDir, projectDir string, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		builtinDir: builtinDir,
		globalDir:  globalDir,
		projectDir: projectDir,
		log:        log,
		entries:    make(map[string]entry),
	}
	r.reload()
	return r
}

// Meta returns the merged, name-deduplicated skill list (L1), sorted by
// name for deterministic prompt assembly.
func (r *Registry) Meta() []models.SkillMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SkillMeta, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Load reads a named skill's full body (L2) plus any sibling resource
// files, on demand.
func (r *Registry) Load(name string) (*models.SkillContent, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	parsedSkill, err := parseSkillFile(filepath.Join(e.dir, SkillFilename))
	if err != nil {
		r.log.Warn("skill reload failed", "name", name, "error", err)
		return nil, false
	}
	return &models.SkillContent{
		Name:      e.meta.Name,
		Body:      parsedSkill.body,
		Resources: listResources(e.dir),
	}, true
}

// Watch starts an fsnotify watch over all three skill directories,
// reloading the registry on any write/create/remove/rename event. The
// returned stop func closes the watcher; call it on shutdown. Per
// SPEC_FULL.md §11, fsnotify backs live reload of skill directories and
// identity files (internal/identity watches separately).
func (r *Registry) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{r.builtinDir, r.globalDir, r.projectDir} {
		if dir == "" {
			continue
		}
		addWatchTree(w, dir)
	}
	r.watcher = w

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					r.reload()
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				r.log.Warn("skill watcher error", "error", werr)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done); w.Close() }, nil
}

func addWatchTree(w *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d == nil || !d.IsDir() {
			return nil
		}
		_ = w.Add(path)
		return nil
	})
}

// reload rescans all three tiers and rebuilds the merged entry map,
// project overriding global overriding builtin.
func (r *Registry) reload() {
	merged := make(map[string]entry)
	for _, tier := range []struct {
		dir    string
		source models.SkillSource
	}{
		{r.builtinDir, models.SkillSourceBuiltin},
		{r.globalDir, models.SkillSourceGlobal},
		{r.projectDir, models.SkillSourceProject},
	} {
		if tier.dir == "" {
			continue
		}
		for name, dir := range scanTier(tier.dir) {
			parsedSkill, err := parseSkillFile(filepath.Join(dir, SkillFilename))
			if err != nil {
				r.log.Warn("skipping invalid skill", "path", dir, "error", err)
				continue
			}
			meta := parsedSkill.meta
			meta.Name = name
			meta.Source = tier.source
			merged[name] = entry{meta: meta, dir: dir}
		}
	}
	r.mu.Lock()
	r.entries = merged
	r.mu.Unlock()
}

// scanTier lists immediate subdirectories of root containing a SKILL.md,
// keyed by directory name.
func scanTier(root string) map[string]string {
	out := make(map[string]string)
	entries, err := os.ReadDir(root)
	if err != nil {
		return out
	}
	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		dir := filepath.Join(root, de.Name())
		if _, err := os.Stat(filepath.Join(dir, SkillFilename)); err == nil {
			out[de.Name()] = dir
		}
	}
	return out
}

// listResources returns any non-SKILL.md files alongside a skill's
// definition, available to the model as L3 material.
func listResources(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, de := range entries {
		if de.IsDir() || de.Name() == SkillFilename {
			continue
		}
		out = append(out, de.Name())
	}
	sort.Strings(out)
	return out
}
