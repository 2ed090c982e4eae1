// Package identity loads the concatenated identity context string (spec
// §4.9): USER.md, SOUL.md, AGENT.md, truncated and section-headed.
package identity

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
)

// maxSectionBytes is the per-file truncation limit (spec §4.9).
const maxSectionBytes = 8 * 1024

// Loader assembles the identity context from the well-known file
// locations: ~/.rrclaw/USER.md, <workspace>/.rrclaw/SOUL.md (falling
// back to ~/.rrclaw/SOUL.md), and <workspace>/.rrclaw/AGENT.md. Missing
// files are skipped silently; Load may be re-invoked at runtime so
// on-disk edits take effect without restarting the agent.
type Loader struct {
	homeDir      string
	workspaceDir string
}

// New creates an identity loader rooted at the given home and workspace
// directories.
func New(homeDir, workspaceDir string) *Loader {
	return &Loader{homeDir: homeDir, workspaceDir: workspaceDir}
}

type section struct {
	heading string
	path    string
}

// Load reads each identity file in order, truncates at an 8 KiB
// UTF-8-safe boundary, and concatenates them under section headings.
// An entirely empty result (no files present, or all empty) returns "".
func (l *Loader) Load() (string, error) {
	sections := []section{
		{"USER", filepath.Join(l.homeDir, ".rrclaw", "USER.md")},
		{"SOUL", l.soulPath()},
		{"AGENT", filepath.Join(l.workspaceDir, ".rrclaw", "AGENT.md")},
	}

	var b strings.Builder
	for _, s := range sections {
		content, ok := readTruncated(s.path)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("# ")
		b.WriteString(s.heading)
		b.WriteString("\n\n")
		b.WriteString(content)
	}
	return b.String(), nil
}

// Watch starts an fsnotify watch over the identity directories
// (~/.rrclaw and <workspace>/.rrclaw) and invokes onChange whenever a
// watched file is written, created, removed, or renamed. Load() always
// reads fresh from disk, so Watch is not required for correctness; it
// exists so callers (e.g. a REPL) can log or surface identity edits as
// they happen rather than silently on the next turn (SPEC_FULL.md §11).
// The returned stop func closes the watcher.
func (l *Loader) Watch(onChange func(), log *slog.Logger) (stop func(), err error) {
	if log == nil {
		log = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{
		filepath.Join(l.homeDir, ".rrclaw"),
		filepath.Join(l.workspaceDir, ".rrclaw"),
	} {
		if _, statErr := os.Stat(dir); statErr == nil {
			_ = w.Add(dir)
		}
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					if onChange != nil {
						onChange()
					}
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("identity watcher error", "error", werr)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done); w.Close() }, nil
}

// soulPath resolves SOUL.md: project workspace wins over the user's
// home directory.
func (l *Loader) soulPath() string {
	projectPath := filepath.Join(l.workspaceDir, ".rrclaw", "SOUL.md")
	if _, err := os.Stat(projectPath); err == nil {
		return projectPath
	}
	return filepath.Join(l.homeDir, ".rrclaw", "SOUL.md")
}

// readTruncated reads path, returning (content, true) on success or
// ("", false) if the file is missing/unreadable/empty. Truncation
// respects UTF-8 rune boundaries so a multi-byte rune is never split.
func readTruncated(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	if len(data) > maxSectionBytes {
		cut := maxSectionBytes
		for cut > 0 && !utf8.RuneStart(data[cut]) {
			cut--
		}
		data = data[:cut]
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}
