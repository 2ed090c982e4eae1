// Package security implements SecurityPolicy enforcement (mode, command
// whitelist, path sandbox, host whitelist) and the InjectionFilter that
// sanitizes tool output before it re-enters the conversation.
package security

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rrclaw/rrclaw/pkg/models"
)

// PolicyViolation is returned by every Policy query that denies. It is
// always converted to a failed ToolResult by the caller, never propagated
// as a fatal error (spec §7).
type PolicyViolation struct {
	Reason string
}

func (e *PolicyViolation) Error() string {
	return e.Reason
}

func deny(format string, args ...any) *PolicyViolation {
	return &PolicyViolation{Reason: fmt.Sprintf(format, args...)}
}

// Policy wraps a models.SecurityPolicy with the four queries described in
// spec §4.1. It holds no mutable state; reloading config produces a new
// Policy value.
type Policy struct {
	p models.SecurityPolicy

	// workspaceCanon is the canonicalized workspace path, resolved once at
	// construction so every IsPathAllowed call reuses it.
	workspaceCanon string

	blockedCanon []string
}

// New canonicalizes the policy's workspace and blocked paths and returns a
// ready-to-query Policy. The workspace directory must already exist.
func New(p models.SecurityPolicy) (*Policy, error) {
	workspaceCanon, err := canonicalize(p.Workspace)
	if err != nil {
		return nil, fmt.Errorf("canonicalize workspace: %w", err)
	}
	blocked := make([]string, 0, len(p.BlockedPaths))
	for _, bp := range p.BlockedPaths {
		c, err := canonicalize(bp)
		if err != nil {
			// A blocked path that does not exist yet is still a valid
			// prefix to block; fall back to a lexical clean.
			c = filepath.Clean(bp)
		}
		blocked = append(blocked, c)
	}
	return &Policy{p: p, workspaceCanon: workspaceCanon, blockedCanon: blocked}, nil
}

// Raw returns the underlying policy value.
func (pol *Policy) Raw() models.SecurityPolicy { return pol.p }

// AllowsExecution reports whether the mode permits any mutating tool at
// all. False iff mode is ReadOnly.
func (pol *Policy) AllowsExecution() bool {
	return pol.p.Mode != models.ModeReadOnly
}

// IsCommandAllowed reports whether cmd's first shell token is permitted.
// An empty whitelist allows everything in both Full and Supervised mode;
// Supervised additionally requires confirmation regardless (handled by
// RequiresConfirmation, not here).
func (pol *Policy) IsCommandAllowed(cmd string) bool {
	if len(pol.p.AllowedCommands) == 0 {
		return true
	}
	first := firstToken(cmd)
	if first == "" {
		return false
	}
	_, ok := pol.p.AllowedCommands[first]
	return ok
}

func firstToken(cmd string) string {
	fields := strings.Fields(strings.TrimSpace(cmd))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// IsPathAllowed canonicalizes path (resolving symlinks and ".." segments
// through every ancestor) and reports whether the result is a descendant
// of the workspace and not prefixed by any blocked path.
func (pol *Policy) IsPathAllowed(path string) bool {
	canon, err := canonicalize(path)
	if err != nil {
		// Path may not exist yet (e.g. a file about to be created by
		// FileWrite). Canonicalize the nearest existing ancestor instead.
		canon, err = canonicalizeNearestExisting(path)
		if err != nil {
			return false
		}
	}
	if !isDescendant(canon, pol.workspaceCanon) {
		return false
	}
	for _, b := range pol.blockedCanon {
		if isDescendant(canon, b) {
			return false
		}
	}
	return true
}

// RequiresConfirmation reports whether a mutating tool call must be
// confirmed by the host before executing: true iff mode is Supervised and
// the tool declares itself mutating.
func (pol *Policy) RequiresConfirmation(toolConfirmationRequired bool) bool {
	return pol.p.Mode == models.ModeSupervised && toolConfirmationRequired
}

// IsHostAllowed reports whether host passes the (optional) HTTP host
// whitelist. An empty whitelist means "no additional restriction beyond
// the SSRF guard".
func (pol *Policy) IsHostAllowed(host string) bool {
	if len(pol.p.AllowedHTTPHosts) == 0 {
		return true
	}
	_, ok := pol.p.AllowedHTTPHosts[strings.ToLower(host)]
	return ok
}

// AllowDotfiles reports whether file tools may touch dotfiles.
func (pol *Policy) AllowDotfiles() bool { return pol.p.AllowDotfiles }

// InjectionCheckEnabled reports whether tool output should be run through
// the InjectionFilter.
func (pol *Policy) InjectionCheckEnabled() bool { return pol.p.InjectionCheck }

// MaxActionsPerHour returns the configured rate cap (0 = unlimited).
func (pol *Policy) MaxActionsPerHour() int { return pol.p.MaxActionsPerHour }

// isDescendant reports whether child is path-equal to or nested under
// parent, using OS path separators (no partial-segment matches: "/ab"
// is not a descendant of "/a").
func isDescendant(child, parent string) bool {
	if child == parent {
		return true
	}
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
