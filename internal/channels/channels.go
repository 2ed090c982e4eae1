// Package channels defines the outbound messaging boundary between the
// Agent loop and whatever front-end is driving it. Bot-framework channels
// (Telegram/Discord/Slack/etc.) are out of scope as full implementations
// (spec §1); this package documents the interface a future package would
// implement and ships the one concrete channel this repo needs: a
// terminal/stderr sink used by the REPL and the routine engine.
package channels

import (
	"context"
	"fmt"
	"io"
)

// Outbound delivers agent output to a named channel. A routine's
// Channel field (spec §4.12) selects which Outbound a dispatcher routes
// to; the terminal REPL registers itself under "stderr".
type Outbound interface {
	Name() string
	Send(ctx context.Context, channelID, text string) error
}

// Stderr is the one concrete Outbound this repo ships: it writes routine
// output to a writer (typically os.Stderr) for the CLI front-end, per
// spec §4.12's "stderr for CLI" routing rule.
type Stderr struct {
	Writer io.Writer
}

// NewStderr creates a Stderr channel writing to w.
func NewStderr(w io.Writer) *Stderr { return &Stderr{Writer: w} }

func (s *Stderr) Name() string { return "stderr" }

func (s *Stderr) Send(ctx context.Context, channelID, text string) error {
	_, err := fmt.Fprintf(s.Writer, "[routine:%s] %s\n", channelID, text)
	return err
}

// Registry resolves a channel name to an Outbound implementation. Unknown
// channel names fall back to "stderr" so routine output is never silently
// dropped.
type Registry struct {
	channels map[string]Outbound
	fallback Outbound
}

// NewRegistry builds a channel registry with fallback as the default for
// unresolved names.
func NewRegistry(fallback Outbound) *Registry {
	return &Registry{channels: make(map[string]Outbound), fallback: fallback}
}

// Register adds an Outbound under its own Name().
func (r *Registry) Register(o Outbound) {
	if o == nil {
		return
	}
	r.channels[o.Name()] = o
}

// Resolve returns the Outbound for name, or the fallback if unregistered.
func (r *Registry) Resolve(name string) Outbound {
	if o, ok := r.channels[name]; ok {
		return o
	}
	return r.fallback
}
