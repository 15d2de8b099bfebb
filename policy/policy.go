package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Execution modes.
const (
	ModeAsk  = "ask"  // ask before every tool call
	ModeAuto = "auto" // call tools automatically (default)
	ModeDeny = "deny" // block every tool call
)

// ErrBlocked is returned by Check for a rejected tool call.
var ErrBlocked = errors.New("tool call blocked by policy")

// AskFunc is invoked when Mode==ask. Returning true allows the call.
type AskFunc func(ctx context.Context, worker, tool string, args map[string]string) bool

// Policy controls which tool calls a run may make. A nil *Policy allows
// everything.
//
// AllowList and BlockList entries are either a tool name ("reserve") or a
// worker-qualified name ("Booking.reserve"), compared case-insensitively.
type Policy struct {
	Mode      string
	AllowList []string
	BlockList []string
	Ask       AskFunc
}

// Config is the serialisable part of a Policy.
type Config struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// Validate checks the mode.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	switch strings.ToLower(c.Mode) {
	case "", ModeAuto, ModeAsk, ModeDeny:
		return nil
	}
	return fmt.Errorf("unsupported policy mode %q", c.Mode)
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{
		Mode:      p.Mode,
		AllowList: append([]string(nil), p.AllowList...),
		BlockList: append([]string(nil), p.BlockList...),
	}
}

// FromConfig converts a Config to a runtime Policy without AskFunc. An empty
// config yields nil.
func FromConfig(c *Config) *Policy {
	if c == nil || (c.Mode == "" && len(c.AllowList) == 0 && len(c.BlockList) == 0) {
		return nil
	}
	return &Policy{
		Mode:      strings.ToLower(c.Mode),
		AllowList: append([]string(nil), c.AllowList...),
		BlockList: append([]string(nil), c.BlockList...),
	}
}

// IsAllowed evaluates AllowList and BlockList; BlockList has priority.
func (p *Policy) IsAllowed(worker, tool string) bool {
	if p == nil {
		return true
	}
	for _, b := range p.BlockList {
		if matches(b, worker, tool) {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, a := range p.AllowList {
		if matches(a, worker, tool) {
			return true
		}
	}
	return false
}

// Check returns ErrBlocked when the policy rejects worker calling tool.
func (p *Policy) Check(ctx context.Context, worker, tool string, args map[string]string) error {
	if p == nil {
		return nil
	}
	allowed := p.IsAllowed(worker, tool)
	if allowed {
		switch p.Mode {
		case ModeDeny:
			allowed = false
		case ModeAsk:
			allowed = p.Ask != nil && p.Ask(ctx, worker, tool, args)
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s.%s", ErrBlocked, worker, tool)
	}
	return nil
}

func matches(entry, worker, tool string) bool {
	if name, qualified, ok := strings.Cut(entry, "."); ok {
		return strings.EqualFold(name, worker) && strings.EqualFold(qualified, tool)
	}
	return strings.EqualFold(entry, tool)
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext returns the policy embedded in ctx, or nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
