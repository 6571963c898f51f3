package skills

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/agentflow/agentflow/internal/db"
	"github.com/agentflow/agentflow/internal/logging"
	"github.com/agentflow/agentflow/internal/pricecache"
	"github.com/agentflow/agentflow/internal/skills/selfclaw"
)

// WalletReader is the read-only wallet surface skills may use. It is nil in
// the execution context when the caller is not authorized to use the wallet.
type WalletReader interface {
	Address(index int64) (common.Address, error)
	Balance(ctx context.Context, index int64) (*big.Int, error)
}

// ExecContext carries agent-scoped capabilities into skill handlers.
type ExecContext struct {
	Ctx   context.Context
	Agent *db.Agent

	// Wallet is nil when canUseWallet is false; wallet skills must degrade
	// to an explanation, never execute or panic.
	Wallet      WalletReader
	WalletIndex int64

	SelfClaw *selfclaw.Client
	Prices   pricecache.Cache
}

// Handler executes one skill invocation and returns the replacement text.
type Handler func(ec *ExecContext, inv Invocation) (string, error)

type registration struct {
	handler Handler
	// templates limits the skill to agent template kinds; nil means all
	templates map[string]bool
	// needsWallet marks skills that read wallet state
	needsWallet bool
}

// Registry maps command tags to handlers, scoped by agent template kind.
type Registry struct {
	entries map[string]registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register adds a handler for a tag. A nil template list makes the skill
// available to every template kind.
func (r *Registry) Register(tag string, templates []string, needsWallet bool, h Handler) {
	reg := registration{handler: h, needsWallet: needsWallet}
	if templates != nil {
		reg.templates = make(map[string]bool, len(templates))
		for _, t := range templates {
			reg.templates[t] = true
		}
	}
	r.entries[tag] = reg
}

// Available lists the tags usable by a template kind. Wallet skills are
// excluded when withWallet is false, so the composer never documents
// capabilities the caller cannot exercise.
func (r *Registry) Available(templateKind string, withWallet bool) []string {
	var tags []string
	for tag, reg := range r.entries {
		if reg.templates != nil && !reg.templates[templateKind] {
			continue
		}
		if reg.needsWallet && !withWallet {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

// Execute scans text for registered skill tags and replaces each with its
// execution result (or an error explanation) in a single ordered pass.
// Unregistered tags and tags outside the agent's template pass through
// untouched. Returns the processed text and the executed-skill count.
func (r *Registry) Execute(ec *ExecContext, text string) (string, int) {
	executed := 0
	out := ReplaceTags(text, func(inv Invocation) (string, bool) {
		reg, ok := r.entries[inv.Tag]
		if !ok {
			return "", false
		}
		if reg.templates != nil && !reg.templates[ec.Agent.TemplateKind] {
			return "", false
		}

		result, err := reg.handler(ec, inv)
		if err != nil {
			logging.Warnf("skills: %s failed for agent %s: %v", inv.Tag, ec.Agent.ID, err)
			return fmt.Sprintf("(%s unavailable: %v)", inv.Tag, err), true
		}
		executed++
		return result, true
	})
	return out, executed
}
