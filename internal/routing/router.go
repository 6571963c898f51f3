package routing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/agentflow/agentflow/internal/db"
	"github.com/agentflow/agentflow/internal/logging"
	"github.com/agentflow/agentflow/internal/pairing"
)

// Channel types. Sender ids are always channel-prefixed so identical raw
// ids on different channels can never collide.
const (
	ChannelTelegram = "tg"
	ChannelWeb      = "web"
	ChannelGateway  = "gw"
)

// SenderID builds the normalized channel-scoped sender identifier.
func SenderID(channelType, rawID string) string {
	return channelType + ":" + rawID
}

// Route outcome types
type RouteType string

const (
	RouteExisting      RouteType = "existing"
	RoutePairedNew     RouteType = "paired_new"
	RouteUnknownSender RouteType = "unknown_sender"
)

// SenderContext is a normalized inbound message. SenderID is the raw
// channel-native identifier; Route applies the channel prefix.
type SenderContext struct {
	ChannelType string
	SenderID    string
	Text        string
	// BotID identifies a dedicated bot deployment when the channel has one
	BotID string
}

// RouteResult tells the pipeline how to proceed. When SystemReply is set
// (pairing confirmation or unknown-sender instructions) the reply goes
// straight back to the channel and the LLM pipeline is skipped for this
// turn: pairing consumes the message.
type RouteResult struct {
	Type        RouteType
	Binding     *db.ChannelBinding
	Agent       *db.Agent
	SystemReply string
}

// Router resolves inbound senders to agent bindings.
type Router struct {
	store   *db.Store
	pairing *pairing.Service
}

// NewRouter creates a router over the store and pairing service.
func NewRouter(store *db.Store, pairingSvc *pairing.Service) *Router {
	return &Router{store: store, pairing: pairingSvc}
}

// Route finds or creates the binding for a sender. Per (channel, sender)
// this is a three-state machine: unbound, pairing-code-seen, bound. Bound
// is terminal until an explicit disconnect or a re-pair to another agent.
func (r *Router) Route(ctx context.Context, sc SenderContext) (*RouteResult, error) {
	senderKey := SenderID(sc.ChannelType, sc.SenderID)
	binding, err := r.store.GetActiveBinding(ctx, db.GetActiveBindingParams{
		ChannelType: sc.ChannelType,
		SenderID:    senderKey,
	})
	if err == nil {
		agent, err := r.store.GetAgent(ctx, binding.AgentID)
		if err != nil {
			return nil, fmt.Errorf("routing: load agent %s: %w", binding.AgentID, err)
		}
		return &RouteResult{Type: RouteExisting, Binding: &binding, Agent: &agent}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("routing: lookup binding: %w", err)
	}

	// Unbound sender: the only way in is a pairing code.
	code := pairing.Extract(sc.Text)
	if code == "" {
		return &RouteResult{
			Type: RouteUnknownSender,
			SystemReply: "This channel isn't connected to an agent yet. " +
				"Send your 6-character pairing code (for example AF7X2K, or /pair AF7X2K) to connect.",
		}, nil
	}

	agent, err := r.pairing.Resolve(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("routing: resolve pairing code: %w", err)
	}
	if agent == nil {
		// Expired or unknown codes are "not found", never an error.
		return &RouteResult{
			Type: RouteUnknownSender,
			SystemReply: "That pairing code is invalid or has expired. " +
				"Ask the agent owner to generate a fresh code and try again.",
		}, nil
	}

	newBinding, err := r.store.RebindSender(ctx, db.RebindSenderParams{
		ChannelType: sc.ChannelType,
		SenderID:    senderKey,
		AgentID:     agent.ID,
		BindingType: db.BindingTypePairing,
		BotID:       sc.BotID,
	})
	if err != nil {
		return nil, fmt.Errorf("routing: create binding: %w", err)
	}

	logging.Infof("routing: paired %s to agent %s via code", senderKey, agent.ID)
	return &RouteResult{
		Type:    RoutePairedNew,
		Binding: &newBinding,
		Agent:   agent,
		SystemReply: fmt.Sprintf("Connected! You're now chatting with %s. "+
			"Everything you send here goes to this agent.", agent.Name),
	}, nil
}
