package routing

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/agentflow/agentflow/internal/db"
	"github.com/agentflow/agentflow/internal/db/migrations"
	"github.com/agentflow/agentflow/internal/logging"
	"github.com/agentflow/agentflow/internal/pairing"
)

func newTestRouter(t *testing.T) (*Router, *db.Store, *pairing.Service) {
	t.Helper()
	logging.Disable()
	migrations.QuietMode = true

	store, err := db.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	pairingSvc := pairing.NewService(store)
	return NewRouter(store, pairingSvc), store, pairingSvc
}

func createAgent(t *testing.T, store *db.Store, name string) db.Agent {
	t.Helper()
	ctx := context.Background()

	userID := uuid.New().String()
	if _, err := store.CreateUser(ctx, db.CreateUserParams{ID: userID, Email: userID + "@example.com"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	agent, err := store.CreateAgent(ctx, db.CreateAgentParams{
		ID:           uuid.New().String(),
		UserID:       userID,
		Name:         name,
		TemplateKind: "general",
		Provider:     "openrouter",
		Model:        "deepseek/deepseek-chat:free",
		Status:       db.AgentStatusActive,
	})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	return agent
}

func TestUnknownSenderWithoutCodeGetsInstructions(t *testing.T) {
	router, _, _ := newTestRouter(t)

	result, err := router.Route(context.Background(), SenderContext{
		ChannelType: ChannelTelegram, SenderID: "1001", Text: "hello there",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if result.Type != RouteUnknownSender {
		t.Fatalf("Type = %q", result.Type)
	}
	if !strings.Contains(result.SystemReply, "pairing code") {
		t.Fatalf("reply lacks pairing instructions: %q", result.SystemReply)
	}
}

func TestUnknownSenderWithInvalidCode(t *testing.T) {
	router, _, _ := newTestRouter(t)

	result, err := router.Route(context.Background(), SenderContext{
		ChannelType: ChannelTelegram, SenderID: "1001", Text: "/pair AF9K3M",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if result.Type != RouteUnknownSender {
		t.Fatalf("Type = %q", result.Type)
	}
	if !strings.Contains(result.SystemReply, "invalid or has expired") {
		t.Fatalf("unexpected reply: %q", result.SystemReply)
	}
}

// The pairing turn itself is consumed: the sender gets a confirmation
// reply and nothing reaches the language model on that turn.
func TestPairingTurnBindsAndConfirms(t *testing.T) {
	router, store, pairingSvc := newTestRouter(t)
	ctx := context.Background()
	agent := createAgent(t, store, "Ada")

	code, err := pairingSvc.GetOrCreate(ctx, agent.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	result, err := router.Route(ctx, SenderContext{
		ChannelType: ChannelTelegram, SenderID: "1001", Text: "/pair " + code, BotID: "bot42",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if result.Type != RoutePairedNew {
		t.Fatalf("Type = %q", result.Type)
	}
	if result.SystemReply == "" || !strings.Contains(result.SystemReply, "Ada") {
		t.Fatalf("confirmation should name the agent: %q", result.SystemReply)
	}
	if result.Binding == nil || !result.Binding.Active {
		t.Fatal("no active binding created")
	}
	if !result.Binding.BotID.Valid || result.Binding.BotID.String != "bot42" {
		t.Fatalf("binding bot id = %+v, want bot42", result.Binding.BotID)
	}

	stored, err := store.GetBinding(ctx, result.Binding.ID)
	if err != nil {
		t.Fatalf("GetBinding: %v", err)
	}
	if !stored.BotID.Valid || stored.BotID.String != "bot42" {
		t.Fatalf("stored bot id = %+v, want bot42", stored.BotID)
	}

	// Next message routes straight to the bound agent.
	next, err := router.Route(ctx, SenderContext{
		ChannelType: ChannelTelegram, SenderID: "1001", Text: "what now?",
	})
	if err != nil {
		t.Fatalf("Route after pairing: %v", err)
	}
	if next.Type != RouteExisting {
		t.Fatalf("Type = %q, want existing", next.Type)
	}
	if next.SystemReply != "" {
		t.Fatalf("bound sender got a system reply: %q", next.SystemReply)
	}
	if next.Agent.ID != agent.ID {
		t.Fatal("routed to the wrong agent")
	}
}

// A bound sender's message containing a code is just text: codes only
// matter while unbound. Re-pairing requires the old binding to be
// deactivated first.
func TestBoundSenderCodeIsPlainText(t *testing.T) {
	router, store, pairingSvc := newTestRouter(t)
	ctx := context.Background()

	first := createAgent(t, store, "first")
	second := createAgent(t, store, "second")

	code1, err := pairingSvc.GetOrCreate(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetOrCreate first: %v", err)
	}
	code2, err := pairingSvc.GetOrCreate(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetOrCreate second: %v", err)
	}

	if _, err := router.Route(ctx, SenderContext{
		ChannelType: ChannelTelegram, SenderID: "7", Text: code1,
	}); err != nil {
		t.Fatalf("initial pairing: %v", err)
	}

	result, err := router.Route(ctx, SenderContext{
		ChannelType: ChannelTelegram, SenderID: "7", Text: code2,
	})
	if err != nil {
		t.Fatalf("Route with second code: %v", err)
	}
	if result.Type != RouteExisting || result.Agent.ID != first.ID {
		t.Fatal("bound sender was re-paired by an inline code")
	}

	// After an explicit disconnect the second code works.
	if err := store.DeactivateBinding(ctx, result.Binding.ID); err != nil {
		t.Fatalf("DeactivateBinding: %v", err)
	}
	rebound, err := router.Route(ctx, SenderContext{
		ChannelType: ChannelTelegram, SenderID: "7", Text: code2,
	})
	if err != nil {
		t.Fatalf("Route after disconnect: %v", err)
	}
	if rebound.Type != RoutePairedNew || rebound.Agent.ID != second.ID {
		t.Fatal("re-pairing to second agent failed")
	}
}

func TestChannelsDoNotShareBindings(t *testing.T) {
	router, store, pairingSvc := newTestRouter(t)
	ctx := context.Background()
	agent := createAgent(t, store, "scoped")

	code, err := pairingSvc.GetOrCreate(ctx, agent.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := router.Route(ctx, SenderContext{
		ChannelType: ChannelTelegram, SenderID: "42", Text: code,
	}); err != nil {
		t.Fatalf("telegram pairing: %v", err)
	}

	// Same raw sender id on the gateway channel is a stranger.
	result, err := router.Route(ctx, SenderContext{
		ChannelType: ChannelGateway, SenderID: "42", Text: "hello",
	})
	if err != nil {
		t.Fatalf("gateway route: %v", err)
	}
	if result.Type != RouteUnknownSender {
		t.Fatalf("Type = %q, want unknown_sender", result.Type)
	}
}
