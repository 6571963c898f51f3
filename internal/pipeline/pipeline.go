package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/agentflow/agentflow/internal/db"
	"github.com/agentflow/agentflow/internal/llm"
	"github.com/agentflow/agentflow/internal/logging"
	"github.com/agentflow/agentflow/internal/pricecache"
	"github.com/agentflow/agentflow/internal/prompt"
	"github.com/agentflow/agentflow/internal/routing"
	"github.com/agentflow/agentflow/internal/skills"
	"github.com/agentflow/agentflow/internal/skills/selfclaw"
	"github.com/agentflow/agentflow/internal/txexec"
)

// secondaryModels picks the model used for the one-shot cross-provider
// fallback, per provider.
var secondaryModels = map[string]string{
	"openrouter": "meta-llama/llama-3.3-70b-instruct:free",
	"openai":     "gpt-4o-mini",
	"anthropic":  "claude-3-5-haiku-latest",
}

// Request is one inbound message entering the pipeline.
type Request struct {
	Sender routing.SenderContext
	// CallerAuthorized marks surfaces that carry owner authority (web chat
	// by the agent owner, cron). Channel senders gain wallet authority only
	// through a direct binding.
	CallerAuthorized bool
}

// Response is the pipeline outcome returned to the transport layer.
type Response struct {
	Reply      string
	RouteType  routing.RouteType
	AgentID    string
	UsedModel  string
	Attempts   int
	TxExecuted int
}

// turnOutcome is the result of the LLM half of the pipeline (compose,
// fallback call, skills, transactions).
type turnOutcome struct {
	Reply      string
	UsedModel  string
	Attempts   int
	Usage      llm.Usage
	TxExecuted int
}

// Pipeline runs the full sequential flow: route, compose, LLM, skills,
// transactions, persist. Stages never run in parallel within one request;
// each stage's output feeds the next.
type Pipeline struct {
	store    *db.Store
	router   *routing.Router
	composer *prompt.Composer
	executor *llm.Executor
	registry *skills.Registry
	txExec   *txexec.Executor
	wallet   skills.WalletReader
	selfClaw *selfclaw.Client
	prices   pricecache.Cache

	historyWindow int
}

// Config wires pipeline collaborators.
type Config struct {
	Store         *db.Store
	Router        *routing.Router
	Composer      *prompt.Composer
	Executor      *llm.Executor
	Registry      *skills.Registry
	TxExec        *txexec.Executor
	Wallet        skills.WalletReader
	SelfClaw      *selfclaw.Client
	Prices        pricecache.Cache
	HistoryWindow int
}

// New assembles the pipeline.
func New(cfg Config) *Pipeline {
	window := cfg.HistoryWindow
	if window <= 0 {
		window = 20
	}
	return &Pipeline{
		store:         cfg.Store,
		router:        cfg.Router,
		composer:      cfg.Composer,
		executor:      cfg.Executor,
		registry:      cfg.Registry,
		txExec:        cfg.TxExec,
		wallet:        cfg.Wallet,
		selfClaw:      cfg.SelfClaw,
		prices:        cfg.Prices,
		historyWindow: window,
	}
}

// Handle routes and executes one inbound message end to end.
func (p *Pipeline) Handle(ctx context.Context, req Request) (*Response, error) {
	route, err := p.router.Route(ctx, req.Sender)
	if err != nil {
		return nil, err
	}

	// Pairing and unknown-sender turns resolve without touching the LLM.
	if route.SystemReply != "" {
		return &Response{Reply: route.SystemReply, RouteType: route.Type}, nil
	}

	agent := route.Agent
	if agent.Status != db.AgentStatusActive {
		return &Response{
			Reply:     "This agent is currently paused. Ask its owner to resume it.",
			RouteType: route.Type,
			AgentID:   agent.ID,
		}, nil
	}

	history, err := p.store.GetRecentSessionMessages(ctx, db.GetRecentSessionMessagesParams{
		BindingID: route.Binding.ID,
		Limit:     int64(p.historyWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: load history: %w", err)
	}

	canUseWallet := req.CallerAuthorized || route.Binding.BindingType == db.BindingTypeDirect

	outcome, err := p.runTurn(ctx, agent, history, req.Sender.Text, canUseWallet)
	if err != nil {
		return nil, err
	}

	// Persist both turns; the reply a sender saw must survive restarts.
	if _, err := p.store.AppendSessionMessage(ctx, db.AppendSessionMessageParams{
		BindingID: route.Binding.ID, Role: db.RoleUser, Content: req.Sender.Text,
	}); err != nil {
		return nil, fmt.Errorf("pipeline: persist user turn: %w", err)
	}
	if _, err := p.store.AppendSessionMessage(ctx, db.AppendSessionMessageParams{
		BindingID: route.Binding.ID, Role: db.RoleAssistant, Content: outcome.Reply,
	}); err != nil {
		return nil, fmt.Errorf("pipeline: persist assistant turn: %w", err)
	}
	if err := p.store.TouchBinding(ctx, route.Binding.ID, time.Now().Unix()); err != nil {
		logging.Warnf("pipeline: touch binding %s: %v", route.Binding.ID, err)
	}

	p.logActivity(ctx, agent.ID, "message", fmt.Sprintf(
		"channel=%s model=%s attempts=%d tokens=%d/%d tx=%d",
		req.Sender.ChannelType, outcome.UsedModel, outcome.Attempts,
		outcome.Usage.PromptTokens, outcome.Usage.CompletionTokens, outcome.TxExecuted))

	return &Response{
		Reply:      outcome.Reply,
		RouteType:  route.Type,
		AgentID:    agent.ID,
		UsedModel:  outcome.UsedModel,
		Attempts:   outcome.Attempts,
		TxExecuted: outcome.TxExecuted,
	}, nil
}

// ExecuteForAgent runs the LLM half of the pipeline directly against an
// agent, bypassing routing and session persistence. The scheduler enters
// here with a synthetic message, empty history, and full wallet authority.
func (p *Pipeline) ExecuteForAgent(ctx context.Context, agent *db.Agent, message string, canUseWallet bool) (string, error) {
	outcome, err := p.runTurn(ctx, agent, nil, message, canUseWallet)
	if err != nil {
		return "", err
	}
	return outcome.Reply, nil
}

// runTurn executes compose, LLM with fallback, skill execution, and
// transaction execution in order.
func (p *Pipeline) runTurn(ctx context.Context, agent *db.Agent, history []db.SessionMessage, text string, canUseWallet bool) (*turnOutcome, error) {
	messages := p.composer.Compose(agent, history, text, canUseWallet)

	primaryKey, err := p.store.GetAPIKey(ctx, db.GetAPIKeyParams{UserID: agent.UserID, Provider: agent.Provider})
	if err != nil {
		return nil, fmt.Errorf("pipeline: load api key: %w", err)
	}
	if primaryKey == "" {
		return nil, &llm.ProviderError{
			Status:  401,
			Code:    "missing_api_key",
			Message: fmt.Sprintf("no API key configured for provider %q", agent.Provider),
			Type:    "authentication_error",
		}
	}

	primary := llm.Candidate{Provider: agent.Provider, Model: agent.Model, APIKey: primaryKey}
	secondary := p.secondaryCandidate(ctx, agent)

	result, err := p.executor.ChatWithFallback(ctx, messages, primary, secondary)
	if err != nil {
		return nil, err
	}

	// Skills first, then financial tags over the skill-processed text.
	ec := &skills.ExecContext{
		Ctx:      ctx,
		Agent:    agent,
		SelfClaw: p.selfClaw,
		Prices:   p.prices,
	}
	if canUseWallet && agent.WalletIndex.Valid {
		ec.Wallet = p.wallet
		ec.WalletIndex = agent.WalletIndex.Int64
	}
	processed, _ := p.registry.Execute(ec, result.Content)

	var walletIndex *int64
	if canUseWallet && agent.WalletIndex.Valid {
		walletIndex = &agent.WalletIndex.Int64
	}
	txResult := p.txExec.Process(ctx, processed, walletIndex, "")

	return &turnOutcome{
		Reply:      txResult.Text,
		UsedModel:  result.UsedModel,
		Attempts:   result.Attempts,
		Usage:      result.Usage,
		TxExecuted: txResult.Executed,
	}, nil
}

// secondaryCandidate finds another configured provider for the agent owner,
// used for the one-shot cross-provider fallback on gateway errors.
func (p *Pipeline) secondaryCandidate(ctx context.Context, agent *db.Agent) *llm.Candidate {
	for provider, model := range secondaryModels {
		if provider == agent.Provider {
			continue
		}
		key, err := p.store.GetAPIKey(ctx, db.GetAPIKeyParams{UserID: agent.UserID, Provider: provider})
		if err != nil || key == "" {
			continue
		}
		return &llm.Candidate{Provider: provider, Model: model, APIKey: key}
	}
	return nil
}

func (p *Pipeline) logActivity(ctx context.Context, agentID, kind, detail string) {
	if err := p.store.AppendActivity(ctx, db.AppendActivityParams{
		AgentID: agentID, Kind: kind, Detail: detail,
	}); err != nil {
		logging.Warnf("pipeline: append activity for %s: %v", agentID, err)
	}
}
