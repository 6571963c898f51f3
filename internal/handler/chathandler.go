package handler

import (
	"errors"
	"net/http"

	"github.com/agentflow/agentflow/internal/db"
	"github.com/agentflow/agentflow/internal/httputil"
	"github.com/agentflow/agentflow/internal/llm"
	"github.com/agentflow/agentflow/internal/logging"
	"github.com/agentflow/agentflow/internal/middleware"
	"github.com/agentflow/agentflow/internal/pipeline"
	"github.com/agentflow/agentflow/internal/routing"
	"github.com/agentflow/agentflow/internal/svc"
	"github.com/agentflow/agentflow/internal/types"
)

// ChatHandler serves the owner's web chat. The owner talks to their own
// agent directly; no pairing code is involved on this surface.
func ChatHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ChatRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if req.AgentID == "" || req.Message == "" {
			httputil.BadRequest(w, "agentId and message are required")
			return
		}

		userID := middleware.GetUserID(r.Context())
		agent, err := svcCtx.Store.GetAgent(r.Context(), req.AgentID)
		if err != nil || agent.UserID != userID {
			// Existence of other users' agents is not disclosed.
			httputil.NotFound(w, "agent not found")
			return
		}

		// The web surface keeps one binding per (user, agent); switching
		// agents rebinds the owner.
		senderID := routing.SenderID(routing.ChannelWeb, userID)
		binding, err := svcCtx.Store.GetActiveBinding(r.Context(), db.GetActiveBindingParams{
			ChannelType: routing.ChannelWeb, SenderID: senderID,
		})
		if err != nil || binding.AgentID != agent.ID {
			if _, err := svcCtx.Store.RebindSender(r.Context(), db.RebindSenderParams{
				ChannelType: routing.ChannelWeb,
				SenderID:    senderID,
				AgentID:     agent.ID,
				BindingType: db.BindingTypeWeb,
			}); err != nil {
				logging.Errorf("chat: rebind web sender: %v", err)
				httputil.InternalError(w, "failed to open chat session")
				return
			}
		}

		resp, err := svcCtx.Pipeline.Handle(r.Context(), pipeline.Request{
			Sender: routing.SenderContext{
				ChannelType: routing.ChannelWeb,
				SenderID:    userID,
				Text:        req.Message,
			},
			CallerAuthorized: true,
		})
		if err != nil {
			writeChatError(w, err)
			return
		}

		httputil.OkJSON(w, &types.ChatResponse{
			Reply:      resp.Reply,
			AgentID:    resp.AgentID,
			Model:      resp.UsedModel,
			Attempts:   resp.Attempts,
			TxExecuted: resp.TxExecuted,
		})
	}
}

// writeChatError maps pipeline failures to structured responses. Provider
// auth failures get an actionable hint instead of a bare 500.
func writeChatError(w http.ResponseWriter, err error) {
	var provErr *llm.ProviderError
	if errors.As(err, &provErr) && llm.IsAuthError(provErr) {
		httputil.ErrorWithHint(w, http.StatusBadGateway, provErr.Message,
			"check the API key configured for this agent's provider")
		return
	}
	var exhausted *llm.AllCandidatesFailedError
	if errors.As(err, &exhausted) {
		httputil.ErrorWithHint(w, http.StatusBadGateway,
			"all language model candidates failed",
			"the provider may be rate limiting; retry shortly")
		return
	}
	logging.Errorf("chat: pipeline: %v", err)
	httputil.InternalError(w, "failed to process message")
}
