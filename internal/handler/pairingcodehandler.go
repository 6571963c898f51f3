package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentflow/agentflow/internal/db"
	"github.com/agentflow/agentflow/internal/httputil"
	"github.com/agentflow/agentflow/internal/logging"
	"github.com/agentflow/agentflow/internal/middleware"
	"github.com/agentflow/agentflow/internal/pairing"
	"github.com/agentflow/agentflow/internal/svc"
	"github.com/agentflow/agentflow/internal/types"
)

// MintPairingCodeHandler returns the agent's live pairing code, generating
// one if none is live. Repeated calls before expiry return the same code.
func MintPairingCodeHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, ok := ownedAgent(w, r, svcCtx)
		if !ok {
			return
		}

		code, err := svcCtx.Pairing.GetOrCreate(r.Context(), agent.ID)
		if err != nil {
			if errors.Is(err, pairing.ErrInvalidState) {
				httputil.BadRequest(w, "agent must be active to issue a pairing code")
				return
			}
			logging.Errorf("pairing: mint for agent %s: %v", agent.ID, err)
			httputil.InternalError(w, "failed to issue pairing code")
			return
		}

		// Re-read for the stored expiry.
		fresh, err := svcCtx.Store.GetAgent(r.Context(), agent.ID)
		if err != nil {
			logging.Errorf("pairing: reload agent %s: %v", agent.ID, err)
			httputil.InternalError(w, "failed to issue pairing code")
			return
		}
		httputil.OkJSON(w, &types.PairingCodeResponse{
			Code:      code,
			ExpiresAt: fresh.PairingCodeExpiresAt.Int64,
		})
	}
}

// RevokePairingCodeHandler clears the agent's live pairing code. Existing
// bindings are untouched; only future pairing with the old code stops.
func RevokePairingCodeHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, ok := ownedAgent(w, r, svcCtx)
		if !ok {
			return
		}
		if err := svcCtx.Pairing.Revoke(r.Context(), agent.ID); err != nil {
			logging.Errorf("pairing: revoke for agent %s: %v", agent.ID, err)
			httputil.InternalError(w, "failed to revoke pairing code")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ownedAgent loads the agent from the URL and checks the caller owns it.
// Missing and foreign agents look identical to the caller.
func ownedAgent(w http.ResponseWriter, r *http.Request, svcCtx *svc.ServiceContext) (db.Agent, bool) {
	agentID := chi.URLParam(r, "agentID")
	userID := middleware.GetUserID(r.Context())

	agent, err := svcCtx.Store.GetAgent(r.Context(), agentID)
	if err != nil || agent.UserID != userID {
		httputil.NotFound(w, "agent not found")
		return db.Agent{}, false
	}
	return agent, true
}
