package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agentflow/agentflow/internal/httputil"
	"github.com/agentflow/agentflow/internal/logging"
	"github.com/agentflow/agentflow/internal/pipeline"
	"github.com/agentflow/agentflow/internal/routing"
	"github.com/agentflow/agentflow/internal/svc"
	"github.com/agentflow/agentflow/internal/types"
)

// TelegramWebhookHandler receives Telegram bot updates. Every delivery is
// ACKed 200 no matter what happens inside; a non-200 makes Telegram retry
// the same update aggressively.
func TelegramWebhookHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		botID := chi.URLParam(r, "botID")

		var update types.TelegramUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			logging.Warnf("telegram: malformed update for bot %s: %v", botID, err)
			w.WriteHeader(http.StatusOK)
			return
		}
		if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
			// Edits, stickers, joins and other non-text updates are ignored.
			w.WriteHeader(http.StatusOK)
			return
		}

		resp, err := svcCtx.Pipeline.Handle(r.Context(), pipeline.Request{
			Sender: routing.SenderContext{
				ChannelType: routing.ChannelTelegram,
				SenderID:    strconv.FormatInt(update.Message.From.ID, 10),
				Text:        update.Message.Text,
				BotID:       botID,
			},
		})
		if err != nil {
			logging.Errorf("telegram: pipeline for bot %s: %v", botID, err)
			w.WriteHeader(http.StatusOK)
			return
		}

		httputil.OkJSON(w, &types.TelegramWebhookReply{
			Method: "sendMessage",
			ChatID: update.Message.Chat.ID,
			Text:   resp.Reply,
		})
	}
}
