package handler

import (
	"net/http"

	"github.com/agentflow/agentflow/internal/httputil"
	"github.com/agentflow/agentflow/internal/logging"
	"github.com/agentflow/agentflow/internal/pipeline"
	"github.com/agentflow/agentflow/internal/routing"
	"github.com/agentflow/agentflow/internal/svc"
	"github.com/agentflow/agentflow/internal/types"
)

// GatewayWebhookHandler receives messages relayed by an external channel
// gateway. Authenticated deliveries are always ACKed 200; processing
// failures surface as a generic reply text, not a transport error.
func GatewayWebhookHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.GatewayMessageRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if req.SenderID == "" || req.Text == "" {
			httputil.BadRequest(w, "senderId and text are required")
			return
		}

		resp, err := svcCtx.Pipeline.Handle(r.Context(), pipeline.Request{
			Sender: routing.SenderContext{
				ChannelType: routing.ChannelGateway,
				SenderID:    req.SenderID,
				Text:        req.Text,
			},
		})
		if err != nil {
			logging.Errorf("gateway: pipeline for sender %s: %v", req.SenderID, err)
			httputil.OkJSON(w, &types.GatewayMessageResponse{
				Reply: "Sorry, something went wrong processing that message. Please try again.",
			})
			return
		}

		httputil.OkJSON(w, &types.GatewayMessageResponse{Reply: resp.Reply})
	}
}
