package handler

import (
	"net/http"

	"github.com/agentflow/agentflow/internal/httputil"
	"github.com/agentflow/agentflow/internal/logging"
	"github.com/agentflow/agentflow/internal/svc"
)

// CronTickHandler drives one scheduler pass. The endpoint is idempotent:
// a job that just ran is not due again until its schedule says so, so an
// external cron hitting this twice does no harm.
func CronTickHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svcCtx.Scheduler.Tick(r.Context())
		if err != nil {
			logging.Errorf("cron: tick: %v", err)
			httputil.InternalError(w, "tick failed")
			return
		}
		httputil.OkJSON(w, result)
	}
}
