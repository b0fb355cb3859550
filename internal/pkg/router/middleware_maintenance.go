package router

import (
	"net/http"

	"github.com/samber/lo"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
)

// maintenanceAll blocks every route except the health probe.
const maintenanceAll = "*"

// middlewareMaintenance answers 503 for routes listed in
// app.maintenance.endpoints. The list is read per request so that a config
// file reload takes effect without a restart.
func middlewareMaintenance(cfg config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		if cfg == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := matchedRoutePath(r)
			blocked := cfg.GetArray("app.maintenance.endpoints")

			if lo.Contains(blocked, route) || (lo.Contains(blocked, maintenanceAll) && route != "/health") {
				writeJSON(w, errorResponse{Message: "service is under maintenance"}, http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
