package core

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports backing-store liveness. Satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// healthCheckTimeout bounds the DB ping so a wedged pool cannot hang the
// health endpoint past the load balancer's own timeout.
const healthCheckTimeout = 2 * time.Second

// HealthHandler returns a liveness handler that pings the database.
// Healthy returns 200 {"status":"ok"}; a failed ping returns 503 so the
// instance is rotated out of service.
func HealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			JSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
			return
		}

		JSON(w, r, http.StatusOK, map[string]string{
			"status": "ok",
		})
	}
}
