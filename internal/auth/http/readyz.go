package http

import (
	"net/http"
	"time"

	"github.com/nightporter/staffgate/internal/auth/store"
	"github.com/nightporter/staffgate/pkg/httpx"
	"github.com/nightporter/staffgate/pkg/jwtx"
	"github.com/nightporter/staffgate/pkg/oauthx"
)

// ReadyzHandler answers the readiness probe: database reachable, signing
// key loaded.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	signer jwtx.Signer,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &oauthx.HealthChecks{
			Database: "ok",
			Signer:   "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if err := signer.Validate(); err != nil {
			checks.Signer = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := oauthx.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
