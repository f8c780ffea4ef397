package http

import (
	"net/http"
	"time"

	"github.com/nightporter/staffgate/pkg/httpx"
	"github.com/nightporter/staffgate/pkg/oauthx"
)

// LivezHandler answers the liveness probe. Always 200 while the process is
// up.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := oauthx.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		}
		httpx.WriteJSON(w, http.StatusOK, response)
	}
}
