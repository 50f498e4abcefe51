package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/faucetdb/licensed/internal/model"
)

// RateLimit limits requests per client IP to requestsPerMinute using a
// sliding window. A non-positive limit disables limiting.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return passthrough
	}
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// ValidateRateLimit is RateLimit for the client validation endpoint. It
// answers over the limit with the endpoint's own status/message object so
// deployed clients can show the message.
func ValidateRateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return passthrough
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(model.ValidateResponse{
				Status:  model.StatusError,
				Message: "Too many requests, try again later",
			})
		}),
	)
}

func passthrough(next http.Handler) http.Handler { return next }
