package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quadfund/logger"
)

// RequestID tags every request with an identifier so ledger operations can be
// correlated across logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		logger.Logger.Debug("Request received",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}
