package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/realty-ai/internal/model"
	"github.com/sells-group/realty-ai/internal/provider"
	"github.com/sells-group/realty-ai/internal/resilience"
)

type errorBody struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

// writeError maps a service error to its status. Upstream detail stays in
// the logs; clients only see the reason code.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr *model.RequestError
		cfgErr *model.ConfigError
		upErr  *provider.UpstreamError
	)
	switch {
	case errors.As(err, &reqErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request", Field: reqErr.Field, Reason: reqErr.Reason})
	case errors.As(err, &cfgErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "provider not configured", Field: cfgErr.Field, Reason: cfgErr.Reason})
	case errors.Is(err, resilience.ErrCircuitOpen):
		w.Header().Set("Retry-After", "30")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "provider temporarily unavailable"})
	case errors.As(err, &upErr):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "upstream provider error", Reason: string(upErr.Reason)})
	default:
		zap.L().Error("api: internal error",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
