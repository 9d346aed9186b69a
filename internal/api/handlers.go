package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/realty-ai/internal/engine"
	"github.com/sells-group/realty-ai/internal/model"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	circuits := map[string]string{}
	for name, st := range s.engine.CircuitStates() {
		circuits[name] = st.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "circuits": circuits})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

func limitParam(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

func (s *Server) handleValuate(w http.ResponseWriter, r *http.Request) {
	var req model.ValuationRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.Valuate(r.Context(), tenantFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListValuations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.engine.ValuationHistory(r.Context(), tenantFrom(r.Context()), limitParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleScoreLead(w http.ResponseWriter, r *http.Request) {
	var in engine.LeadInput
	if !decode(w, r, &in) {
		return
	}
	res, err := s.engine.ScoreLead(r.Context(), tenantFrom(r.Context()), in.LeadID, in.LeadScoringRequest)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListLeadScores(w http.ResponseWriter, r *http.Request) {
	recs, err := s.engine.LeadHistory(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "leadID"), limitParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

type settingsBody struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
	Model    string `json:"model,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsBody
	if !decode(w, r, &body) {
		return
	}
	settings := &model.TenantSettings{
		TenantID: tenantFrom(r.Context()),
		Provider: model.ProviderKind(body.Provider),
		APIKey:   body.APIKey,
		Model:    body.Model,
		Endpoint: body.Endpoint,
	}
	if err := s.engine.SaveSettings(r.Context(), settings); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings.Redacted())
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.engine.Settings(r.Context(), tenantFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if settings == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no provider settings for tenant"})
		return
	}
	writeJSON(w, http.StatusOK, settings.Redacted())
}
