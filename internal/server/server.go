// internal/server/server.go
package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"support-triage/internal/common/logger"
	"support-triage/internal/models"
	"support-triage/internal/pipeline/orchestrator"
)

// Server is the inbound invocation boundary. It assigns missing identifiers,
// runs the workflow, and maps WorkflowResult to JSON. The workflow itself
// never errors, so the only non-200 responses are for malformed requests.
type Server struct {
	orc            *orchestrator.Orchestrator
	batchMaxActive int
	logger         logger.Logger
}

func New(orc *orchestrator.Orchestrator, batchMaxActive int, log logger.Logger) *Server {
	return &Server{
		orc:            orc,
		batchMaxActive: batchMaxActive,
		logger:         log.WithFields(map[string]interface{}{"component": "http-server"}),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/triage", s.handleTriage)
	mux.HandleFunc("POST /api/v1/triage/batch", s.handleTriageBatch)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

type triageRequest struct {
	ConversationID string           `json:"conversationId"`
	TenantID       string           `json:"tenantId"`
	Message        string           `json:"message"`
	PriorMessages  []models.Message `json:"priorMessages,omitempty"`
}

func (r *triageRequest) toTurn() *models.ConversationTurn {
	turn := &models.ConversationTurn{
		ConversationID: r.ConversationID,
		TenantID:       r.TenantID,
		UserQuery:      r.Message,
		PriorMessages:  r.PriorMessages,
	}
	// The core accepts but does not generate identifiers; assignment happens
	// here at the boundary.
	if turn.ConversationID == "" {
		turn.ConversationID = uuid.NewString()
	}
	return turn
}

func (s *Server) handleTriage(w http.ResponseWriter, r *http.Request) {
	var req triageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.TenantID == "" {
		s.writeError(w, http.StatusBadRequest, "tenantId is required")
		return
	}

	result := s.orc.ProcessTurn(r.Context(), req.toTurn())
	s.writeJSON(w, http.StatusOK, result)
}

type batchRequest struct {
	Turns []triageRequest `json:"turns"`
}

type batchResponse struct {
	Results []*models.WorkflowResult `json:"results"`
}

func (s *Server) handleTriageBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Turns) == 0 {
		s.writeError(w, http.StatusBadRequest, "turns is required")
		return
	}

	turns := make([]*models.ConversationTurn, len(req.Turns))
	for i := range req.Turns {
		if req.Turns[i].TenantID == "" {
			s.writeError(w, http.StatusBadRequest, "tenantId is required on every turn")
			return
		}
		turns[i] = req.Turns[i].toTurn()
	}

	results := s.orc.ProcessBatch(r.Context(), turns, s.batchMaxActive)
	s.writeJSON(w, http.StatusOK, batchResponse{Results: results})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
