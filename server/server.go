// Package server exposes the webhook surface of the pipeline.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/finrelay/concierge"
)

type Server struct {
	options   Options
	concierge *concierge.Concierge
	router    *mux.Router
}

func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "concierge")
}

func (s *Server) Run() error {
	slog.Info("listening", "address", s.options.Address)
	return http.ListenAndServe(s.options.Address, s.Handler())
}

// handleIncoming receives the provider's form-encoded inbound-message
// webhook. The pipeline result is always reported with 200; delivery status
// distinguishes success from failure.
func (s *Server) handleIncoming(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")

	if len(from) == 0 || len(body) == 0 {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	result, err := s.concierge.HandleInboundMessage(r.Context(), from, body)
	if err != nil {
		slog.ErrorContext(r.Context(), "inbound message failed", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": result.Status,
		"window": result.Window.String(),
	})
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address    string            `json:"address"`
		TemplateId string            `json:"template_id"`
		Variables  map[string]string `json:"variables"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return
	}

	if len(req.Address) == 0 || len(req.TemplateId) == 0 {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	conversationId, err := s.concierge.InitiateOutboundNotification(r.Context(), req.Address, req.TemplateId, req.Variables)
	if err != nil {
		slog.ErrorContext(r.Context(), "notification failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send notification")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationId,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"error": detail})
}

func New(c *concierge.Concierge, opts ...Option) *Server {
	if c == nil {
		panic("concierge is required")
	}

	s := &Server{
		options:   NewOptions(opts...),
		concierge: c,
	}

	router := mux.NewRouter()
	router.HandleFunc("/webhook/incoming", s.handleIncoming).Methods(http.MethodPost)
	router.HandleFunc("/notifications", s.handleNotify).Methods(http.MethodPost)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.router = router

	return s
}
