// Package server exposes the local HTTP API the UI talks to. Each handler is
// a thin adapter over one store or agent operation; results are wrapped in a
// uniform success/failure envelope and raw internal errors never cross the
// boundary.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/glimpsehq/glimpse/internal/agent"
	"github.com/glimpsehq/glimpse/internal/capture"
	"github.com/glimpsehq/glimpse/internal/store"
)

// Server holds the wired collaborators. A nil store means the database
// failed to open at startup; history endpoints then report failure envelopes
// while /ask keeps working unsaved.
type Server struct {
	store   *store.Store
	agent   *agent.Agent
	capture *capture.Service
	logger  *slog.Logger
}

func New(st *store.Store, ag *agent.Agent, capSvc *capture.Service, logger *slog.Logger) *Server {
	return &Server{store: st, agent: ag, capture: capSvc, logger: logger}
}

// Routes builds the request mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("POST /conversations", s.handleSaveConversation)
	mux.HandleFunc("GET /conversations", s.handleListConversations)
	mux.HandleFunc("GET /conversations/{id}", s.handleGetConversation)
	mux.HandleFunc("PATCH /conversations/{id}", s.handleUpdateConversation)
	mux.HandleFunc("DELETE /conversations/{id}", s.handleDeleteConversation)
	mux.HandleFunc("POST /messages", s.handleSaveMessage)
	return mux
}

func (s *Server) writeSuccess(w http.ResponseWriter, data map[string]any) {
	payload := map[string]any{"success": true}
	for k, v := range data {
		payload[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message}); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeStoreFailure maps store errors onto the failure envelope.
func (s *Server) writeStoreFailure(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeFailure(w, http.StatusNotFound, "conversation not found")
		return
	}
	s.logger.Error("store operation failed", "error", err)
	s.writeFailure(w, http.StatusInternalServerError, "storage operation failed")
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		s.writeFailure(w, http.StatusServiceUnavailable, "persistence unavailable")
		return false
	}
	return true
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt         string `json:"prompt"`
		Screenshot     string `json:"screenshot"`
		ConversationID string `json:"conversationId"`
		Capture        bool   `json:"capture"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		s.writeFailure(w, http.StatusBadRequest, "prompt is required")
		return
	}

	screenshot := req.Screenshot
	if req.Capture && screenshot == "" {
		shot, err := s.capture.Capture(r.Context())
		if errors.Is(err, capture.ErrCancelled) {
			s.writeFailure(w, http.StatusBadRequest, "capture cancelled")
			return
		}
		if err != nil {
			s.logger.Error("capture failed", "error", err)
			s.writeFailure(w, http.StatusInternalServerError, "capture failed")
			return
		}
		screenshot = shot
	}

	result, err := s.agent.Ask(r.Context(), agent.AskRequest{
		Prompt:         req.Prompt,
		Screenshot:     screenshot,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		s.logger.Error("ask failed", "error", err)
		s.writeFailure(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeSuccess(w, map[string]any{
		"answer":         result.Answer,
		"conversationId": result.ConversationID,
	})
}

func (s *Server) handleSaveConversation(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req struct {
		Screenshot string               `json:"screenshot"`
		Items      []store.ExchangeItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	conv, err := s.store.SaveCompleteConversation(r.Context(), req.Screenshot, req.Items)
	if err != nil {
		s.writeStoreFailure(w, err)
		return
	}
	s.writeSuccess(w, map[string]any{
		"conversationId": conv.ID,
		"createdAt":      conv.CreatedAt,
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	filters := store.ListFilters{
		Starred:  r.URL.Query().Get("starred") == "true",
		Archived: r.URL.Query().Get("archived") == "true",
	}
	conversations, err := s.store.ListConversations(r.Context(), limit, offset, filters)
	if err != nil {
		s.writeStoreFailure(w, err)
		return
	}
	s.writeSuccess(w, map[string]any{"conversations": conversations})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	conv, err := s.store.GetConversationWithMessages(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreFailure(w, err)
		return
	}
	s.writeSuccess(w, map[string]any{"conversation": conv})
}

func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req struct {
		Updates struct {
			Title    *string `json:"title"`
			Starred  *bool   `json:"starred"`
			Archived *bool   `json:"archived"`
		} `json:"updates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err := s.store.Update(r.Context(), r.PathValue("id"), store.UpdateConversation{
		Title:    req.Updates.Title,
		Starred:  req.Updates.Starred,
		Archived: req.Updates.Archived,
	})
	if err != nil {
		s.writeStoreFailure(w, err)
		return
	}
	s.writeSuccess(w, nil)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeStoreFailure(w, err)
		return
	}
	s.writeSuccess(w, nil)
}

func (s *Server) handleSaveMessage(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req struct {
		ConversationID string `json:"conversationId"`
		Role           string `json:"role"`
		Content        string `json:"content"`
		Error          bool   `json:"error"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role := store.Role(req.Role)
	if !role.Valid() {
		s.writeFailure(w, http.StatusBadRequest, "role must be user or assistant")
		return
	}
	msg, err := s.store.SaveMessage(r.Context(), req.ConversationID, role, req.Content, req.Error)
	if err != nil {
		s.writeStoreFailure(w, err)
		return
	}
	s.writeSuccess(w, map[string]any{
		"messageId": msg.ID,
		"timestamp": msg.Timestamp,
	})
}
