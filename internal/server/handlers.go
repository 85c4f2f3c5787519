package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lexrag/lexrag/internal/auth"
	"github.com/lexrag/lexrag/internal/chatlog"
	"github.com/lexrag/lexrag/internal/generate"
	"github.com/lexrag/lexrag/internal/memory"
	"github.com/lexrag/lexrag/internal/retriever"
)

type queryRequest struct {
	Query       string `json:"query"`
	SessionID   string `json:"session_id,omitempty"`
	K           int    `json:"k,omitempty"`
	FilterKey   string `json:"filter_key,omitempty"`
	FilterValue string `json:"filter_value,omitempty"`
}

type queryResponse struct {
	Answer    string              `json:"answer"`
	Citations []generate.Citation `json:"citations"`
	Sources   []sourceChunk       `json:"sources"`
	Intent    string              `json:"intent"`
	SessionID string              `json:"session_id"`
	Model     string              `json:"model"`
	Fallback  bool                `json:"fallback,omitempty"`
}

type sourceChunk struct {
	ID      int     `json:"id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
	Section string  `json:"section,omitempty"`
	Page    int     `json:"page,omitempty"`
}

// handleQuery answers a legal question: process, retrieve, generate, and
// log the exchange.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx := r.Context()
	sessionID := auth.SessionFromContext(ctx)
	if sessionID == "" {
		sessionID = req.SessionID
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	processed := s.processor.Process(req.Query)

	var results []retriever.Result
	if req.FilterKey != "" {
		results = s.retriever.RetrieveFiltered(ctx, processed.Cleaned, req.FilterKey, req.FilterValue, req.K)
	} else {
		results = s.retriever.Retrieve(ctx, processed.Cleaned, req.K, nil)
	}

	history := s.memory.RecentHistory(sessionID, 10)
	s.memory.AddUserMessage(sessionID, req.Query)

	answer := s.generator.Answer(ctx, req.Query, results, history)

	s.memory.AddAssistantMessage(sessionID, answer.Text)
	if s.chatLog != nil {
		if err := s.chatLog.Record(ctx, sessionID, memory.RoleUser, req.Query); err != nil {
			s.logger.Error("recording user turn failed", "error", err)
		}
		if err := s.chatLog.Record(ctx, sessionID, memory.RoleAssistant, answer.Text); err != nil {
			s.logger.Error("recording assistant turn failed", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:    answer.Text,
		Citations: answer.Citations,
		Sources:   toSourceChunks(results),
		Intent:    string(processed.Intent),
		SessionID: sessionID,
		Model:     answer.Model,
		Fallback:  answer.Fallback,
	})
}

type searchResponse struct {
	Results []sourceChunk `json:"results"`
	Intent  string        `json:"intent"`
}

// handleSearch retrieves chunks without generation.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	processed := s.processor.Process(req.Query)

	var results []retriever.Result
	if req.FilterKey != "" {
		results = s.retriever.RetrieveFiltered(r.Context(), processed.Cleaned, req.FilterKey, req.FilterValue, req.K)
	} else {
		results = s.retriever.Retrieve(r.Context(), processed.Cleaned, req.K, nil)
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Results: toSourceChunks(results),
		Intent:  string(processed.Intent),
	})
}

// handleFeedback records a rating for a generated answer.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if s.chatLog == nil {
		writeError(w, http.StatusServiceUnavailable, "feedback storage not configured")
		return
	}

	var fb chatlog.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if fb.SessionID == "" {
		fb.SessionID = auth.SessionFromContext(r.Context())
	}

	id, err := s.chatLog.RecordFeedback(r.Context(), fb)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// handleHistory returns the durable chat history of a session.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.chatLog == nil {
		writeError(w, http.StatusServiceUnavailable, "chat log not configured")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	entries, err := s.chatLog.History(r.Context(), sessionID, 50)
	if err != nil {
		s.logger.Error("loading chat history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "loading history failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "messages": entries})
}

// handleSession issues a session bearer token.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		writeError(w, http.StatusServiceUnavailable, "session tokens not configured")
		return
	}

	token, sessionID, err := s.tokens.IssueToken("")
	if err != nil {
		s.logger.Error("issuing session token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "issuing token failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"token":      token,
		"session_id": sessionID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports ready once the index holds chunks.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	size := s.retriever.CorpusSize()
	if size == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "index empty", "chunks": 0})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "chunks": size})
}

func toSourceChunks(results []retriever.Result) []sourceChunk {
	chunks := make([]sourceChunk, len(results))
	for i, res := range results {
		chunks[i] = sourceChunk{
			ID:      res.Chunk.ID,
			Text:    res.Chunk.Text,
			Score:   res.Score,
			Section: res.Chunk.Metadata.Section,
			Page:    res.Chunk.Metadata.Page,
		}
	}
	return chunks
}
