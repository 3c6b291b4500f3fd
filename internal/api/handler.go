// Package api exposes the HTTP surface: chat turns (streamed as NDJSON),
// feedback, memory writes, document indexing and health.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arialabs/aria/internal/orchestrator"
	"github.com/arialabs/aria/internal/rag"
	"github.com/arialabs/aria/internal/store"
	"github.com/arialabs/aria/internal/turn"
)

// TurnRunner executes one orchestrated turn against a state.
type TurnRunner interface {
	RunTurn(ctx context.Context, st *turn.State, emit orchestrator.EmitFunc) (*orchestrator.Result, error)
}

// MemoryService reads and writes long-term user memories.
type MemoryService interface {
	Add(ctx context.Context, userID, text string, weight float64) error
	Retrieve(ctx context.Context, userID, query string, k int) ([]string, error)
}

// DocumentService indexes and retrieves document chunks.
type DocumentService interface {
	AddChunks(ctx context.Context, userID, docID string, chunks []string) error
	Retrieve(ctx context.Context, userID, query string, k int) ([]string, error)
}

// QuotaGuard enforces the per-user daily request budget.
type QuotaGuard interface {
	IncrementAndCheck(ctx context.Context, userID string) (bool, error)
}

// Toolset is the external tool surface invoked during pre-fetch.
type Toolset interface {
	Weather(ctx context.Context, location string) (string, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// FeedbackSink persists user ratings of turns.
type FeedbackSink interface {
	AddFeedback(ctx context.Context, fb store.Feedback) error
}

// TurnLog persists the per-turn audit record.
type TurnLog interface {
	RecordTurn(ctx context.Context, rec store.TurnRecord) error
}

// Handler holds the HTTP dependencies. Optional fields (Memory, Documents,
// Tools, Quota, Feedback, Turns) may be nil; the corresponding behavior is
// then skipped or rejected.
type Handler struct {
	AppName   string
	Runner    TurnRunner
	Sessions  store.SessionStore
	Memory    MemoryService
	Documents DocumentService
	Quota     QuotaGuard
	Tools     Toolset
	Feedback  FeedbackSink
	Turns     TurnLog
	Logger    *zap.Logger

	// Chunker overrides document splitting; nil uses rag.SplitChunks.
	Chunker func(text string) []string
}

// Router builds the chi mux with middleware and all API routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/api/health", h.handleHealth)
	r.Post("/api/chat", h.handleChat)
	r.Post("/api/feedback", h.handleFeedback)
	r.Post("/api/memory", h.handleMemory)
	r.Post("/api/documents", h.handleDocuments)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": h.AppName})
}

// ChatRequest is one user utterance plus optional pre-fetch hints.
type ChatRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`

	// ImageContext is a textual description of an attached image, produced
	// by the caller's vision pipeline.
	ImageContext string `json:"image_context,omitempty"`

	// DocQuery requests document retrieval before the turn runs. Empty
	// means no document lookup.
	DocQuery string `json:"doc_query,omitempty"`

	// WeatherLocation requests a weather lookup for the named place.
	WeatherLocation string `json:"weather_location,omitempty"`

	// Lat/Lng request a reverse geocode of the caller's position.
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`

	// ToolResults carries results the caller fetched itself, e.g. Workspace
	// records pulled with the user's own credentials.
	ToolResults []string `json:"tool_results,omitempty"`
}

type chatFrame struct {
	Type       string           `json:"type"` // chunk | final | error
	Content    string           `json:"content,omitempty"`
	Intent     turn.Intent      `json:"intent,omitempty"`
	Plan       string           `json:"plan,omitempty"`
	Reflection *turn.Reflection `json:"reflection,omitempty"`
	TurnID     string           `json:"turn_id,omitempty"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "user_id and message are required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	ctx := r.Context()

	// The quota check runs before any state is touched so a rejected
	// request leaves no trace of the turn.
	if h.Quota != nil {
		allowed, err := h.Quota.IncrementAndCheck(ctx, req.UserID)
		if err != nil {
			// Budget backend trouble fails open; refusing every user
			// because Redis blinked is worse than a few free turns.
			h.Logger.Warn("quota check unavailable", zap.Error(err))
		} else if !allowed {
			writeError(w, http.StatusTooManyRequests, "daily request limit reached")
			return
		}
	}

	key := store.SessionKey{App: h.AppName, UserID: req.UserID, SessionID: req.SessionID}
	st, err := h.Sessions.Load(ctx, key)
	if err != nil {
		h.Logger.Error("load session", zap.String("key", key.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	if st == nil {
		st = &turn.State{}
	}
	st.Reset(req.Message)
	st.ImageContext = req.ImageContext

	h.prefetch(ctx, &req, st)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	writeFrame := func(f chatFrame) {
		if err := enc.Encode(f); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	res, err := h.Runner.RunTurn(ctx, st, func(ev orchestrator.Event) {
		if ev.Type == orchestrator.EventChunk {
			writeFrame(chatFrame{Type: "chunk", Content: ev.Content})
		}
	})
	if err != nil {
		h.Logger.Error("turn failed", zap.String("user", req.UserID), zap.Error(err))
		msg := "I ran into a problem, please try again."
		if errors.Is(err, context.Canceled) {
			return
		}
		// Headers are already out, so the error travels as a frame.
		writeFrame(chatFrame{Type: "error", Content: msg})
		return
	}

	turnID := uuid.NewString()
	if err := h.Sessions.Save(ctx, key, st); err != nil {
		h.Logger.Error("save session", zap.String("key", key.String()), zap.Error(err))
	}
	if h.Turns != nil {
		rec := store.TurnRecord{
			ID:         turnID,
			UserID:     req.UserID,
			SessionID:  req.SessionID,
			Intent:     res.Intent,
			Plan:       res.Plan.String(),
			Reflection: res.Reflection,
			Response:   res.Response,
			CreatedAt:  time.Now().UTC(),
		}
		if err := h.Turns.RecordTurn(ctx, rec); err != nil {
			h.Logger.Warn("record turn", zap.Error(err))
		}
	}

	writeFrame(chatFrame{
		Type:       "final",
		Content:    res.Response,
		Intent:     res.Intent,
		Plan:       res.Plan.String(),
		Reflection: res.Reflection,
		TurnID:     turnID,
	})
}

// prefetch gathers external context before the orchestrator runs: long-term
// memories, document snippets and tool results. Failures degrade to an empty
// slot; the turn still runs.
func (h *Handler) prefetch(ctx context.Context, req *ChatRequest, st *turn.State) {
	st.ToolResults = append(st.ToolResults, req.ToolResults...)
	if h.Memory != nil {
		mems, err := h.Memory.Retrieve(ctx, req.UserID, req.Message, 5)
		if err != nil {
			h.Logger.Warn("memory retrieval failed", zap.Error(err))
		} else {
			st.RetrievedMemory = mems
		}
	}
	if h.Documents != nil && req.DocQuery != "" {
		snippets, err := h.Documents.Retrieve(ctx, req.UserID, req.DocQuery, 5)
		if err != nil {
			h.Logger.Warn("document retrieval failed", zap.Error(err))
		} else {
			st.RAGSnippets = snippets
		}
	}
	if h.Tools == nil {
		return
	}
	if req.WeatherLocation != "" {
		out, err := h.Tools.Weather(ctx, req.WeatherLocation)
		if err != nil {
			h.Logger.Warn("weather tool failed", zap.Error(err))
		} else {
			st.ToolResults = append(st.ToolResults, out)
		}
	}
	if req.Lat != nil && req.Lng != nil {
		out, err := h.Tools.ReverseGeocode(ctx, *req.Lat, *req.Lng)
		if err != nil {
			h.Logger.Warn("reverse geocode failed", zap.Error(err))
		} else {
			st.ToolResults = append(st.ToolResults, out)
		}
	}
}

type feedbackRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
	Rating    int    `json:"rating"`
	Notes     string `json:"notes,omitempty"`
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if h.Feedback == nil {
		writeError(w, http.StatusNotImplemented, "feedback storage not configured")
		return
	}
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.TurnID == "" {
		writeError(w, http.StatusBadRequest, "user_id and turn_id are required")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}
	err := h.Feedback.AddFeedback(r.Context(), store.Feedback{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		TurnID:    req.TurnID,
		Rating:    req.Rating,
		Notes:     req.Notes,
	})
	if err != nil {
		h.Logger.Error("add feedback", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not record feedback")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

type memoryRequest struct {
	UserID string  `json:"user_id"`
	Text   string  `json:"text"`
	Weight float64 `json:"weight,omitempty"`
}

func (h *Handler) handleMemory(w http.ResponseWriter, r *http.Request) {
	if h.Memory == nil {
		writeError(w, http.StatusNotImplemented, "memory storage not configured")
		return
	}
	var req memoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "user_id and text are required")
		return
	}
	if req.Weight <= 0 {
		req.Weight = 1.0
	}
	if err := h.Memory.Add(r.Context(), req.UserID, req.Text, req.Weight); err != nil {
		h.Logger.Error("add memory", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not store memory")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "stored"})
}

type documentRequest struct {
	UserID string `json:"user_id"`
	DocID  string `json:"doc_id"`
	Text   string `json:"text"`
}

func (h *Handler) chunk(text string) []string {
	if h.Chunker != nil {
		return h.Chunker(text)
	}
	return rag.SplitChunks(text)
}

func (h *Handler) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if h.Documents == nil {
		writeError(w, http.StatusNotImplemented, "document storage not configured")
		return
	}
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.DocID == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "user_id, doc_id and text are required")
		return
	}
	chunks := h.chunk(req.Text)
	if err := h.Documents.AddChunks(r.Context(), req.UserID, req.DocID, chunks); err != nil {
		h.Logger.Error("index document", zap.String("doc", req.DocID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not index document")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "indexed",
		"chunks": len(chunks),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(w, `{"error":"encode response"}`)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
