package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"memory-engine/internal/domain/memory"
	"memory-engine/internal/domain/shared"
	recallengine "memory-engine/internal/engine/recall"
	"memory-engine/internal/infrastructure/observability"
	"memory-engine/internal/service"
	apperrors "memory-engine/pkg/errors"
)

// ToolHandler exposes the eight tool operations over HTTP. Auth/API-key
// minting is out of core scope (spec §1 Non-goals); the caller is
// expected to supply their own identity via X-User-ID until a real
// auth boundary is layered on top.
type ToolHandler struct {
	svc       *service.MemoryService
	collector *observability.Collector
}

func NewToolHandler(svc *service.MemoryService, collector *observability.Collector) *ToolHandler {
	return &ToolHandler{svc: svc, collector: collector}
}

func userIDFromRequest(r *http.Request) (shared.UserID, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return shared.UserID{}, apperrors.Validation("missing X-User-ID header")
	}
	return shared.NewUserID(raw)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.Validation("invalid request body: " + err.Error())
	}
	return nil
}

// Remember handles POST /api/v1/memories (the `remember` tool).
type rememberRequest struct {
	Content    string            `json:"content"`
	MemoryType string            `json:"memory_type"`
	Domain     string            `json:"domain"`
	Category   string            `json:"category"`
	Entities   []string          `json:"entities"`
	Importance int               `json:"importance"`
	Source     string            `json:"source"`
	SourceID   string            `json:"source_id"`
	Metadata   map[string]string `json:"metadata"`
}

func (h *ToolHandler) Remember(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req rememberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := h.svc.Remember(r.Context(), userID, service.RememberRequest{
		Content: req.Content, MemoryType: memory.Type(req.MemoryType), Domain: req.Domain,
		Category: req.Category, Entities: req.Entities, Importance: req.Importance,
		Source: memory.Source(req.Source), SourceID: req.SourceID, Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if h.collector != nil {
		h.collector.IncrementCounter("memories_created", nil)
	}
	writeJSON(w, http.StatusCreated, result)
}

// Recall handles GET /api/v1/memories/search (the `recall` tool).
func (h *ToolHandler) Recall(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	limit := atoiDefault(q.Get("limit"), 10)
	offset := atoiDefault(q.Get("offset"), 0)

	result, err := h.svc.Recall(r.Context(), userID, q.Get("query"), memory.ListFilter{
		Domain:     q.Get("domain"),
		MemoryType: memory.Type(q.Get("memory_type")),
	}, limit, offset, recallengine.DefaultOptions())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ConsolidateSession handles POST /api/v1/consolidations (the
// `consolidate_session` tool).
type consolidateRequest struct {
	SessionTranscript string `json:"session_transcript"`
	ConversationID    string `json:"conversation_id"`
}

func (h *ToolHandler) ConsolidateSession(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req consolidateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := h.svc.ConsolidateSession(r.Context(), userID, req.SessionTranscript, req.ConversationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RefineKnowledge handles POST /api/v1/memories/{memoryID}/refine (the
// `refine_knowledge` tool).
type refineRequest struct {
	NewContent string `json:"new_content"`
}

func (h *ToolHandler) RefineKnowledge(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	memoryID, err := shared.ParseMemoryID(chi.URLParam(r, "memoryID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req refineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	oldID, newID, err := h.svc.RefineKnowledge(r.Context(), userID, memoryID, req.NewContent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"old_memory_id": oldID, "new_memory_id": newID, "status": "superseded",
	})
}

// UpdateMemory handles PATCH /api/v1/memories/{memoryID} (the
// `update_memory` tool).
type updateMemoryRequest struct {
	NewStatus string `json:"new_status"`
}

func (h *ToolHandler) UpdateMemory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	memoryID, err := shared.ParseMemoryID(chi.URLParam(r, "memoryID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateMemoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, newStatus, err := h.svc.UpdateMemory(r.Context(), userID, memoryID, memory.Status(req.NewStatus))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"memory_id": id, "new_status": string(newStatus)})
}

// AnalyzeEvolution handles GET /api/v1/entities/{entity}/evolution (the
// `analyze_evolution` tool).
func (h *ToolHandler) AnalyzeEvolution(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	entity := chi.URLParam(r, "entity")
	result, err := h.svc.AnalyzeEvolution(r.Context(), userID, entity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ExportMemories handles GET /api/v1/memories/export (the
// `export_memories` tool).
func (h *ToolHandler) ExportMemories(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	format := service.ExportFormat(r.URL.Query().Get("format"))
	result, err := h.svc.ExportMemories(r.Context(), userID, format)
	if err != nil {
		writeError(w, err)
		return
	}
	if result.Format == service.ExportFormatCSV {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="memories.csv"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"format": result.Format, "count": result.Count, "data": json.RawMessage(result.Data),
		"export_date": result.ExportDate, "file_size_bytes": result.FileSizeBytes,
	})
}

// DeleteMemory handles DELETE /api/v1/memories/{memoryID} (the
// `delete_memory` tool). Deletion is soft unless the caller opts into
// a hard delete via ?hard=true.
func (h *ToolHandler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	memoryID, err := shared.ParseMemoryID(chi.URLParam(r, "memoryID"))
	if err != nil {
		writeError(w, err)
		return
	}
	hard := r.URL.Query().Get("hard") == "true"
	result, err := h.svc.DeleteMemory(r.Context(), userID, memoryID, hard)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.collector != nil {
		h.collector.IncrementCounter("memories_deleted", nil)
	}
	writeJSON(w, http.StatusOK, result)
}

func atoiDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}
