package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/adhyayan/internal/middleware"
	"github.com/hitoshi/adhyayan/internal/model"
	"github.com/hitoshi/adhyayan/internal/security"
)

// MindMapServiceInterface はマインドマップハンドラーが必要とするサービスインターフェース。
type MindMapServiceInterface interface {
	// Generate は科目名とシラバスからマインドマップを生成する（永続化はしない）。
	Generate(ctx context.Context, userID, subject, syllabus string) (*model.MindMap, error)
	// Save はマインドマップを永続化する。
	Save(ctx context.Context, userID string, m *model.MindMap) (*model.MindMap, error)
	// List は指定ユーザーのマインドマップ一覧を返す。
	List(ctx context.Context, userID string) ([]*model.MindMap, error)
	// Get は指定IDのマインドマップを返す。見つからない場合はnil。
	Get(ctx context.Context, userID, id string) (*model.MindMap, error)
	// Delete は指定IDのマインドマップを削除する。
	Delete(ctx context.Context, userID, id string) (bool, error)
}

// SyllabusImporter はシラバスURLインポートのインターフェース。
type SyllabusImporter interface {
	FetchSyllabus(ctx context.Context, rawURL string) (string, error)
}

// MindMapHandler はマインドマップ管理のHTTPハンドラー。
type MindMapHandler struct {
	service  MindMapServiceInterface
	importer SyllabusImporter
}

// NewMindMapHandler はMindMapHandlerを生成する。
func NewMindMapHandler(service MindMapServiceInterface, importer SyllabusImporter) *MindMapHandler {
	return &MindMapHandler{
		service:  service,
		importer: importer,
	}
}

// generateRequest はマインドマップ生成リクエストのボディ。
type generateRequest struct {
	Subject  string `json:"subject"`
	Syllabus string `json:"syllabus"`
}

// importRequest はシラバスURLインポートリクエストのボディ。
type importRequest struct {
	Subject string `json:"subject"`
	URL     string `json:"url"`
}

// saveRequest はマインドマップ保存リクエストのボディ。
type saveRequest struct {
	MindMap *model.MindMap `json:"mindmap"`
}

// Generate は科目名とシラバスからマインドマップを生成する。
// POST /api/mindmaps/generate
func (h *MindMapHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailedError("ボディをJSONとして解釈できません"))
		return
	}
	if req.Subject == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailedError("subjectは必須です"))
		return
	}

	m, err := h.service.Generate(r.Context(), userID, req.Subject, req.Syllabus)
	if err != nil {
		slog.Error("mindmap generation failed",
			slog.String("uid", userID),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewGenerationFailedError())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"mindmap": m,
	})
}

// Import は公開URLからシラバスを取り込み、マインドマップを生成する。
// POST /api/mindmaps/import
func (h *MindMapHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailedError("ボディをJSONとして解釈できません"))
		return
	}
	if req.Subject == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailedError("subjectは必須です"))
		return
	}
	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	syllabus, err := h.importer.FetchSyllabus(r.Context(), req.URL)
	if err != nil {
		slog.Warn("syllabus import failed",
			slog.String("uid", userID),
			slog.String("url", req.URL),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusBadRequest, importError(err))
		return
	}

	m, err := h.service.Generate(r.Context(), userID, req.Subject, syllabus)
	if err != nil {
		slog.Error("mindmap generation failed",
			slog.String("uid", userID),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewGenerationFailedError())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"mindmap": m,
	})
}

// importError はインポート失敗の原因をAPIエラーに分類する。
func importError(err error) *model.APIError {
	switch {
	case errors.Is(err, security.ErrInvalidURL):
		return model.NewInvalidURLError(err.Error())
	case errors.Is(err, security.ErrBlockedURL):
		return model.NewSSRFBlockedError()
	default:
		return model.NewFetchFailedError(err.Error())
	}
}

// Save はマインドマップを保存する。
// POST /api/mindmaps
func (h *MindMapHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MindMap == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailedError("mindmapは必須です"))
		return
	}

	saved, err := h.service.Save(r.Context(), userID, req.MindMap)
	if err != nil {
		slog.Error("failed to save mindmap",
			slog.String("uid", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"id":      saved.ID,
	})
}

// List は認証済みユーザーのマインドマップ一覧を返す。
// GET /api/mindmaps
func (h *MindMapHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	maps, err := h.service.List(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list mindmaps",
			slog.String("uid", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	if maps == nil {
		maps = []*model.MindMap{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mindmaps": maps,
	})
}

// Get は指定IDのマインドマップを返す。
// GET /api/mindmaps/{id}
func (h *MindMapHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	id := chi.URLParam(r, "id")
	m, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		slog.Error("failed to get mindmap",
			slog.String("uid", userID),
			slog.String("mindmap_id", id),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	if m == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewMindMapNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mindmap": m,
	})
}

// Delete は指定IDのマインドマップを削除する。
// DELETE /api/mindmaps/{id}
func (h *MindMapHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	id := chi.URLParam(r, "id")
	deleted, err := h.service.Delete(r.Context(), userID, id)
	if err != nil {
		slog.Error("failed to delete mindmap",
			slog.String("uid", userID),
			slog.String("mindmap_id", id),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	if !deleted {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewMindMapNotFoundError(id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
