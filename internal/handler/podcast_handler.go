package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/adhyayan/internal/middleware"
	"github.com/hitoshi/adhyayan/internal/model"
	"github.com/hitoshi/adhyayan/internal/tts"
)

// PodcastServiceInterface はポッドキャストハンドラーが必要とするサービスインターフェース。
type PodcastServiceInterface interface {
	// GenerateFromMindMap は保存済みマインドマップから音声を生成する。
	// マインドマップが見つからない場合はnilを返す。
	GenerateFromMindMap(ctx context.Context, userID, mindmapID string) (*tts.Audio, error)
	// GenerateFromTopic はトピックと教材テキストから音声を生成する。
	GenerateFromTopic(ctx context.Context, topic, content string) (*tts.Audio, error)
}

// PodcastHandler はポッドキャスト音声生成のHTTPハンドラー。
type PodcastHandler struct {
	service PodcastServiceInterface
}

// NewPodcastHandler はPodcastHandlerを生成する。
func NewPodcastHandler(service PodcastServiceInterface) *PodcastHandler {
	return &PodcastHandler{
		service: service,
	}
}

// podcastRequest はポッドキャスト生成リクエストのボディ。
// mindmapIdとtopicのどちらか一方を指定する。
type podcastRequest struct {
	MindMapID string `json:"mindmapId"`
	Topic     string `json:"topic"`
	Content   string `json:"content"`
}

// Generate はマインドマップまたはトピックからポッドキャスト音声を生成し、
// 音声バイト列をそのままレスポンスボディとして返す。
// POST /api/podcast/generate
func (h *PodcastHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req podcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailedError("ボディをJSONとして解釈できません"))
		return
	}
	if req.MindMapID == "" && req.Topic == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailedError("mindmapIdまたはtopicのどちらかは必須です"))
		return
	}

	var audio *tts.Audio
	if req.MindMapID != "" {
		audio, err = h.service.GenerateFromMindMap(r.Context(), userID, req.MindMapID)
		if err == nil && audio == nil {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewMindMapNotFoundError(req.MindMapID))
			return
		}
	} else {
		audio, err = h.service.GenerateFromTopic(r.Context(), req.Topic, req.Content)
	}
	if err != nil {
		slog.Error("podcast generation failed",
			slog.String("uid", userID),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewAudioFailedError())
		return
	}

	contentType := audio.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio.Data); err != nil {
		slog.Error("failed to write audio response", slog.String("error", err.Error()))
	}
}
