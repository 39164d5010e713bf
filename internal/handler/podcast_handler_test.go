package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/adhyayan/internal/tts"
)

// --- モック定義 ---

type mockPodcastService struct {
	fromMindMapFn func(ctx context.Context, userID, mindmapID string) (*tts.Audio, error)
	fromTopicFn   func(ctx context.Context, topic, content string) (*tts.Audio, error)
}

func (m *mockPodcastService) GenerateFromMindMap(ctx context.Context, userID, mindmapID string) (*tts.Audio, error) {
	if m.fromMindMapFn != nil {
		return m.fromMindMapFn(ctx, userID, mindmapID)
	}
	return nil, nil
}

func (m *mockPodcastService) GenerateFromTopic(ctx context.Context, topic, content string) (*tts.Audio, error) {
	if m.fromTopicFn != nil {
		return m.fromTopicFn(ctx, topic, content)
	}
	return nil, nil
}

var _ PodcastServiceInterface = (*mockPodcastService)(nil)

// --- テスト ---

func TestPodcastGenerate_FromMindMap_ReturnsAudioBytes(t *testing.T) {
	svc := &mockPodcastService{
		fromMindMapFn: func(ctx context.Context, userID, mindmapID string) (*tts.Audio, error) {
			if userID != "user-1" || mindmapID != "mm-1" {
				t.Errorf("userID = %q, mindmapID = %q", userID, mindmapID)
			}
			return &tts.Audio{Data: []byte("audio-bytes"), ContentType: "audio/mpeg"}, nil
		},
	}
	h := NewPodcastHandler(svc)

	req := authedRequest(http.MethodPost, "/api/podcast/generate", `{"mindmapId":"mm-1"}`)
	w := httptest.NewRecorder()

	h.Generate(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want %q", ct, "audio/mpeg")
	}
	if w.Body.String() != "audio-bytes" {
		t.Errorf("body = %q, want raw audio bytes", w.Body.String())
	}
}

func TestPodcastGenerate_FromTopic_ReturnsAudioBytes(t *testing.T) {
	svc := &mockPodcastService{
		fromTopicFn: func(ctx context.Context, topic, content string) (*tts.Audio, error) {
			if topic != "数学" {
				t.Errorf("topic = %q, want 数学", topic)
			}
			return &tts.Audio{Data: []byte("topic-audio"), ContentType: "audio/mpeg"}, nil
		},
	}
	h := NewPodcastHandler(svc)

	req := authedRequest(http.MethodPost, "/api/podcast/generate", `{"topic":"数学","content":"代数"}`)
	w := httptest.NewRecorder()

	h.Generate(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if w.Body.String() != "topic-audio" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestPodcastGenerate_MindMapNotFound_Returns404(t *testing.T) {
	// サービスはnil,nilで「見つからない」を表す
	h := NewPodcastHandler(&mockPodcastService{})

	req := authedRequest(http.MethodPost, "/api/podcast/generate", `{"mindmapId":"missing"}`)
	w := httptest.NewRecorder()

	h.Generate(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestPodcastGenerate_MissingBothInputs_Returns400(t *testing.T) {
	h := NewPodcastHandler(&mockPodcastService{})

	req := authedRequest(http.MethodPost, "/api/podcast/generate", `{}`)
	w := httptest.NewRecorder()

	h.Generate(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestPodcastGenerate_SynthesisFailure_Returns500AudioFailed(t *testing.T) {
	svc := &mockPodcastService{
		fromTopicFn: func(ctx context.Context, topic, content string) (*tts.Audio, error) {
			return nil, errors.New("all TTS models failed")
		},
	}
	h := NewPodcastHandler(svc)

	req := authedRequest(http.MethodPost, "/api/podcast/generate", `{"topic":"数学"}`)
	w := httptest.NewRecorder()

	h.Generate(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}
