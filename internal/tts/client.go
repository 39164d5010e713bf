// Package tts はElevenLabs互換の音声合成APIクライアントを提供する。
// LLMクライアントと同様、モデルのフォールバックリストを先頭から順に試行する。
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// MetricsRecorder はTTS呼び出しメトリクスのインターフェース。nil可。
type MetricsRecorder interface {
	RecordTTSRequest(model string, success bool)
	RecordTTSLatency(duration time.Duration)
}

// Client は音声合成APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
	voiceID    string
	models     []string
	metrics    MetricsRecorder
}

// NewClient はClientの新しいインスタンスを生成する。
// modelsは試行順のフォールバックリスト。metricsはnil可。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey, voiceID string, models []string, metrics MetricsRecorder) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     apiKey,
		voiceID:    voiceID,
		models:     models,
		metrics:    metrics,
	}
}

// Audio は合成結果の音声データ。
type Audio struct {
	Data        []byte
	ContentType string
	Model       string // 実際に使用されたモデル
}

// synthesizeRequest はtext-to-speechエンドポイントのリクエストボディ。
type synthesizeRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize はフォールバックリストのモデルを順に試行し、最初に成功した音声を返す。
// すべてのモデルで失敗した場合は最後のエラーを返す。
func (c *Client) Synthesize(ctx context.Context, text string) (*Audio, error) {
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	if len(c.models) == 0 {
		return nil, fmt.Errorf("no TTS models configured")
	}

	var lastErr error
	for _, model := range c.models {
		audio, err := c.synthesizeWithModel(ctx, model, text)
		if err != nil {
			lastErr = err
			c.logger.Warn("音声合成に失敗しました。次のモデルを試行します",
				slog.String("model", model),
				slog.String("error", err.Error()),
			)
			// コンテキストキャンセル時は後続モデルを試行しない
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		return audio, nil
	}

	return nil, fmt.Errorf("all TTS models failed: %w", lastErr)
}

// synthesizeWithModel は単一モデルで音声合成を呼び出す。
func (c *Client) synthesizeWithModel(ctx context.Context, model, text string) (*Audio, error) {
	start := time.Now()
	audio, err := c.doRequest(ctx, model, text)
	if c.metrics != nil {
		c.metrics.RecordTTSRequest(model, err == nil)
		c.metrics.RecordTTSLatency(time.Since(start))
	}
	return audio, err
}

func (c *Client) doRequest(ctx context.Context, model, text string) (*Audio, error) {
	body := synthesizeRequest{
		Text:    text,
		ModelID: model,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, c.voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("TTS APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("TTS APIがステータス %d を返しました: %s", resp.StatusCode, string(errBody))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("音声データの読み取りに失敗しました: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("TTS APIのレスポンスが空です")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	return &Audio{
		Data:        data,
		ContentType: contentType,
		Model:       model,
	}, nil
}
