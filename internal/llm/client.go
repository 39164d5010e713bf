// Package llm はGroq互換のchat completions APIクライアントを提供する。
// モデルのフォールバックリストを先頭から順に試行し、最初に成功した
// レスポンスを返す（リニアなリスト反復であり、バックオフは行わない）。
package llm

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

// MetricsRecorder はLLM呼び出しメトリクスのインターフェース。nil可。
type MetricsRecorder interface {
	RecordLLMRequest(model string, success bool)
	RecordLLMLatency(duration time.Duration)
}

// Client はchat completions APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
	models     []string
	metrics    MetricsRecorder
}

// NewClient はClientの新しいインスタンスを生成する。
// modelsは試行順のフォールバックリスト。metricsはnil可。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey string, models []string, metrics MetricsRecorder) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     apiKey,
		models:     models,
		metrics:    metrics,
	}
}

// Request はチャット補完の入力。
type Request struct {
	System   string // systemメッセージ
	User     string // userメッセージ
	JSONMode bool   // trueの場合はJSONオブジェクトの出力を要求する
}

// chatRequest はchat completionsエンドポイントのリクエストボディ。
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse はchat completionsエンドポイントのレスポンスボディ。
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete はフォールバックリストのモデルを順に試行し、最初に成功した補完結果を返す。
// すべてのモデルで失敗した場合は最後のエラーを返す。
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if len(c.models) == 0 {
		return "", fmt.Errorf("no LLM models configured")
	}

	var lastErr error
	for _, model := range c.models {
		content, err := c.completeWithModel(ctx, model, req)
		if err != nil {
			lastErr = err
			c.logger.Warn("LLM呼び出しに失敗しました。次のモデルを試行します",
				slog.String("model", model),
				slog.String("error", err.Error()),
			)
			// コンテキストキャンセル時は後続モデルを試行しない
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		return content, nil
	}

	return "", fmt.Errorf("all LLM models failed: %w", lastErr)
}

// completeWithModel は単一モデルでchat completionsを呼び出す。
func (c *Client) completeWithModel(ctx context.Context, model string, req Request) (string, error) {
	start := time.Now()
	content, err := c.doRequest(ctx, model, req)
	if c.metrics != nil {
		c.metrics.RecordLLMRequest(model, err == nil)
		c.metrics.RecordLLMLatency(time.Since(start))
	}
	return content, err
}

func (c *Client) doRequest(ctx context.Context, model string, req Request) (string, error) {
	messages := []chatMessage{}
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.7,
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("LLM APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("LLM APIがステータス %d を返しました: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("LLM APIのレスポンスが空です")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// truncate はログ・エラーメッセージ用に文字列を切り詰める。
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
