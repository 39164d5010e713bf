package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// ErrServerUnreachable はレスポンスを一切得られなかったネットワーク障害を示す。
// アプリケーションレベルのエラーと区別され、「サーバーがダウンしている」と
// 「資格情報が不正」をユーザーが見分けられるようにする。
var ErrServerUnreachable = errors.New("server unreachable")

// APIError はバックエンドが返した統一フォーマットのエラーレスポンス。
type APIError struct {
	StatusCode int    // HTTPステータスコード
	Code       string // 機械可読なエラーコード
	Message    string // エラーメッセージ
	Category   string // カテゴリ
	Action     string // ユーザー向け対処方法
	Raw        string // 構造化パースに失敗した場合の生テキスト
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s (status %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Raw)
}

// Navigator はセッション状態の変化に伴う画面遷移のインターフェース。
type Navigator interface {
	// OnEntryPage は現在エントリーページ（ランディング）にいるかを返す。
	OnEntryPage() bool
	// GoToDashboard はダッシュボードへのクライアント内遷移を行う。
	GoToDashboard()
	// ForceEntry はエントリーページへの強制遷移（ハードリダイレクト相当）を行う。
	ForceEntry()
}

// NopNavigator は画面遷移を行わないNavigator実装。ヘッドレス用途向け。
type NopNavigator struct{}

func (NopNavigator) OnEntryPage() bool { return false }
func (NopNavigator) GoToDashboard()    {}
func (NopNavigator) ForceEntry()       {}

// Gateway はバックエンドAPIへの全リクエストをラップするHTTPゲートウェイ。
//
// TokenStoreにトークンがあれば全リクエストにBearerトークンを付与する。
// 401を受信した場合はフェイルクローズ方針に従い、TokenStoreを即座にクリアして
// エントリーページへの強制遷移を要求する。直前まで有効だったトークンでも、
// バックエンドからの認可拒否はローカルセッション全体を無効化する。
type Gateway struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	store      TokenStore
	navigator  Navigator
}

// NewGateway はGatewayを生成する。
// httpClientのタイムアウトは呼び出し側が設定する。navigatorはnil可。
// Bearerトークンと並行してCookieも送信するには、cookiejar.New等でジャーを
// 設定したhttpClientを渡すこと。ジャーの無いクライアントはCookieを送らない。
func NewGateway(httpClient *http.Client, logger *slog.Logger, baseURL string, store TokenStore, navigator Navigator) *Gateway {
	if navigator == nil {
		navigator = NopNavigator{}
	}
	return &Gateway{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		store:      store,
		navigator:  navigator,
	}
}

// do はJSONリクエストを送信し、成功時はoutにレスポンスをデコードする。
// bodyとoutはnil可。
func (g *Gateway) do(ctx context.Context, method, path string, body any, out any) error {
	respBody, _, err := g.doRaw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response body: %w", err)
		}
	}
	return nil
}

// doRaw はリクエストを送信し、成功時のレスポンスボディとContent-Typeを返す。
// 音声データなど非JSONレスポンスのエンドポイントで使用する。
func (g *Gateway) doRaw(ctx context.Context, method, path string, body any) ([]byte, string, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	// TokenStoreにトークンがあればBearerトークンを付与
	if token, _, err := g.store.Load(); err == nil && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		// レスポンスを得られなかった場合はアプリケーションエラーと区別する
		return nil, "", fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// フェイルクローズ: 認可拒否はローカルセッション全体を無効化する
		if err := g.store.Clear(); err != nil {
			g.logger.Error("failed to clear token store after 401", slog.String("error", err.Error()))
		}
		g.navigator.ForceEntry()
		return nil, "", parseAPIError(resp.StatusCode, respBody)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", parseAPIError(resp.StatusCode, respBody)
	}

	return respBody, resp.Header.Get("Content-Type"), nil
}

// parseAPIError はエラーレスポンスを統一フォーマットとしてパースする。
// 構造化データとして解釈できない場合は生テキストにフォールバックする。
func parseAPIError(statusCode int, body []byte) *APIError {
	var parsed struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Category string `json:"category"`
		Action   string `json:"action"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Code != "" {
		return &APIError{
			StatusCode: statusCode,
			Code:       parsed.Code,
			Message:    parsed.Message,
			Category:   parsed.Category,
			Action:     parsed.Action,
		}
	}
	return &APIError{
		StatusCode: statusCode,
		Raw:        strings.TrimSpace(string(body)),
	}
}
