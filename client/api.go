package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// AuthResult はIDトークン交換の結果。
type AuthResult struct {
	Token string
	User  User
}

// MindMapNode はマインドマップのノード。
type MindMapNode struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Level    int            `json:"level"`
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
	Children []*MindMapNode `json:"children,omitempty"`
}

// MindMap はマインドマップ全体。
type MindMap struct {
	ID        string       `json:"id"`
	Subject   string       `json:"subject"`
	Syllabus  string       `json:"syllabus,omitempty"`
	Root      *MindMapNode `json:"root"`
	Source    string       `json:"source"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Audio はポッドキャスト生成結果の音声データ。
type Audio struct {
	Data        []byte
	ContentType string
}

// ExchangeIdentity はIDトークンと申告ユーザー情報をセッショントークンに交換する。
// POST /api/auth/google
func (g *Gateway) ExchangeIdentity(ctx context.Context, idToken string, user User) (*AuthResult, error) {
	var resp struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		User    User   `json:"user"`
	}
	req := map[string]any{
		"idToken": idToken,
		"user":    user,
	}
	if err := g.do(ctx, http.MethodPost, "/api/auth/google", req, &resp); err != nil {
		return nil, err
	}
	return &AuthResult{Token: resp.Token, User: resp.User}, nil
}

// Validate は現在のセッショントークンの有効性を確認する。
// GET /api/auth/validate
func (g *Gateway) Validate(ctx context.Context) (*User, error) {
	var resp struct {
		Success bool `json:"success"`
		User    User `json:"user"`
	}
	if err := g.do(ctx, http.MethodGet, "/api/auth/validate", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Logout はバックエンドのログアウトエンドポイントを呼び出す。
// POST /api/auth/logout
func (g *Gateway) Logout(ctx context.Context) error {
	return g.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Profile は認証済みユーザーのプロフィールを取得する。
// GET /api/user/profile
func (g *Gateway) Profile(ctx context.Context) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := g.do(ctx, http.MethodGet, "/api/user/profile", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// GenerateMindMap は科目名とシラバスからマインドマップを生成する。
// POST /api/mindmaps/generate
func (g *Gateway) GenerateMindMap(ctx context.Context, subject, syllabus string) (*MindMap, error) {
	var resp struct {
		Success bool     `json:"success"`
		MindMap *MindMap `json:"mindmap"`
	}
	req := map[string]string{
		"subject":  subject,
		"syllabus": syllabus,
	}
	if err := g.do(ctx, http.MethodPost, "/api/mindmaps/generate", req, &resp); err != nil {
		return nil, err
	}
	return resp.MindMap, nil
}

// ImportMindMap は公開URLのシラバスからマインドマップを生成する。
// POST /api/mindmaps/import
func (g *Gateway) ImportMindMap(ctx context.Context, subject, rawURL string) (*MindMap, error) {
	var resp struct {
		Success bool     `json:"success"`
		MindMap *MindMap `json:"mindmap"`
	}
	req := map[string]string{
		"subject": subject,
		"url":     rawURL,
	}
	if err := g.do(ctx, http.MethodPost, "/api/mindmaps/import", req, &resp); err != nil {
		return nil, err
	}
	return resp.MindMap, nil
}

// SaveMindMap はマインドマップを保存し、保存後のIDを返す。
// POST /api/mindmaps
func (g *Gateway) SaveMindMap(ctx context.Context, m *MindMap) (string, error) {
	var resp struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	req := map[string]any{
		"mindmap": m,
	}
	if err := g.do(ctx, http.MethodPost, "/api/mindmaps", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// ListMindMaps は保存済みマインドマップの一覧を取得する。
// GET /api/mindmaps
func (g *Gateway) ListMindMaps(ctx context.Context) ([]*MindMap, error) {
	var resp struct {
		MindMaps []*MindMap `json:"mindmaps"`
	}
	if err := g.do(ctx, http.MethodGet, "/api/mindmaps", nil, &resp); err != nil {
		return nil, err
	}
	return resp.MindMaps, nil
}

// GetMindMap は指定IDのマインドマップを取得する。
// GET /api/mindmaps/{id}
func (g *Gateway) GetMindMap(ctx context.Context, id string) (*MindMap, error) {
	var resp struct {
		MindMap *MindMap `json:"mindmap"`
	}
	if err := g.do(ctx, http.MethodGet, "/api/mindmaps/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.MindMap, nil
}

// DeleteMindMap は指定IDのマインドマップを削除する。
// DELETE /api/mindmaps/{id}
func (g *Gateway) DeleteMindMap(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/api/mindmaps/"+url.PathEscape(id), nil, nil)
}

// GeneratePodcast は保存済みマインドマップからポッドキャスト音声を生成する。
// POST /api/podcast/generate
func (g *Gateway) GeneratePodcast(ctx context.Context, mindmapID string) (*Audio, error) {
	req := map[string]string{
		"mindmapId": mindmapID,
	}
	data, contentType, err := g.doRaw(ctx, http.MethodPost, "/api/podcast/generate", req)
	if err != nil {
		return nil, err
	}
	return &Audio{Data: data, ContentType: contentType}, nil
}

// GeneratePodcastFromTopic はトピックと教材テキストからポッドキャスト音声を生成する。
// POST /api/podcast/generate
func (g *Gateway) GeneratePodcastFromTopic(ctx context.Context, topic, content string) (*Audio, error) {
	req := map[string]string{
		"topic":   topic,
		"content": content,
	}
	data, contentType, err := g.doRaw(ctx, http.MethodPost, "/api/podcast/generate", req)
	if err != nil {
		return nil, err
	}
	return &Audio{Data: data, ContentType: contentType}, nil
}
