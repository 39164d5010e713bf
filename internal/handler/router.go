package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/adhyayan/internal/metrics"
	"github.com/hitoshi/adhyayan/internal/middleware"
)

// HealthChecker はヘルスチェックが依存する死活確認のインターフェース。
// database.DBのPingContextがこれを満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はルーター構築に必要な依存をまとめる。
type RouterDeps struct {
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     middleware.TokenVerifier
	VerifyRecorder    middleware.VerifyFailureRecorder
	AuthService       AuthServiceInterface
	MindMapService    MindMapServiceInterface
	Importer          SyllabusImporter
	PodcastService    PodcastServiceInterface
	MetricsGatherer   prometheus.Gatherer
	Logger            *slog.Logger
}

// NewRouter はアプリケーション全体のルーティングを構築する。
//
// ミドルウェアの適用順: panic回復 → セキュリティヘッダー → リクエストログ → CORS。
// /api/auth/google以外の/api配下はBearerトークン認証とユーザー別レート制限が必要。
// 生成系エンドポイント（LLM/TTS呼び出し）には追加の厳しいレート制限がかかる。
func NewRouter(deps RouterDeps) http.Handler {
	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.AuthService)
	mindmapHandler := NewMindMapHandler(deps.MindMapService, deps.Importer)
	podcastHandler := NewPodcastHandler(deps.PodcastService)

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// 公開エンドポイント
	r.Get("/health", newHealthHandler(deps.HealthChecker))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	r.Post("/api/auth/google", authHandler.Google)

	// 認証必須エンドポイント
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, deps.VerifyRecorder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/auth/validate", authHandler.Validate)
		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/user/profile", userHandler.Profile)

		r.Post("/api/mindmaps", mindmapHandler.Save)
		r.Get("/api/mindmaps", mindmapHandler.List)
		r.Get("/api/mindmaps/{id}", mindmapHandler.Get)
		r.Delete("/api/mindmaps/{id}", mindmapHandler.Delete)

		// 生成系: 外部課金APIを叩くため追加のレート制限を適用
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.GenerationMiddleware())

			r.Post("/api/mindmaps/generate", mindmapHandler.Generate)
			r.Post("/api/mindmaps/import", mindmapHandler.Import)
			r.Post("/api/podcast/generate", podcastHandler.Generate)
		})
	})

	return r
}

// newHealthHandler はDBの死活確認を行うヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checker.PingContext(r.Context()); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
		})
	}
}
