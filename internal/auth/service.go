// Package auth はIDトークン交換とセッショントークン発行のビジネスロジックを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/adhyayan/internal/model"
	"github.com/hitoshi/adhyayan/internal/repository"
	"github.com/hitoshi/adhyayan/internal/token"
)

// Result はIDトークン交換の結果。
// 発行されたセッショントークンと、永続化後（または申告値そのまま）のユーザーを含む。
type Result struct {
	Token string
	User  *model.User
}

// MetricsRecorder は認証サービスが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordIdentityExchange(newUser bool)
	RecordUpsertFailure()
}

// nopMetrics はメトリクス未設定時のフォールバック。
type nopMetrics struct{}

func (nopMetrics) RecordIdentityExchange(bool) {}
func (nopMetrics) RecordUpsertFailure()        {}

// Service は認証に関するビジネスロジックを提供する。
//
// IdPのIDトークン（identity assertion）はこの層では署名検証せず、申告された
// ユーザー情報をそのまま信頼する。検証フックを差し込めるよう交換処理は
// ExchangeIdentityに集約してある。
type Service struct {
	tokens   *token.Manager
	userRepo repository.UserRepository
	metrics  MetricsRecorder
}

// NewService はServiceを生成する。metricsはnil可。
func NewService(tokens *token.Manager, userRepo repository.UserRepository, metrics MetricsRecorder) *Service {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Service{
		tokens:   tokens,
		userRepo: userRepo,
		metrics:  metrics,
	}
}

// ExchangeIdentity はIDトークンと申告ユーザー情報を受け取り、セッショントークンを発行する。
//
// ユーザーレコードのupsertはベストエフォートであり、永続化に失敗しても交換は
// 中断しない（ステートレスセッションに縮退する）。idTokenまたはUIDが空の場合のみ
// エラーを返す。
func (s *Service) ExchangeIdentity(ctx context.Context, idToken string, claimed model.ClaimedIdentity) (*Result, error) {
	// 1. 必須フィールドの検証
	if idToken == "" {
		return nil, fmt.Errorf("identity token is required")
	}
	if claimed.UID == "" {
		return nil, fmt.Errorf("uid is required")
	}

	user := &model.User{
		GoogleUID: claimed.UID,
		Email:     claimed.Email,
		Name:      claimed.DisplayName,
		PhotoURL:  claimed.PhotoURL,
	}

	// 2. ユーザーレコードのupsert（ベストエフォート）
	// 初回ログインなら作成、既存ならname/photo_urlを更新する。
	existing, err := s.userRepo.FindByGoogleUID(ctx, claimed.UID)
	if err != nil {
		slog.Error("failed to look up user before upsert",
			slog.String("google_uid", claimed.UID),
			slog.String("error", err.Error()),
		)
	}

	persisted, err := s.userRepo.Upsert(ctx, user)
	if err != nil {
		// 永続化失敗は致命的ではない。トークン発行は申告値から続行する。
		s.metrics.RecordUpsertFailure()
		slog.Error("failed to upsert user, continuing with stateless session",
			slog.String("google_uid", claimed.UID),
			slog.String("error", err.Error()),
		)
	} else {
		user = persisted
	}

	newUser := existing == nil
	if newUser {
		slog.Info("new user signed in",
			slog.String("google_uid", claimed.UID),
			slog.String("email", claimed.Email),
		)
	} else {
		slog.Info("existing user signed in",
			slog.String("google_uid", claimed.UID),
		)
	}
	s.metrics.RecordIdentityExchange(newUser)

	// 3. セッショントークンの発行
	signed, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return &Result{
		Token: signed,
		User:  user,
	}, nil
}

// GetProfile は認証済みクレームに対応するユーザーを返す。
// レコードが永続化されていない場合（upsert失敗時の縮退）はクレームから復元する。
func (s *Service) GetProfile(ctx context.Context, claims *token.Claims) (*model.User, error) {
	user, err := s.userRepo.FindByGoogleUID(ctx, claims.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// ステートレス縮退: トークンのクレームをそのまま返す
		return &model.User{
			GoogleUID: claims.UID,
			Email:     claims.Email,
			Name:      claims.DisplayName,
		}, nil
	}
	return user, nil
}

// Logout はログアウトを処理する。
// セッショントークンは自己完結型でサーバー側に破棄すべき状態がないため、
// 認証を通過していれば常に成功する。
func (s *Service) Logout(ctx context.Context, claims *token.Claims) error {
	slog.Info("user logged out", slog.String("google_uid", claims.UID))
	return nil
}
