package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// StateKind はセッションの状態種別を表すタグ。
type StateKind string

const (
	// StateLoading は起動直後の初期照合ウィンドウを示す。
	StateLoading StateKind = "loading"
	// StateAuthenticated は認証済みであることを示す。
	StateAuthenticated StateKind = "authenticated"
	// StateUnauthenticated は未認証であることを示す。
	StateUnauthenticated StateKind = "unauthenticated"
)

// State はセッション状態機械が公開する現在の認証状態。
// UserはStateAuthenticatedの場合のみ非nil。
type State struct {
	Kind StateKind
	User *User
}

// IsAuthenticated は認証済みかを返す。
func (s State) IsAuthenticated() bool {
	return s.Kind == StateAuthenticated && s.User != nil
}

// Exchanger はセッション状態機械が必要とするバックエンド呼び出しのインターフェース。
// Gatewayの部分集合として定義する。
type Exchanger interface {
	ExchangeIdentity(ctx context.Context, idToken string, user User) (*AuthResult, error)
	Logout(ctx context.Context) error
}

// Session はクライアント側のセッション状態機械。
//
// 3つの非同期シグナル源（キャッシュ済みセッション、IDプロバイダーのイベント、
// 明示的なLogin/Logout呼び出し）を単一の認証状態に集約する。状態の変更は
// すべてミューテックスで直列化され、イベントは配信順に処理される。
//
// グローバル状態は持たない。利用側はNewSessionで生成したインスタンスを
// 注入して使用する。
type Session struct {
	mu sync.Mutex

	store     TokenStore
	provider  IdentityProvider
	backend   Exchanger
	navigator Navigator
	logger    *slog.Logger

	state               State
	initialAuthResolved bool
	loadingResolved     bool

	// generation はセッションを無効化する操作（logout、帯域外サインアウト）の
	// たびに進む。ネットワーク呼び出し中に世代が進んだ場合、その呼び出しの
	// 結果は破棄される（古いレスポンスが新しい状態を上書きしない）。
	generation uint64

	cancelSub func()
	onChange  func(State)

	ctx    context.Context
	cancel context.CancelFunc
}

// SessionConfig はSession生成時の設定。
type SessionConfig struct {
	Store     TokenStore
	Provider  IdentityProvider
	Backend   Exchanger
	Navigator Navigator     // nil可
	Logger    *slog.Logger  // nil可（slog.Defaultを使用）
	OnChange  func(State)   // 状態変化の通知先。nil可。直列に呼び出される。
}

// NewSession はセッション状態機械を生成し、初期照合を開始する。
//
// TokenStoreを同期的に読み込み、トークンとユーザーが両方揃っていれば
// 楽観的にStateAuthenticatedへ遷移する（この時点ではバックエンド再検証は
// 行わない）。その後IDプロバイダーのイベント購読を開始する。
// 使い終わったらCloseを呼ぶこと。
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Store == nil || cfg.Provider == nil || cfg.Backend == nil {
		return nil, fmt.Errorf("store, provider, and backend are required")
	}
	if cfg.Navigator == nil {
		cfg.Navigator = NopNavigator{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		store:     cfg.Store,
		provider:  cfg.Provider,
		backend:   cfg.Backend,
		navigator: cfg.Navigator,
		logger:    cfg.Logger,
		state:     State{Kind: StateLoading},
		onChange:  cfg.OnChange,
		ctx:       ctx,
		cancel:    cancel,
	}

	// 1. キャッシュ済みセッションの同期読み込み（楽観的遷移）
	token, user, err := s.store.Load()
	if err != nil {
		s.logger.Warn("failed to load cached session", slog.String("error", err.Error()))
	}
	if token != "" && user != nil {
		s.mu.Lock()
		s.setStateLocked(State{Kind: StateAuthenticated, User: user})
		s.initialAuthResolved = true
		s.resolveLoadingLocked()
		s.mu.Unlock()
	}

	// 2. IDプロバイダーのイベント購読
	s.cancelSub = s.provider.Subscribe(s.handleIdentityEvent)

	return s, nil
}

// State は現在のセッション状態を返す。
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close はイベント購読を解除し、進行中の非同期処理をキャンセルする。
// Close後のイベントコールバックは状態を変更しない。
func (s *Session) Close() {
	if s.cancelSub != nil {
		s.cancelSub()
	}
	s.cancel()
}

// handleIdentityEvent はIDプロバイダーからのイベントを処理する。
func (s *Session) handleIdentityEvent(snapshot *IdentitySnapshot) {
	s.mu.Lock()

	if s.ctx.Err() != nil {
		// Close後のコールバックは無視する
		s.mu.Unlock()
		return
	}

	switch {
	case snapshot != nil && !s.initialAuthResolved:
		// 初回の非nilイベント: バックエンド交換を行う
		s.exchangeLocked(snapshot)

	case snapshot != nil && s.initialAuthResolved:
		// すでにキャッシュまたは先行イベントで解決済み

	case snapshot == nil && s.initialAuthResolved:
		// IDプロバイダーのセッションが帯域外で終了した
		s.teardownLocked()
		s.logger.Info("identity provider session ended, session torn down")

	default:
		// 未解決状態でのnilイベント: 破棄するものがない
	}

	s.resolveLoadingLocked()
	s.mu.Unlock()
}

// exchangeLocked はイベント駆動のバックエンド交換を行う。
// ネットワーク呼び出し中はロックを手放し、完了後に世代を照合して
// 古い結果の適用を防ぐ。呼び出し時点でs.muを保持していること。
func (s *Session) exchangeLocked(snapshot *IdentitySnapshot) {
	gen := s.generation
	s.mu.Unlock()

	result, err := s.backend.ExchangeIdentity(s.ctx, snapshot.IDToken, snapshot.User)

	s.mu.Lock()
	if s.generation != gen || s.ctx.Err() != nil {
		// 呼び出し中にlogout等で世代が進んだ。結果は破棄する。
		return
	}
	if err != nil {
		// 自動経路の失敗はログのみ。ユーザーは明示的に再サインインする。
		s.logger.Error("automatic identity exchange failed",
			slog.String("uid", snapshot.User.UID),
			slog.String("error", err.Error()),
		)
		s.setStateLocked(State{Kind: StateUnauthenticated})
		return
	}

	s.applyExchangeResultLocked(result)
}

// applyExchangeResultLocked は交換成功の結果を状態に反映する。
func (s *Session) applyExchangeResultLocked(result *AuthResult) {
	user := result.User
	if err := s.store.Save(result.Token, &user); err != nil {
		s.logger.Error("failed to persist session", slog.String("error", err.Error()))
	}
	s.setStateLocked(State{Kind: StateAuthenticated, User: &user})
	s.initialAuthResolved = true

	// エントリーページにいる場合のみダッシュボードへ遷移する
	if s.navigator.OnEntryPage() {
		s.navigator.GoToDashboard()
	}
}

// Login はエントリーページのサインイン操作から呼ばれる明示的ログイン。
//
// バックエンド交換に成功した場合はトークンとユーザーを保存して
// StateAuthenticatedへ遷移し、エントリーページにいればダッシュボードへ
// 遷移する。失敗した場合は状態を変更せずエラーを返す（呼び出し側が
// ユーザーに表示する）。
func (s *Session) Login(ctx context.Context, idToken string, user User) error {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	result, err := s.backend.ExchangeIdentity(ctx, idToken, user)
	if err != nil {
		return fmt.Errorf("identity exchange failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.ctx.Err() != nil {
		// 呼び出し中にセッションが無効化された。古い結果は適用しない。
		return fmt.Errorf("login superseded by a newer session change")
	}

	s.applyExchangeResultLocked(result)
	s.resolveLoadingLocked()
	return nil
}

// Logout は明示的ログアウトを行う。どの状態からでも呼び出せる。
//
// バックエンドへのログアウト通知はベストエフォートであり、失敗しても
// ローカルの破棄とIDプロバイダーのサインアウトは必ず実行される。
// すでにStateUnauthenticatedの場合も安全に呼び出せる。
func (s *Session) Logout(ctx context.Context) {
	// 1. バックエンド通知（失敗は無視）
	if err := s.backend.Logout(ctx); err != nil {
		s.logger.Warn("backend logout failed, proceeding with local teardown",
			slog.String("error", err.Error()),
		)
	}

	// 2. ローカル状態の破棄
	s.mu.Lock()
	s.teardownLocked()
	s.resolveLoadingLocked()
	s.mu.Unlock()

	// 3. IDプロバイダーのサインアウト（失敗は無視）
	if err := s.provider.SignOut(ctx); err != nil {
		s.logger.Warn("identity provider sign-out failed",
			slog.String("error", err.Error()),
		)
	}
}

// teardownLocked はローカルセッションを破棄し、世代を進める。
// 世代が進むことで進行中の交換結果は適用されなくなる。
func (s *Session) teardownLocked() {
	if err := s.store.Clear(); err != nil {
		s.logger.Error("failed to clear token store", slog.String("error", err.Error()))
	}
	s.setStateLocked(State{Kind: StateUnauthenticated})
	s.initialAuthResolved = false
	s.generation++
}

// resolveLoadingLocked はStateLoadingからの脱出を一度だけ行う。
func (s *Session) resolveLoadingLocked() {
	if s.loadingResolved {
		return
	}
	s.loadingResolved = true
	if s.state.Kind == StateLoading {
		s.setStateLocked(State{Kind: StateUnauthenticated})
	}
}

// setStateLocked は状態を更新し、変更があれば通知する。
func (s *Session) setStateLocked(next State) {
	if s.state.Kind == next.Kind && s.state.User == next.User {
		return
	}
	s.state = next
	if s.onChange != nil {
		s.onChange(next)
	}
}
