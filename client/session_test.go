package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// --- モック定義 ---

// mockProvider はイベントを手動で発火できるIdentityProvider実装。
type mockProvider struct {
	mu        sync.Mutex
	handler   func(*IdentitySnapshot)
	cancelled bool
	signOuts  int
}

func (m *mockProvider) Subscribe(handler func(*IdentitySnapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cancelled = true
		m.handler = nil
	}
}

func (m *mockProvider) SignOut(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signOuts++
	return nil
}

// fire はアイデンティティイベントを配信する。購読解除後は何もしない。
func (m *mockProvider) fire(snapshot *IdentitySnapshot) {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()
	if handler != nil {
		handler(snapshot)
	}
}

type mockBackend struct {
	exchangeFn func(ctx context.Context, idToken string, user User) (*AuthResult, error)
	logoutFn   func(ctx context.Context) error
}

func (m *mockBackend) ExchangeIdentity(ctx context.Context, idToken string, user User) (*AuthResult, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, idToken, user)
	}
	return &AuthResult{Token: "issued-token", User: user}, nil
}

func (m *mockBackend) Logout(ctx context.Context) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx)
	}
	return nil
}

type mockNavigator struct {
	onEntry     bool
	toDashboard int
	forcedEntry int
}

func (m *mockNavigator) OnEntryPage() bool { return m.onEntry }
func (m *mockNavigator) GoToDashboard()    { m.toDashboard++ }
func (m *mockNavigator) ForceEntry()       { m.forcedEntry++ }

var _ IdentityProvider = (*mockProvider)(nil)
var _ Exchanger = (*mockBackend)(nil)
var _ Navigator = (*mockNavigator)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestSession(t *testing.T, store TokenStore, provider IdentityProvider, backend Exchanger, nav Navigator) *Session {
	t.Helper()
	s, err := NewSession(SessionConfig{
		Store:     store,
		Provider:  provider,
		Backend:   backend,
		Navigator: nav,
		Logger:    testLogger(),
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// --- テスト ---

func TestNewSession_NoCachedSession_StartsLoading(t *testing.T) {
	s := newTestSession(t, NewMemoryStore(), &mockProvider{}, &mockBackend{}, nil)

	if got := s.State().Kind; got != StateLoading {
		t.Errorf("state = %q, want %q", got, StateLoading)
	}
}

func TestNewSession_CachedSession_OptimisticallyAuthenticated(t *testing.T) {
	// ネットワーク呼び出しが完了する前にキャッシュだけで認証済みになる
	store := NewMemoryStore()
	store.Save("cached-token", &User{UID: "y"})

	backend := &mockBackend{
		exchangeFn: func(ctx context.Context, idToken string, user User) (*AuthResult, error) {
			t.Fatal("no network call should be needed for cached session")
			return nil, nil
		},
	}
	s := newTestSession(t, store, &mockProvider{}, backend, nil)

	state := s.State()
	if !state.IsAuthenticated() {
		t.Fatalf("state = %+v, want authenticated", state)
	}
	if state.User.UID != "y" {
		t.Errorf("uid = %q, want %q", state.User.UID, "y")
	}
}

func TestStore_OneKeyMissing_TreatedAsLoggedOut(t *testing.T) {
	// トークンだけ存在しユーザーが無い状態は不正であり、ログアウト扱いになる
	store := NewMemoryStore()
	store.token = "orphan-token"

	provider := &mockProvider{}
	s := newTestSession(t, store, provider, &mockBackend{}, nil)

	if s.State().IsAuthenticated() {
		t.Error("expected unauthenticated state for inconsistent store")
	}

	provider.fire(nil)
	if got := s.State().Kind; got != StateUnauthenticated {
		t.Errorf("state = %q, want %q", got, StateUnauthenticated)
	}
}

func TestFirstIdentityEvent_ExchangesAndAuthenticates(t *testing.T) {
	store := NewMemoryStore()
	backend := &mockBackend{
		exchangeFn: func(ctx context.Context, idToken string, user User) (*AuthResult, error) {
			if idToken != "id-token-x" {
				t.Errorf("idToken = %q", idToken)
			}
			return &AuthResult{Token: "session-token", User: user}, nil
		},
	}
	provider := &mockProvider{}
	s := newTestSession(t, store, provider, backend, nil)

	provider.fire(&IdentitySnapshot{IDToken: "id-token-x", User: User{UID: "x"}})

	state := s.State()
	if !state.IsAuthenticated() || state.User.UID != "x" {
		t.Fatalf("state = %+v, want authenticated uid=x", state)
	}

	token, user, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if token == "" || user == nil || user.UID != "x" {
		t.Errorf("store = (%q, %+v), want token and user for uid x", token, user)
	}
}

func TestFirstIdentityEvent_ExchangeFails_StaysUnauthenticated(t *testing.T) {
	backend := &mockBackend{
		exchangeFn: func(ctx context.Context, idToken string, user User) (*AuthResult, error) {
			return nil, errors.New("backend rejected assertion")
		},
	}
	provider := &mockProvider{}
	s := newTestSession(t, NewMemoryStore(), provider, backend, nil)

	// 自動経路の失敗はログのみで、状態は未認証のまま
	provider.fire(&IdentitySnapshot{IDToken: "tok", User: User{UID: "x"}})

	if got := s.State().Kind; got != StateUnauthenticated {
		t.Errorf("state = %q, want %q", got, StateUnauthenticated)
	}
}

func TestIdentityEvent_AfterCacheResolution_IsNoOp(t *testing.T) {
	store := NewMemoryStore()
	store.Save("cached-token", &User{UID: "y"})

	var exchanges int
	backend := &mockBackend{
		exchangeFn: func(ctx context.Context, idToken string, user User) (*AuthResult, error) {
			exchanges++
			return &AuthResult{Token: "t", User: user}, nil
		},
	}
	provider := &mockProvider{}
	s := newTestSession(t, store, provider, backend, nil)

	// キャッシュで解決済みのため、後続の非nilイベントは交換を起こさない
	provider.fire(&IdentitySnapshot{IDToken: "tok", User: User{UID: "y"}})

	if exchanges != 0 {
		t.Errorf("exchanges = %d, want 0", exchanges)
	}
	if !s.State().IsAuthenticated() {
		t.Error("expected state to remain authenticated")
	}
}

func TestNullIdentityEvent_AfterResolution_TearsDownSession(t *testing.T) {
	store := NewMemoryStore()
	store.Save("cached-token", &User{UID: "y"})

	provider := &mockProvider{}
	s := newTestSession(t, store, provider, &mockBackend{}, nil)

	// IDプロバイダーのセッションが帯域外で終了した
	provider.fire(nil)

	if got := s.State().Kind; got != StateUnauthenticated {
		t.Errorf("state = %q, want %q", got, StateUnauthenticated)
	}
	token, user, _ := store.Load()
	if token != "" || user != nil {
		t.Errorf("store = (%q, %+v), want cleared", token, user)
	}
}

func TestLoading_ResolvesExactlyOnce(t *testing.T) {
	var transitions []StateKind
	provider := &mockProvider{}
	s, err := NewSession(SessionConfig{
		Store:    NewMemoryStore(),
		Provider: provider,
		Backend:  &mockBackend{},
		Logger:   testLogger(),
		OnChange: func(state State) {
			transitions = append(transitions, state.Kind)
		},
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer s.Close()

	// 初回イベントでLoadingから脱出し、以降のイベントで戻らない
	provider.fire(nil)
	provider.fire(nil)
	provider.fire(nil)

	var loadingExits int
	prev := StateLoading
	for _, kind := range transitions {
		if prev == StateLoading && kind != StateLoading {
			loadingExits++
		}
		prev = kind
	}
	if loadingExits != 1 {
		t.Errorf("loading exits = %d, want exactly 1 (transitions: %v)", loadingExits, transitions)
	}
	if s.State().Kind != StateUnauthenticated {
		t.Errorf("state = %q, want %q", s.State().Kind, StateUnauthenticated)
	}
}

func TestLogin_Success_AuthenticatesAndNavigates(t *testing.T) {
	store := NewMemoryStore()
	nav := &mockNavigator{onEntry: true}
	provider := &mockProvider{}
	s := newTestSession(t, store, provider, &mockBackend{}, nav)

	err := s.Login(context.Background(), "id-token", User{UID: "x", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if !s.State().IsAuthenticated() {
		t.Error("expected authenticated state after login")
	}
	if nav.toDashboard != 1 {
		t.Errorf("dashboard navigations = %d, want 1", nav.toDashboard)
	}
}

func TestLogin_NotOnEntryPage_DoesNotNavigate(t *testing.T) {
	nav := &mockNavigator{onEntry: false}
	provider := &mockProvider{}
	s := newTestSession(t, NewMemoryStore(), provider, &mockBackend{}, nav)

	if err := s.Login(context.Background(), "id-token", User{UID: "x"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if nav.toDashboard != 0 {
		t.Errorf("dashboard navigations = %d, want 0", nav.toDashboard)
	}
}

func TestLogin_Failure_PropagatesErrorWithoutStateChange(t *testing.T) {
	backend := &mockBackend{
		exchangeFn: func(ctx context.Context, idToken string, user User) (*AuthResult, error) {
			return nil, errors.New("invalid assertion")
		},
	}
	provider := &mockProvider{}
	s := newTestSession(t, NewMemoryStore(), provider, backend, nil)
	provider.fire(nil)
	before := s.State()

	err := s.Login(context.Background(), "bad-token", User{UID: "x"})
	if err == nil {
		t.Fatal("expected error from failed login")
	}
	if s.State() != before {
		t.Errorf("state changed from %+v to %+v on failed login", before, s.State())
	}
}

func TestLogout_ClearsStoreAndSignsOutProvider(t *testing.T) {
	store := NewMemoryStore()
	store.Save("cached-token", &User{UID: "y"})

	provider := &mockProvider{}
	var backendLogouts int
	backend := &mockBackend{
		logoutFn: func(ctx context.Context) error {
			backendLogouts++
			return nil
		},
	}
	s := newTestSession(t, store, provider, backend, nil)

	s.Logout(context.Background())

	if got := s.State().Kind; got != StateUnauthenticated {
		t.Errorf("state = %q, want %q", got, StateUnauthenticated)
	}
	token, user, _ := store.Load()
	if token != "" || user != nil {
		t.Errorf("store = (%q, %+v), want cleared", token, user)
	}
	if backendLogouts != 1 {
		t.Errorf("backend logouts = %d, want 1", backendLogouts)
	}
	if provider.signOuts != 1 {
		t.Errorf("provider sign-outs = %d, want 1", provider.signOuts)
	}
}

func TestLogout_BackendFailure_StillTearsDownLocally(t *testing.T) {
	store := NewMemoryStore()
	store.Save("cached-token", &User{UID: "y"})

	backend := &mockBackend{
		logoutFn: func(ctx context.Context) error {
			return errors.New("backend unreachable")
		},
	}
	provider := &mockProvider{}
	s := newTestSession(t, store, provider, backend, nil)

	// バックエンド失敗はローカル破棄を妨げない
	s.Logout(context.Background())

	if got := s.State().Kind; got != StateUnauthenticated {
		t.Errorf("state = %q, want %q", got, StateUnauthenticated)
	}
	token, _, _ := store.Load()
	if token != "" {
		t.Error("expected store to be cleared despite backend failure")
	}
	if provider.signOuts != 1 {
		t.Errorf("provider sign-outs = %d, want 1", provider.signOuts)
	}
}

func TestLogout_WhenAlreadyUnauthenticated_IsIdempotent(t *testing.T) {
	provider := &mockProvider{}
	s := newTestSession(t, NewMemoryStore(), provider, &mockBackend{}, nil)
	provider.fire(nil)

	s.Logout(context.Background())
	s.Logout(context.Background())

	if got := s.State().Kind; got != StateUnauthenticated {
		t.Errorf("state = %q, want %q", got, StateUnauthenticated)
	}
}

func TestLogin_SupersededByLogout_DiscardsStaleResult(t *testing.T) {
	store := NewMemoryStore()
	provider := &mockProvider{}

	exchangeStarted := make(chan struct{})
	releaseExchange := make(chan struct{})
	backend := &mockBackend{
		exchangeFn: func(ctx context.Context, idToken string, user User) (*AuthResult, error) {
			close(exchangeStarted)
			<-releaseExchange
			return &AuthResult{Token: "stale-token", User: user}, nil
		},
	}
	s := newTestSession(t, store, provider, backend, nil)

	loginDone := make(chan error, 1)
	go func() {
		loginDone <- s.Login(context.Background(), "id-token", User{UID: "x"})
	}()

	// 交換が開始された後、完了前にログアウトして世代を進める
	<-exchangeStarted
	s.Logout(context.Background())
	close(releaseExchange)

	if err := <-loginDone; err == nil {
		t.Fatal("expected superseded login to report an error")
	}
	if s.State().IsAuthenticated() {
		t.Error("stale exchange result must not resurrect the session")
	}
	token, _, _ := store.Load()
	if token != "" {
		t.Errorf("store token = %q, want empty", token)
	}
}

func TestClose_CancelsSubscriptionAndIgnoresLateEvents(t *testing.T) {
	store := NewMemoryStore()
	provider := &mockProvider{}
	s := newTestSession(t, store, provider, &mockBackend{}, nil)

	s.Close()

	if !provider.cancelled {
		t.Error("expected subscription to be cancelled on Close")
	}
}
