package client

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// User はクライアント側で保持するユーザー情報のスナップショット。
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// TokenStore はセッショントークンとユーザースナップショットの永続化インターフェース。
//
// トークンとユーザーは常にペアで保存・削除される。片方だけが存在する状態は
// 不正であり、Loadはその場合ログアウト状態（空トークン・nilユーザー）を返す。
type TokenStore interface {
	// Load は保存済みのトークンとユーザーを返す。
	// 未保存の場合は空トークンとnilユーザーを返す（エラーにはしない）。
	Load() (token string, user *User, err error)
	// Save はトークンとユーザーをペアで保存する。
	Save(token string, user *User) error
	// Clear は保存済みのトークンとユーザーを両方削除する。
	Clear() error
}

// MemoryStore はメモリ上のTokenStore実装。テストや短命プロセス向け。
type MemoryStore struct {
	mu    sync.RWMutex
	token string
	user  *User
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load は保存済みのトークンとユーザーを返す。
func (s *MemoryStore) Load() (string, *User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// 片方だけ存在する状態はログアウト扱い
	if s.token == "" || s.user == nil {
		return "", nil, nil
	}
	u := *s.user
	return s.token, &u, nil
}

// Save はトークンとユーザーをペアで保存する。
func (s *MemoryStore) Save(token string, user *User) error {
	if token == "" || user == nil {
		return fmt.Errorf("token and user must be saved together")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.token = token
	s.user = &u
	return nil
}

// Clear は保存済みのトークンとユーザーを両方削除する。
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	return nil
}

// storedSession はFileStoreのファイルフォーマット。
type storedSession struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// FileStore はローカルファイルにセッションを永続化するTokenStore実装。
// ブラウザのローカルストレージに相当する、プロセスをまたいで残る保存先。
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore は指定パスに保存するFileStoreを生成する。
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load はファイルからトークンとユーザーを読み込む。
// ファイルが存在しない場合はログアウト状態を返す。
func (s *FileStore) Load() (string, *User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		// 壊れたファイルはログアウト状態として扱う
		return "", nil, nil
	}
	if stored.Token == "" || stored.User == nil {
		return "", nil, nil
	}
	return stored.Token, stored.User, nil
}

// Save はトークンとユーザーをペアでファイルに保存する。
func (s *FileStore) Save(token string, user *User) error {
	if token == "" || user == nil {
		return fmt.Errorf("token and user must be saved together")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(storedSession{Token: token, User: user})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Clear はセッションファイルを削除する。未存在の場合もエラーにしない。
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// インターフェース実装の確認
var (
	_ TokenStore = (*MemoryStore)(nil)
	_ TokenStore = (*FileStore)(nil)
)
