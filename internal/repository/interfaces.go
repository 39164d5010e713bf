// Package repository はデータ永続化レイヤーを提供する。
package repository

import (
	"context"

	"github.com/hitoshi/adhyayan/internal/model"
)

// UserRepository はユーザーの永続化インターフェース。
type UserRepository interface {
	// Upsert はGoogleUIDをキーにユーザーを作成または更新する。
	// 既存レコードがある場合はemail/name/photo_url/updated_atのみ更新する。
	// INSERT ON CONFLICTによる原子的操作のため、同一UIDの同時初回ログインでも
	// レコードは1件に収束する。戻り値は作成・更新後のユーザー。
	Upsert(ctx context.Context, user *model.User) (*model.User, error)
	// FindByGoogleUID は指定GoogleUIDのユーザーを取得する。見つからない場合はnilを返す。
	FindByGoogleUID(ctx context.Context, googleUID string) (*model.User, error)
}

// MindMapRepository はマインドマップの永続化インターフェース。
type MindMapRepository interface {
	// Create はマインドマップを新規作成する。
	Create(ctx context.Context, m *model.MindMap) error
	// FindByID は指定IDかつ指定ユーザー所有のマインドマップを取得する。
	// 見つからない場合（他ユーザー所有を含む）はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.MindMap, error)
	// ListByUserID は指定ユーザーのマインドマップ一覧を作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.MindMap, error)
	// DeleteByID は指定IDかつ指定ユーザー所有のマインドマップを削除する。
	// 対象が存在しない場合はfalseを返す。
	DeleteByID(ctx context.Context, userID, id string) (bool, error)
}
