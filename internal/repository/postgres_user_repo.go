package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/adhyayan/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// upsertUserQuery はgoogle_uidのUNIQUE制約を利用した原子的なupsert。
// 同一UIDの同時初回ログインでも重複レコードが発生しないことを保証する。
const upsertUserQuery = `
	INSERT INTO users (id, google_uid, email, name, photo_url, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $6)
	ON CONFLICT (google_uid) DO UPDATE SET
	  email = EXCLUDED.email,
	  name = EXCLUDED.name,
	  photo_url = EXCLUDED.photo_url,
	  updated_at = EXCLUDED.updated_at
	RETURNING id, google_uid, email, name, photo_url, created_at, updated_at`

// Upsert はGoogleUIDをキーにユーザーを作成または更新する。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now()
	id := user.ID
	if id == "" {
		id = uuid.New().String()
	}

	result := &model.User{}
	err := r.db.QueryRowContext(ctx, upsertUserQuery,
		id, user.GoogleUID, user.Email, user.Name, user.PhotoURL, now,
	).Scan(
		&result.ID, &result.GoogleUID, &result.Email,
		&result.Name, &result.PhotoURL, &result.CreatedAt, &result.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return result, nil
}

// FindByGoogleUID は指定GoogleUIDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByGoogleUID(ctx context.Context, googleUID string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, google_uid, email, name, photo_url, created_at, updated_at
		 FROM users WHERE google_uid = $1`,
		googleUID,
	).Scan(
		&user.ID, &user.GoogleUID, &user.Email,
		&user.Name, &user.PhotoURL, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by google UID: %w", err)
	}

	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
