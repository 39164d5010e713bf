package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/adhyayan/internal/model"
)

// PostgresMindMapRepo はPostgreSQLを使用したマインドマップリポジトリ。
// ノードツリー全体をJSONBカラムに格納する。
type PostgresMindMapRepo struct {
	db *sql.DB
}

// NewPostgresMindMapRepo はPostgresMindMapRepoを生成する。
func NewPostgresMindMapRepo(db *sql.DB) *PostgresMindMapRepo {
	return &PostgresMindMapRepo{db: db}
}

// user_idカラムには所有者のGoogle UID（トークンのuidクレーム）が入る。
// 取得・削除は常にid + user_idの両方で絞り込み、他ユーザー所有のIDは
// 存在しないものとして扱う。
const (
	insertMindMapQuery = `
	INSERT INTO mindmaps (id, user_id, subject, syllabus, root, source, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	findMindMapByIDQuery = `
	SELECT id, user_id, subject, syllabus, root, source, created_at, updated_at
	FROM mindmaps WHERE id = $1 AND user_id = $2`

	listMindMapsQuery = `
	SELECT id, user_id, subject, syllabus, root, source, created_at, updated_at
	FROM mindmaps WHERE user_id = $1 ORDER BY created_at DESC`

	deleteMindMapQuery = `
	DELETE FROM mindmaps WHERE id = $1 AND user_id = $2`
)

// Create はマインドマップを新規作成する。
func (r *PostgresMindMapRepo) Create(ctx context.Context, m *model.MindMap) error {
	rootJSON, err := json.Marshal(m.Root)
	if err != nil {
		return fmt.Errorf("failed to marshal mindmap root: %w", err)
	}

	_, err = r.db.ExecContext(ctx, insertMindMapQuery,
		m.ID, m.UserID, m.Subject, m.Syllabus, rootJSON, m.Source, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert mindmap: %w", err)
	}

	return nil
}

// FindByID は指定IDかつ指定ユーザー所有のマインドマップを取得する。
// 他ユーザー所有のIDは存在しないものとして扱い、nilを返す。
func (r *PostgresMindMapRepo) FindByID(ctx context.Context, userID, id string) (*model.MindMap, error) {
	m := &model.MindMap{}
	var rootJSON []byte

	err := r.db.QueryRowContext(ctx, findMindMapByIDQuery,
		id, userID,
	).Scan(&m.ID, &m.UserID, &m.Subject, &m.Syllabus, &rootJSON, &m.Source, &m.CreatedAt, &m.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find mindmap by ID: %w", err)
	}

	if err := json.Unmarshal(rootJSON, &m.Root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mindmap root: %w", err)
	}

	return m, nil
}

// ListByUserID は指定ユーザーのマインドマップ一覧を作成日時の降順で返す。
func (r *PostgresMindMapRepo) ListByUserID(ctx context.Context, userID string) ([]*model.MindMap, error) {
	rows, err := r.db.QueryContext(ctx, listMindMapsQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mindmaps: %w", err)
	}
	defer rows.Close()

	var maps []*model.MindMap
	for rows.Next() {
		m := &model.MindMap{}
		var rootJSON []byte
		if err := rows.Scan(&m.ID, &m.UserID, &m.Subject, &m.Syllabus, &rootJSON, &m.Source, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mindmap row: %w", err)
		}
		if err := json.Unmarshal(rootJSON, &m.Root); err != nil {
			return nil, fmt.Errorf("failed to unmarshal mindmap root: %w", err)
		}
		maps = append(maps, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mindmap rows: %w", err)
	}

	return maps, nil
}

// DeleteByID は指定IDかつ指定ユーザー所有のマインドマップを削除する。
// 対象が存在しない場合はfalseを返す。
func (r *PostgresMindMapRepo) DeleteByID(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, deleteMindMapQuery, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete mindmap: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// compile-time interface check
var _ MindMapRepository = (*PostgresMindMapRepo)(nil)
