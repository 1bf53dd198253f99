package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/propfolio/internal/model"
)

// PostgresUserRecordRepo はPostgreSQLを使用したユーザーレコードリポジトリ。
type PostgresUserRecordRepo struct {
	db *sql.DB
}

// NewPostgresUserRecordRepo はPostgresUserRecordRepoを生成する。
func NewPostgresUserRecordRepo(db *sql.DB) *PostgresUserRecordRepo {
	return &PostgresUserRecordRepo{db: db}
}

// ListByOwner は指定サブジェクトが所有するユーザーレコードを全件返す。
func (r *PostgresUserRecordRepo) ListByOwner(ctx context.Context, owner string) ([]*model.UserRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner, created_at FROM user_records WHERE owner = $1 ORDER BY created_at ASC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザーレコードの検索に失敗しました: %w", err)
	}
	defer rows.Close()

	var records []*model.UserRecord
	for rows.Next() {
		rec := &model.UserRecord{}
		if err := rows.Scan(&rec.ID, &rec.Owner, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("ユーザーレコード行の読み取りに失敗しました: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザーレコードの走査に失敗しました: %w", err)
	}
	return records, nil
}

// Create はユーザーレコードを作成する。
func (r *PostgresUserRecordRepo) Create(ctx context.Context, rec *model.UserRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_records (id, owner, created_at) VALUES ($1, $2, $3)`,
		rec.ID, rec.Owner, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザーレコードの作成に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのユーザーレコードを削除する。
// 関連するfavorite_propertiesはCASCADE削除される。
func (r *PostgresUserRecordRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_records WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("ユーザーレコードの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("ユーザーレコードが見つかりません: %s", id)
	}
	return nil
}

// compile-time interface check
var _ UserRecordRepository = (*PostgresUserRecordRepo)(nil)
