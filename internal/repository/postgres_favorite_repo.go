package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/propfolio/internal/model"
)

// PostgresFavoriteRepo はPostgreSQLを使用したお気に入りリポジトリ。
type PostgresFavoriteRepo struct {
	db *sql.DB
}

// NewPostgresFavoriteRepo はPostgresFavoriteRepoを生成する。
func NewPostgresFavoriteRepo(db *sql.DB) *PostgresFavoriteRepo {
	return &PostgresFavoriteRepo{db: db}
}

// ListByUser はユーザーの全お気に入りを作成日時の昇順で返す。
func (r *PostgresFavoriteRepo) ListByUser(ctx context.Context, userID string) ([]*model.FavoriteProperty, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, property_id, created_at
		 FROM favorite_properties WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanFavorites(rows)
}

// ListByUserAndProperty は(ユーザー, 物件)の組に一致するジョインレコードを全件返す。
func (r *PostgresFavoriteRepo) ListByUserAndProperty(ctx context.Context, userID, propertyID string) ([]*model.FavoriteProperty, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, property_id, created_at
		 FROM favorite_properties WHERE user_id = $1 AND property_id = $2`,
		userID, propertyID,
	)
	if err != nil {
		return nil, fmt.Errorf("お気に入りの検索に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanFavorites(rows)
}

// Create はジョインレコードを作成する。
func (r *PostgresFavoriteRepo) Create(ctx context.Context, fav *model.FavoriteProperty) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO favorite_properties (id, user_id, property_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		fav.ID, fav.UserID, fav.PropertyID, fav.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("お気に入りの作成に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのジョインレコードを削除する。
func (r *PostgresFavoriteRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM favorite_properties WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}
	return nil
}

// scanFavorites は結果セットからジョインレコードを読み取る。
func scanFavorites(rows *sql.Rows) ([]*model.FavoriteProperty, error) {
	var favorites []*model.FavoriteProperty
	for rows.Next() {
		fav := &model.FavoriteProperty{}
		if err := rows.Scan(&fav.ID, &fav.UserID, &fav.PropertyID, &fav.CreatedAt); err != nil {
			return nil, fmt.Errorf("お気に入り行の読み取りに失敗しました: %w", err)
		}
		favorites = append(favorites, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("お気に入りの走査に失敗しました: %w", err)
	}
	return favorites, nil
}

// compile-time interface check
var _ FavoriteRepository = (*PostgresFavoriteRepo)(nil)
