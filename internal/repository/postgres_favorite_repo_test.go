package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/propfolio/internal/model"
)

// PostgresFavoriteRepoはFavoriteRepositoryインターフェースを満たすことを検証
func TestPostgresFavoriteRepo_ImplementsInterface(t *testing.T) {
	var _ FavoriteRepository = (*PostgresFavoriteRepo)(nil)
}

// PostgresUserRecordRepoはUserRecordRepositoryインターフェースを満たすことを検証
func TestPostgresUserRecordRepo_ImplementsInterface(t *testing.T) {
	var _ UserRecordRepository = (*PostgresUserRecordRepo)(nil)
}

// PostgresSessionRepoはSessionRepositoryインターフェースを満たすことを検証
func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

// FavoritePropertyモデルのフィールドが正しく構築されることを検証
func TestFavoritePropertyModel_Fields(t *testing.T) {
	now := time.Now()
	fav := &model.FavoriteProperty{
		ID:         "fav-id-1",
		UserID:     "user-id-1",
		PropertyID: "prop-id-1",
		CreatedAt:  now,
	}

	if fav.UserID != "user-id-1" {
		t.Errorf("fav.UserID = %q, want %q", fav.UserID, "user-id-1")
	}
	if fav.PropertyID != "prop-id-1" {
		t.Errorf("fav.PropertyID = %q, want %q", fav.PropertyID, "prop-id-1")
	}
}
