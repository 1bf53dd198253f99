// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/propfolio/internal/model"
)

// PropertyRepository は物件データの永続化インターフェース。
type PropertyRepository interface {
	// FindByID は指定IDの物件を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Property, error)

	// ListAll は全物件を作成日時の降順で返す。
	// フィルタリングはアプリケーション層のメモリ上で行うため、条件句は持たない。
	ListAll(ctx context.Context) ([]*model.Property, error)

	// Create は物件を作成する。
	Create(ctx context.Context, property *model.Property) error

	// Update は物件情報を上書き更新する。対象が存在しない場合はエラーを返す。
	Update(ctx context.Context, property *model.Property) error

	// Delete は指定IDの物件を削除する。
	// 関連するfavorite_propertiesはCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// UserRecordRepository はユーザーレコードの永続化インターフェース。
type UserRecordRepository interface {
	// ListByOwner は指定サブジェクトが所有するユーザーレコードを全件返す。
	// 不変条件上は高々1件だが、整合性検証のため複数件を返せる形にしている。
	ListByOwner(ctx context.Context, owner string) ([]*model.UserRecord, error)

	// Create はユーザーレコードを作成する。
	Create(ctx context.Context, record *model.UserRecord) error

	// DeleteByID は指定IDのユーザーレコードを削除する。
	// 関連するfavorite_propertiesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// FavoriteRepository はお気に入りジョインレコードの永続化インターフェース。
type FavoriteRepository interface {
	// ListByUser はユーザーの全お気に入りを作成日時の昇順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.FavoriteProperty, error)

	// ListByUserAndProperty は(ユーザー, 物件)の組に一致するジョインレコードを全件返す。
	// 不変条件上は高々1件だが、競合ウィンドウで生じた重複の自己修復のため複数件を返せる。
	ListByUserAndProperty(ctx context.Context, userID, propertyID string) ([]*model.FavoriteProperty, error)

	// Create はジョインレコードを作成する。
	Create(ctx context.Context, favorite *model.FavoriteProperty) error

	// DeleteByID は指定IDのジョインレコードを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteBySubject は指定サブジェクトの全セッションを削除する。
	DeleteBySubject(ctx context.Context, subject string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
