// Package model はドメインモデルを定義する。
package model

import "time"

// UserRecord は認証済みアイデンティティに1:1で対応するアンカーレコードを表す。
// お気に入り等のユーザー単位のリレーションはこのレコードを参照する。
// Ownerには認証プロバイダーのサブジェクト識別子（"provider:sub"形式）が入る。
type UserRecord struct {
	ID        string
	Owner     string
	CreatedAt time.Time
}

// FavoriteProperty はユーザーと物件の多対多関係を表すジョインレコード。
// 不変条件: (UserID, PropertyID) の組につき高々1件。
// 作成前の存在チェックで担保するが、バックエンドに対してアトミックではないため
// 既知の競合ウィンドウがある。削除側は複数件を防御的に全削除して自己修復する。
type FavoriteProperty struct {
	ID         string
	UserID     string
	PropertyID string
	CreatedAt  time.Time
}
