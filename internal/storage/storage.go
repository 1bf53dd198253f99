// Package storage は物件画像・プロフィール画像のオブジェクトストレージを提供する。
//
// オブジェクトのパスは <カテゴリ>/<所有者または物件ID>/<ファイル名> の形式で構成する。
// 物件画像は property-images/ 配下、プロフィール画像は profile-pictures/ 配下に置く。
package storage

import "context"

const (
	// propertyImagesCategory は物件画像のパスカテゴリ。
	propertyImagesCategory = "property-images"
	// profilePicturesCategory はプロフィール画像のパスカテゴリ。
	profilePicturesCategory = "profile-pictures"
)

// Store はオブジェクトストレージ操作のインターフェース。
// 本番ではGCS実装を使用し、テストではインメモリのフェイクに差し替える。
type Store interface {
	// Upload は指定パスにオブジェクトを書き込む。既存オブジェクトは上書きされる。
	Upload(ctx context.Context, path string, data []byte, contentType string) error

	// Remove は指定パスのオブジェクトを削除する。
	// 存在しないパスの削除はエラーを返す。
	Remove(ctx context.Context, path string) error

	// List は指定プレフィックス配下の全オブジェクトパスを返す。
	List(ctx context.Context, prefix string) ([]string, error)
}

// PropertyImagePath は物件画像のストレージパスを構成する。
func PropertyImagePath(propertyID, filename string) string {
	return propertyImagesCategory + "/" + propertyID + "/" + filename
}

// PropertyImagePrefix は物件の画像一覧取得・一括削除に使うプレフィックスを返す。
func PropertyImagePrefix(propertyID string) string {
	return propertyImagesCategory + "/" + propertyID + "/"
}

// PropertyImagesRoot は全物件画像の走査に使うルートプレフィックスを返す。
func PropertyImagesRoot() string {
	return propertyImagesCategory + "/"
}

// ProfilePicturePrefix はユーザーのプロフィール画像の一括削除に使うプレフィックスを返す。
func ProfilePicturePrefix(subject string) string {
	return profilePicturesCategory + "/" + subject + "/"
}
