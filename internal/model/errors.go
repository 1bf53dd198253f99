// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, property, storage, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodePropertyNotFound  = "PROPERTY_NOT_FOUND"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidStatus     = "INVALID_STATUS"
	ErrCodeInvalidPriceRange = "INVALID_PRICE_RANGE"
	ErrCodeDataIntegrity     = "DATA_INTEGRITY"
	ErrCodeSSRFBlocked       = "SSRF_BLOCKED"
	ErrCodeStorageFailed     = "STORAGE_FAILED"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
)

// NewUnauthorizedError は認証必須エラーを生成する。
// 未認証のままお気に入り操作や管理操作を行った場合に返す。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
// 管理者以外が物件の作成・更新・削除を行った場合に返す。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewPropertyNotFoundError は物件未検出エラーを生成する。
func NewPropertyNotFoundError(propertyID string) *APIError {
	return &APIError{
		Code:     ErrCodePropertyNotFound,
		Message:  fmt.Sprintf("指定された物件が見つかりません: %s", propertyID),
		Category: "property",
		Action:   "物件IDを確認してください。",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidStatusError は無効な掲載状態エラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効な掲載状態です: %s", status),
		Category: "validation",
		Action:   "掲載状態には draft、for-sale、withdrawn、sold のいずれかを指定してください。",
	}
}

// NewInvalidPriceRangeError は無効な価格範囲エラーを生成する。
func NewInvalidPriceRangeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPriceRange,
		Message:  "価格の上限は下限以上である必要があります。",
		Category: "validation",
		Action:   "価格範囲を確認してください。",
	}
}

// NewDataIntegrityError はデータ整合性エラーを生成する。
// UserRecordの解決結果が想定外の件数になった場合など、
// リトライしても回復しない致命的な状態を表す。
func NewDataIntegrityError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeDataIntegrity,
		Message:  fmt.Sprintf("データ整合性エラーが発生しました: %s", detail),
		Category: "system",
		Action:   "サポートにお問い合わせください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトの画像URLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewStorageFailedError はオブジェクトストレージ操作の失敗エラーを生成する。
func NewStorageFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeStorageFailed,
		Message:  fmt.Sprintf("画像ストレージの操作に失敗しました: %s", reason),
		Category: "storage",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
