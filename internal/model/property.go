// Package model はドメインモデルを定義する。
package model

import "time"

// Property は売買物件を表す。
// Imagesはオブジェクトストレージ上のパスの順序付きリストで、
// 先頭要素がカバー画像として扱われる。
type Property struct {
	ID           string
	Status       PropertyStatus
	AddressLine1 string
	AddressLine2 string
	City         string
	Postcode     string
	Price        float64
	Bedrooms     int
	Bathrooms    int
	Description  string
	Images       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PropertyStatus は物件の掲載状態を表す。
type PropertyStatus string

const (
	// PropertyStatusDraft は下書き状態。一般公開前の物件。
	PropertyStatusDraft PropertyStatus = "draft"
	// PropertyStatusForSale は販売中状態。
	PropertyStatusForSale PropertyStatus = "for-sale"
	// PropertyStatusWithdrawn は掲載取り下げ状態。
	PropertyStatusWithdrawn PropertyStatus = "withdrawn"
	// PropertyStatusSold は成約済み状態。
	PropertyStatusSold PropertyStatus = "sold"
)

// PropertyStatusList は全ての掲載状態の一覧。フィルタのバリデーションに使用する。
var PropertyStatusList = []PropertyStatus{
	PropertyStatusDraft,
	PropertyStatusForSale,
	PropertyStatusWithdrawn,
	PropertyStatusSold,
}

// IsValidPropertyStatus は掲載状態が定義済みのものかどうかを判定する。
func IsValidPropertyStatus(s PropertyStatus) bool {
	for _, v := range PropertyStatusList {
		if s == v {
			return true
		}
	}
	return false
}

// PropertyDraft は物件の新規作成・更新の入力を表す。
// IDとImagesはサーバー側で採番・付与されるため含まない。
type PropertyDraft struct {
	Status       PropertyStatus
	AddressLine1 string
	AddressLine2 string
	City         string
	Postcode     string
	Price        float64
	Bedrooms     int
	Bathrooms    int
	Description  string
}
