// Package search は物件一覧に対するメモリ上のフィルタリングとページ分割を提供する。
//
// フィルタリングはSQLに押し込まず、全件リストに対して純粋関数で行う。
// 条件の各リストは空のとき全件一致として扱う。
package search

import (
	"github.com/hitoshi/propfolio/internal/model"
)

// BedroomBuckets は寝室数のバケットラベル。
// 実数はバケットインデックス min(count, len-1) で末尾の「>3」に畳み込まれる。
var BedroomBuckets = []string{"0", "1", "2", "3", ">3"}

// BathroomBuckets は浴室数のバケットラベル。寝室と同じ畳み込みを行う。
var BathroomBuckets = []string{"0", "1", "2", "3", ">3"}

// Criteria は物件一覧の絞り込み条件。
// 各フィールドは空（またはnil）のとき制約なしとして扱う。
type Criteria struct {
	// Statuses は一致対象のステータス。空なら全ステータスが一致する。
	Statuses []model.PropertyStatus
	// Bedrooms は一致対象の寝室バケットラベル。空なら全件一致。
	Bedrooms []string
	// Bathrooms は一致対象の浴室バケットラベル。空なら全件一致。
	Bathrooms []string
	// MinPrice は価格下限。nilなら下限なし。
	MinPrice *float64
	// MaxPrice は価格上限。nilなら上限なし。
	MaxPrice *float64
}

// BucketFor は個数をバケットラベルに変換する。
// バケット数を超える個数は末尾のバケットに畳み込まれる。
func BucketFor(count int, buckets []string) string {
	if count < 0 {
		count = 0
	}
	index := count
	if index > len(buckets)-1 {
		index = len(buckets) - 1
	}
	return buckets[index]
}

// MatchesFilter は物件が条件に一致するかを判定する。
// 全条件の論理積で判定し、空の条件リストは全件一致として扱う。
func MatchesFilter(p *model.Property, c Criteria) bool {
	if !matchesStatus(p, c.Statuses) {
		return false
	}
	if !matchesBucket(p.Bedrooms, c.Bedrooms, BedroomBuckets) {
		return false
	}
	if !matchesBucket(p.Bathrooms, c.Bathrooms, BathroomBuckets) {
		return false
	}
	return matchesPrice(p.Price, c.MinPrice, c.MaxPrice)
}

// Filter は条件に一致する物件のみを返す。元のスライスは変更しない。
func Filter(properties []*model.Property, c Criteria) []*model.Property {
	result := make([]*model.Property, 0, len(properties))
	for _, p := range properties {
		if MatchesFilter(p, c) {
			result = append(result, p)
		}
	}
	return result
}

// matchesStatus はステータス条件の一致を判定する。
func matchesStatus(p *model.Property, statuses []model.PropertyStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if p.Status == s {
			return true
		}
	}
	return false
}

// matchesBucket は個数をバケットに畳み込んでからラベル一致を判定する。
func matchesBucket(count int, selected []string, buckets []string) bool {
	if len(selected) == 0 {
		return true
	}
	label := BucketFor(count, buckets)
	for _, s := range selected {
		if s == label {
			return true
		}
	}
	return false
}

// matchesPrice は価格範囲の一致を判定する。nilの境界は無制限として扱う。
func matchesPrice(price float64, min, max *float64) bool {
	if min != nil && price < *min {
		return false
	}
	if max != nil && price > *max {
		return false
	}
	return true
}
