package search

import (
	"github.com/hitoshi/propfolio/internal/model"
)

// DefaultPageSize は1ページあたりのデフォルト表示件数。
const DefaultPageSize = 30

// Page はページ分割の結果。
type Page struct {
	// Items はこのページに含まれる物件。
	Items []*model.Property
	// Number はクランプ後の実際のページ番号（1始まり）。
	Number int
	// Size は1ページあたりの件数。
	Size int
	// TotalItems は分割前の総件数。
	TotalItems int
	// TotalPages は総ページ数。空入力の場合は1。
	TotalPages int
}

// Paginate は物件リストをページ分割して指定ページを返す。
// pageは[1, 総ページ数]にクランプされる。0以下は1ページ目、
// 総ページ数を超える値は最終ページとして扱う。
// pageSizeが0以下の場合はDefaultPageSizeを使用する。
// 空入力に対しては空のItemsとページ番号1を返す。
func Paginate(properties []*model.Property, page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	total := len(properties)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page{
		Items:      properties[start:end],
		Number:     page,
		Size:       pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}
}
