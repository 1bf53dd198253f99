package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/propfolio/internal/metrics"
	"github.com/hitoshi/propfolio/internal/middleware"
	"github.com/hitoshi/propfolio/internal/model"
)

// FavoriteServiceInterface はお気に入りハンドラーが必要とするサービスインターフェース。
type FavoriteServiceInterface interface {
	// List はセッションユーザーのお気に入り物件を返す。未認証なら空スライス。
	List(ctx context.Context, session *model.Session) ([]*model.Property, error)
	// Add は物件をお気に入りに登録する。登録済みなら何もしない。
	Add(ctx context.Context, session *model.Session, propertyID string) error
	// Remove は物件をお気に入りから外す。未登録なら何もしない。
	Remove(ctx context.Context, session *model.Session, propertyID string) error
}

// FavoriteHandler はお気に入り物件のHTTPハンドラー。
type FavoriteHandler struct {
	service   FavoriteServiceInterface
	collector metrics.MetricsCollector
}

// NewFavoriteHandler はFavoriteHandlerを生成する。
func NewFavoriteHandler(service FavoriteServiceInterface, collector metrics.MetricsCollector) *FavoriteHandler {
	return &FavoriteHandler{
		service:   service,
		collector: collector,
	}
}

// favoriteListResponse はお気に入り一覧のAPIレスポンス。
type favoriteListResponse struct {
	Items []propertyResponse `json:"items"`
}

// ListFavorites はセッションユーザーのお気に入り物件一覧を返す。
// GET /api/favorites
//
// 未認証の場合もエラーにせず空の一覧を返す。
func (h *FavoriteHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())

	properties, err := h.service.List(r.Context(), session)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]propertyResponse, 0, len(properties))
	for _, p := range properties {
		items = append(items, toPropertyResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(favoriteListResponse{Items: items})
}

// AddFavorite は物件をお気に入りに登録する。
// PUT /api/favorites/{propertyId}
func (h *FavoriteHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	propertyID := chi.URLParam(r, "propertyId")

	if err := h.service.Add(r.Context(), session, propertyID); err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordFavoriteAdded()
	w.WriteHeader(http.StatusNoContent)
}

// RemoveFavorite は物件をお気に入りから外す。
// DELETE /api/favorites/{propertyId}
func (h *FavoriteHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	propertyID := chi.URLParam(r, "propertyId")

	if err := h.service.Remove(r.Context(), session, propertyID); err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordFavoriteRemoved()
	w.WriteHeader(http.StatusNoContent)
}
