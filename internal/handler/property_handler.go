// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/propfolio/internal/metrics"
	"github.com/hitoshi/propfolio/internal/model"
	"github.com/hitoshi/propfolio/internal/property"
	"github.com/hitoshi/propfolio/internal/search"
)

// maxMultipartMemory はmultipartフォーム解析時にメモリに保持する上限バイト数。
const maxMultipartMemory = 32 << 20

// maxUploadImages は1リクエストで受け付ける画像ファイル数の上限。
const maxUploadImages = 20

// PropertyServiceInterface は物件ハンドラーが必要とするサービスインターフェース。
type PropertyServiceInterface interface {
	List(ctx context.Context) ([]*model.Property, error)
	Get(ctx context.Context, id string) (*model.Property, error)
	CreateWithImages(ctx context.Context, draft *model.PropertyDraft, images []property.ImageUpload) (*model.Property, error)
	Update(ctx context.Context, id string, draft *model.PropertyDraft) (*model.Property, error)
	Delete(ctx context.Context, id string) error
	AddImages(ctx context.Context, id string, images []property.ImageUpload) ([]string, error)
	ImportImage(ctx context.Context, id string, rawURL string) (string, error)
	AttachImages(ctx context.Context, id string, paths []string) error
}

// PropertyHandler は物件の参照・管理のHTTPハンドラー。
type PropertyHandler struct {
	service   PropertyServiceInterface
	collector metrics.MetricsCollector
}

// NewPropertyHandler はPropertyHandlerを生成する。
func NewPropertyHandler(service PropertyServiceInterface, collector metrics.MetricsCollector) *PropertyHandler {
	return &PropertyHandler{
		service:   service,
		collector: collector,
	}
}

// propertyDraftRequest は物件の作成・更新リクエストのボディ。
type propertyDraftRequest struct {
	Status       string  `json:"status"`
	AddressLine1 string  `json:"address_line1"`
	AddressLine2 string  `json:"address_line2"`
	City         string  `json:"city"`
	Postcode     string  `json:"postcode"`
	Price        float64 `json:"price"`
	Bedrooms     int     `json:"bedrooms"`
	Bathrooms    int     `json:"bathrooms"`
	Description  string  `json:"description"`
}

// toDraft はリクエストボディからPropertyDraftに変換する。
func (r *propertyDraftRequest) toDraft() *model.PropertyDraft {
	return &model.PropertyDraft{
		Status:       model.PropertyStatus(r.Status),
		AddressLine1: r.AddressLine1,
		AddressLine2: r.AddressLine2,
		City:         r.City,
		Postcode:     r.Postcode,
		Price:        r.Price,
		Bedrooms:     r.Bedrooms,
		Bathrooms:    r.Bathrooms,
		Description:  r.Description,
	}
}

// propertyResponse は物件情報のAPIレスポンス。
type propertyResponse struct {
	ID           string   `json:"id"`
	Status       string   `json:"status"`
	AddressLine1 string   `json:"address_line1"`
	AddressLine2 string   `json:"address_line2"`
	City         string   `json:"city"`
	Postcode     string   `json:"postcode"`
	Price        float64  `json:"price"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    int      `json:"bathrooms"`
	Description  string   `json:"description"`
	Images       []string `json:"images"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// propertyListResponse は物件一覧のページ付きレスポンス。
type propertyListResponse struct {
	Items      []propertyResponse `json:"items"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalItems int                `json:"total_items"`
	TotalPages int                `json:"total_pages"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ListProperties は物件一覧をフィルタ・ページネーション付きで返す。
// GET /api/properties?status=&bedrooms=&bathrooms=&min_price=&max_price=&page=&page_size=
//
// フィルタはSQLに押し込まず、全件取得後にメモリ上で適用する。
func (h *PropertyHandler) ListProperties(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseFilterCriteria(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	page, pageSize, err := parsePagination(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	properties, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	filtered := search.Filter(properties, criteria)
	result := search.Paginate(filtered, page, pageSize)

	items := make([]propertyResponse, 0, len(result.Items))
	for _, p := range result.Items {
		items = append(items, toPropertyResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(propertyListResponse{
		Items:      items,
		Page:       result.Number,
		PageSize:   result.Size,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

// GetProperty は物件詳細を返す。
// GET /api/properties/{id}
func (h *PropertyHandler) GetProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPropertyResponse(p))
}

// CreateProperty は物件を画像付きで新規作成する。管理者専用。
// POST /api/properties
//
// multipart/form-data形式で、`property`パートに物件情報のJSON、
// `images`パートに画像ファイル（複数可）を受け付ける。
func (h *PropertyHandler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("multipart/form-data形式でリクエストしてください"))
		return
	}

	draftJSON := r.FormValue("property")
	if draftJSON == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("propertyパートがありません"))
		return
	}

	var req propertyDraftRequest
	if err := json.Unmarshal([]byte(draftJSON), &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("propertyパートの解析に失敗しました"))
		return
	}

	images, err := readImageParts(r.MultipartForm.File["images"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	p, err := h.service.CreateWithImages(r.Context(), req.toDraft(), images)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordPropertyCreated()
	h.collector.RecordImagesUploaded(len(images))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPropertyResponse(p))
}

// UpdateProperty は物件情報を更新する。管理者専用。
// PATCH /api/properties/{id}
func (h *PropertyHandler) UpdateProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req propertyDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	p, err := h.service.Update(r.Context(), id, req.toDraft())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordPropertyUpdated()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPropertyResponse(p))
}

// DeleteProperty は物件を削除する。管理者専用。
// DELETE /api/properties/{id}
func (h *PropertyHandler) DeleteProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordPropertyDeleted()
	w.WriteHeader(http.StatusNoContent)
}

// importImageRequest はURL指定の画像取り込みリクエストのボディ。
type importImageRequest struct {
	URL string `json:"url"`
}

// addImagesResponse は画像追加のAPIレスポンス。
type addImagesResponse struct {
	Paths []string `json:"paths"`
}

// AddImages は物件に画像を追加する。管理者専用。
// POST /api/properties/{id}/images
//
// multipart/form-dataの場合は`images`パートのファイルをアップロードする。
// application/jsonの場合は`{"url": ...}`で外部URLからSSRFガード付きで取り込む。
func (h *PropertyHandler) AddImages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		h.addUploadedImages(w, r, id)
		return
	}

	var req importImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("URLが空です"))
		return
	}

	imagePath, err := h.service.ImportImage(r.Context(), id, req.URL)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeSSRFBlocked {
			h.collector.RecordImageImport("blocked")
		} else {
			h.collector.RecordImageImport("failed")
		}
		handleServiceError(w, err)
		return
	}

	if err := h.service.AttachImages(r.Context(), id, []string{imagePath}); err != nil {
		h.collector.RecordImageImport("failed")
		handleServiceError(w, err)
		return
	}

	h.collector.RecordImageImport("success")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(addImagesResponse{Paths: []string{imagePath}})
}

// addUploadedImages はmultipartで受け取った画像ファイルを物件に追加する。
func (h *PropertyHandler) addUploadedImages(w http.ResponseWriter, r *http.Request, id string) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("multipart/form-data形式でリクエストしてください"))
		return
	}

	images, err := readImageParts(r.MultipartForm.File["images"])
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if len(images) == 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("imagesパートがありません"))
		return
	}

	paths, err := h.service.AddImages(r.Context(), id, images)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordImagesUploaded(len(paths))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(addImagesResponse{Paths: paths})
}

// --- ヘルパー関数 ---

// parseFilterCriteria はクエリパラメータから検索条件を組み立てる。
// status、bedrooms、bathroomsは同名パラメータの繰り返しで複数指定する。
func parseFilterCriteria(r *http.Request) (search.Criteria, error) {
	q := r.URL.Query()
	var c search.Criteria

	for _, s := range q["status"] {
		status := model.PropertyStatus(s)
		if !model.IsValidPropertyStatus(status) {
			return search.Criteria{}, model.NewInvalidStatusError(s)
		}
		c.Statuses = append(c.Statuses, status)
	}

	for _, b := range q["bedrooms"] {
		if !isValidBucket(b, search.BedroomBuckets) {
			return search.Criteria{}, model.NewInvalidRequestError("bedroomsの値が不正です: " + b)
		}
		c.Bedrooms = append(c.Bedrooms, b)
	}

	for _, b := range q["bathrooms"] {
		if !isValidBucket(b, search.BathroomBuckets) {
			return search.Criteria{}, model.NewInvalidRequestError("bathroomsの値が不正です: " + b)
		}
		c.Bathrooms = append(c.Bathrooms, b)
	}

	if v := q.Get("min_price"); v != "" {
		min, err := strconv.ParseFloat(v, 64)
		if err != nil || min < 0 {
			return search.Criteria{}, model.NewInvalidRequestError("min_priceの値が不正です")
		}
		c.MinPrice = &min
	}

	if v := q.Get("max_price"); v != "" {
		max, err := strconv.ParseFloat(v, 64)
		if err != nil || max < 0 {
			return search.Criteria{}, model.NewInvalidRequestError("max_priceの値が不正です")
		}
		c.MaxPrice = &max
	}

	if c.MinPrice != nil && c.MaxPrice != nil && *c.MaxPrice < *c.MinPrice {
		return search.Criteria{}, model.NewInvalidPriceRangeError()
	}

	return c, nil
}

// parsePagination はクエリパラメータからページ番号とページサイズを取得する。
// 範囲外のページ番号はPaginate側でクランプされるため、ここでは形式のみ検証する。
func parsePagination(r *http.Request) (page, pageSize int, err error) {
	q := r.URL.Query()

	page = 1
	if v := q.Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, model.NewInvalidRequestError("pageの値が不正です")
		}
	}

	pageSize = search.DefaultPageSize
	if v := q.Get("page_size"); v != "" {
		pageSize, err = strconv.Atoi(v)
		if err != nil || pageSize < 1 || pageSize > 100 {
			return 0, 0, model.NewInvalidRequestError("page_sizeは1以上100以下で指定してください")
		}
	}

	return page, pageSize, nil
}

// isValidBucket は区分ラベルが定義済みのものかどうかを判定する。
func isValidBucket(label string, buckets []string) bool {
	for _, b := range buckets {
		if label == b {
			return true
		}
	}
	return false
}

// readImageParts はmultipartのファイルヘッダーから画像入力を読み出す。
func readImageParts(files []*multipart.FileHeader) ([]property.ImageUpload, error) {
	if len(files) > maxUploadImages {
		return nil, model.NewInvalidRequestError(
			"画像は1リクエストあたり" + strconv.Itoa(maxUploadImages) + "枚までです")
	}

	images := make([]property.ImageUpload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, model.NewInvalidRequestError("画像ファイルの読み取りに失敗しました")
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, model.NewInvalidRequestError("画像ファイルの読み取りに失敗しました")
		}

		contentType := fh.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			return nil, model.NewInvalidRequestError("画像以外のファイルが含まれています: " + fh.Filename)
		}

		images = append(images, property.ImageUpload{
			Filename:    fh.Filename,
			ContentType: contentType,
			Data:        data,
		})
	}
	return images, nil
}

// toPropertyResponse はmodel.PropertyからAPIレスポンスに変換する。
func toPropertyResponse(p *model.Property) propertyResponse {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return propertyResponse{
		ID:           p.ID,
		Status:       string(p.Status),
		AddressLine1: p.AddressLine1,
		AddressLine2: p.AddressLine2,
		City:         p.City,
		Postcode:     p.Postcode,
		Price:        p.Price,
		Bedrooms:     p.Bedrooms,
		Bathrooms:    p.Bathrooms,
		Description:  p.Description,
		Images:       images,
		CreatedAt:    p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodePropertyNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidStatus, model.ErrCodeInvalidPriceRange:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeStorageFailed:
		return http.StatusBadGateway
	case model.ErrCodeDataIntegrity:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
