// Package property は物件の参照・管理のドメインロジックを提供する。
package property

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/propfolio/internal/model"
	"github.com/hitoshi/propfolio/internal/repository"
	"github.com/hitoshi/propfolio/internal/security"
	"github.com/hitoshi/propfolio/internal/storage"
)

// ImageUpload は新規作成時に添付する画像1枚の入力。
type ImageUpload struct {
	// Filename はアップロード元のファイル名。拡張子の決定に使用する。
	Filename string
	// ContentType は画像のMIMEタイプ。
	ContentType string
	// Data は画像のバイト列。
	Data []byte
}

// Service は物件の参照・管理のサービス層。
// 作成・更新時の紹介文サニタイズ、画像のオブジェクトストレージ管理、
// 外部URLからの画像取り込みを統括する。
type Service struct {
	repo      repository.PropertyRepository
	store     storage.Store
	sanitizer security.ContentSanitizerService
	ssrfGuard security.SSRFGuardService
	logger    *slog.Logger

	// imageFetchTimeout は外部URLからの画像取得のタイムアウト。
	imageFetchTimeout time.Duration
	// imageMaxSize は取り込み画像の最大バイト数。
	imageMaxSize int64
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.PropertyRepository,
	store storage.Store,
	sanitizer security.ContentSanitizerService,
	ssrfGuard security.SSRFGuardService,
	logger *slog.Logger,
	imageFetchTimeout time.Duration,
	imageMaxSize int64,
) *Service {
	return &Service{
		repo:              repo,
		store:             store,
		sanitizer:         sanitizer,
		ssrfGuard:         ssrfGuard,
		logger:            logger,
		imageFetchTimeout: imageFetchTimeout,
		imageMaxSize:      imageMaxSize,
	}
}

// List は全物件を作成日時の降順で返す。認証不要の公開操作。
// フィルタリングとページ分割は呼び出し側がメモリ上で行う。
func (s *Service) List(ctx context.Context) ([]*model.Property, error) {
	properties, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("物件一覧の取得に失敗しました: %w", err)
	}
	return properties, nil
}

// Get は指定IDの物件を返す。認証不要の公開操作。
// 存在しないIDに対してはAPIErrorを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Property, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("物件の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPropertyNotFoundError(id)
	}
	return p, nil
}

// Create は物件を新規作成する。管理者専用。
// 紹介文はサニタイズされ、掲載状態は定義済みの値に検証される。
func (s *Service) Create(ctx context.Context, draft *model.PropertyDraft) (*model.Property, error) {
	p, err := s.buildProperty(draft)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("物件の保存に失敗しました: %w", err)
	}
	s.logger.Info("物件を作成しました", "property_id", p.ID, "status", p.Status)
	return p, nil
}

// CreateWithImages は物件を画像付きで新規作成する。管理者専用。
//
// フロー: (1)空のImagesで物件行を作成 → (2)各画像をストレージにアップロード →
// (3)アップロード済みパスを順序どおり物件行に添付。
// いずれかの段階が失敗した場合は補償処理を逆順で実行する:
// アップロード済みオブジェクトの削除（ベストエフォート、失敗はログのみ）、
// 物件行の削除。リトライは行わない。
func (s *Service) CreateWithImages(ctx context.Context, draft *model.PropertyDraft, images []ImageUpload) (*model.Property, error) {
	p, err := s.buildProperty(draft)
	if err != nil {
		return nil, err
	}

	// (1) 物件行の作成
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("物件の保存に失敗しました: %w", err)
	}

	// (2) 画像のアップロード
	uploaded := make([]string, 0, len(images))
	for i, img := range images {
		imagePath := storage.PropertyImagePath(p.ID, uuid.New().String()+imageExt(img.Filename, img.ContentType))
		if err := s.store.Upload(ctx, imagePath, img.Data, img.ContentType); err != nil {
			s.logger.Error("画像のアップロードに失敗しました",
				"property_id", p.ID, "index", i, "error", err)
			s.compensateCreate(ctx, p.ID, uploaded)
			return nil, model.NewStorageFailedError("画像のアップロードに失敗しました")
		}
		uploaded = append(uploaded, imagePath)
	}

	// (3) アップロード済みパスの添付
	p.Images = uploaded
	p.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, p); err != nil {
		s.logger.Error("画像パスの添付に失敗しました", "property_id", p.ID, "error", err)
		s.compensateCreate(ctx, p.ID, uploaded)
		return nil, fmt.Errorf("物件の更新に失敗しました: %w", err)
	}

	s.logger.Info("物件を画像付きで作成しました",
		"property_id", p.ID, "image_count", len(uploaded))
	return p, nil
}

// Update は物件情報を更新する。管理者専用。
// 既存のImagesは保持され、紹介文はサニタイズ、掲載状態は検証される。
func (s *Service) Update(ctx context.Context, id string, draft *model.PropertyDraft) (*model.Property, error) {
	if !model.IsValidPropertyStatus(draft.Status) {
		return nil, model.NewInvalidStatusError(string(draft.Status))
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("物件の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPropertyNotFoundError(id)
	}

	p.Status = draft.Status
	p.AddressLine1 = draft.AddressLine1
	p.AddressLine2 = draft.AddressLine2
	p.City = draft.City
	p.Postcode = draft.Postcode
	p.Price = draft.Price
	p.Bedrooms = draft.Bedrooms
	p.Bathrooms = draft.Bathrooms
	p.Description = s.sanitizer.Sanitize(draft.Description)
	p.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("物件の更新に失敗しました: %w", err)
	}

	s.logger.Info("物件を更新しました", "property_id", p.ID)
	return p, nil
}

// Delete は物件を削除する。管理者専用。
//
// 孤児オブジェクトを残さないため、先にストレージ上の画像プレフィックス配下を
// 全て削除してから物件行を削除する。画像の列挙・削除に失敗した場合は
// 行の削除を行わず、操作全体を失敗させる。
// お気に入りのジョインレコードは外部キーのCASCADEで削除される。
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("物件の取得に失敗しました: %w", err)
	}
	if p == nil {
		return model.NewPropertyNotFoundError(id)
	}

	prefix := storage.PropertyImagePrefix(id)
	paths, err := s.store.List(ctx, prefix)
	if err != nil {
		return model.NewStorageFailedError("画像一覧の取得に失敗しました")
	}
	for _, imagePath := range paths {
		if err := s.store.Remove(ctx, imagePath); err != nil {
			return model.NewStorageFailedError("画像の削除に失敗しました")
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("物件の削除に失敗しました: %w", err)
	}

	s.logger.Info("物件を削除しました", "property_id", id, "removed_images", len(paths))
	return nil
}

// CleanImages は物件の画像プレフィックス配下を列挙し、
// keepに含まれないオブジェクトを削除する。更新後の掃除に使用する。
// 削除に失敗したオブジェクトはログに残し、処理を継続する。
func (s *Service) CleanImages(ctx context.Context, id string, keep []string) error {
	prefix := storage.PropertyImagePrefix(id)
	paths, err := s.store.List(ctx, prefix)
	if err != nil {
		return model.NewStorageFailedError("画像一覧の取得に失敗しました")
	}

	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k] = struct{}{}
	}

	removed := 0
	for _, imagePath := range paths {
		if _, ok := keepSet[imagePath]; ok {
			continue
		}
		if err := s.store.Remove(ctx, imagePath); err != nil {
			s.logger.Warn("孤児画像の削除に失敗しました", "path", imagePath, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("孤児画像を削除しました", "property_id", id, "removed", removed)
	}
	return nil
}

// AddImages は既存の物件に画像を追加する。管理者専用。
// 各画像をストレージにアップロードし、成功したパスを順序どおり物件行に添付する。
// アップロードに失敗した場合、その時点までにアップロードしたオブジェクトを
// ベストエフォートで削除し、行は変更しない。
func (s *Service) AddImages(ctx context.Context, id string, images []ImageUpload) ([]string, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("物件の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPropertyNotFoundError(id)
	}

	uploaded := make([]string, 0, len(images))
	for i, img := range images {
		imagePath := storage.PropertyImagePath(p.ID, uuid.New().String()+imageExt(img.Filename, img.ContentType))
		if err := s.store.Upload(ctx, imagePath, img.Data, img.ContentType); err != nil {
			s.logger.Error("画像のアップロードに失敗しました",
				"property_id", p.ID, "index", i, "error", err)
			for j := len(uploaded) - 1; j >= 0; j-- {
				if rmErr := s.store.Remove(ctx, uploaded[j]); rmErr != nil {
					s.logger.Warn("補償処理: 画像の削除に失敗しました",
						"property_id", p.ID, "path", uploaded[j], "error", rmErr)
				}
			}
			return nil, model.NewStorageFailedError("画像のアップロードに失敗しました")
		}
		uploaded = append(uploaded, imagePath)
	}

	p.Images = append(p.Images, uploaded...)
	p.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("物件の更新に失敗しました: %w", err)
	}

	s.logger.Info("物件に画像を追加しました", "property_id", p.ID, "added", len(uploaded))
	return uploaded, nil
}

// AttachImages はアップロード済みのパスを物件行の画像リスト末尾に添付する。
// ImportImageで保存したオブジェクトの添付に使用する。
func (s *Service) AttachImages(ctx context.Context, id string, paths []string) error {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("物件の取得に失敗しました: %w", err)
	}
	if p == nil {
		return model.NewPropertyNotFoundError(id)
	}

	p.Images = append(p.Images, paths...)
	p.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("物件の更新に失敗しました: %w", err)
	}
	return nil
}

// ImportImage は外部URLから画像を取得し、物件の画像としてストレージに保存する。
// 管理者専用。URLはSSRFガードで事前検証され、取得もSSRF防止付きクライアントで行う。
// 保存したオブジェクトのパスを返す。物件行への添付は呼び出し側が行う。
func (s *Service) ImportImage(ctx context.Context, id string, rawURL string) (string, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("物件の取得に失敗しました: %w", err)
	}
	if p == nil {
		return "", model.NewPropertyNotFoundError(id)
	}

	if err := s.ssrfGuard.ValidateURL(rawURL); err != nil {
		s.logger.Warn("画像URLの検証に失敗しました", "property_id", id, "error", err)
		return "", model.NewSSRFBlockedError()
	}

	client := s.ssrfGuard.NewSafeClient(s.imageFetchTimeout, s.imageMaxSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", model.NewInvalidRequestError("画像URLが不正です")
	}

	resp, err := client.Do(req)
	if err != nil {
		s.logger.Warn("画像の取得に失敗しました", "property_id", id, "error", err)
		return "", model.NewSSRFBlockedError()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", model.NewStorageFailedError(
			fmt.Sprintf("画像の取得に失敗しました (HTTP %d)", resp.StatusCode))
	}

	// サイズ上限+1バイトで読み、超過を検出する
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.imageMaxSize+1))
	if err != nil {
		return "", model.NewStorageFailedError("画像の読み取りに失敗しました")
	}
	if int64(len(data)) > s.imageMaxSize {
		return "", model.NewInvalidRequestError("画像サイズが上限を超えています")
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", model.NewInvalidRequestError("画像以外のコンテンツです")
	}

	imagePath := storage.PropertyImagePath(id, uuid.New().String()+imageExt(rawURL, contentType))
	if err := s.store.Upload(ctx, imagePath, data, contentType); err != nil {
		return "", model.NewStorageFailedError("画像の保存に失敗しました")
	}

	s.logger.Info("外部URLから画像を取り込みました",
		"property_id", id, "path", imagePath, "size", len(data))
	return imagePath, nil
}

// buildProperty は入力を検証・サニタイズし、採番済みの物件を構成する。
func (s *Service) buildProperty(draft *model.PropertyDraft) (*model.Property, error) {
	if !model.IsValidPropertyStatus(draft.Status) {
		return nil, model.NewInvalidStatusError(string(draft.Status))
	}

	now := time.Now()
	return &model.Property{
		ID:           uuid.New().String(),
		Status:       draft.Status,
		AddressLine1: draft.AddressLine1,
		AddressLine2: draft.AddressLine2,
		City:         draft.City,
		Postcode:     draft.Postcode,
		Price:        draft.Price,
		Bedrooms:     draft.Bedrooms,
		Bathrooms:    draft.Bathrooms,
		Description:  s.sanitizer.Sanitize(draft.Description),
		Images:       []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// compensateCreate はCreateWithImagesの補償処理を逆順で実行する。
// アップロード済みオブジェクトの削除はベストエフォートで、失敗してもログに残すのみ。
// 物件行の削除失敗もログに残すのみで、元のエラーを覆い隠さない。
func (s *Service) compensateCreate(ctx context.Context, propertyID string, uploaded []string) {
	for i := len(uploaded) - 1; i >= 0; i-- {
		if err := s.store.Remove(ctx, uploaded[i]); err != nil {
			s.logger.Warn("補償処理: 画像の削除に失敗しました",
				"property_id", propertyID, "path", uploaded[i], "error", err)
		}
	}
	if err := s.repo.Delete(ctx, propertyID); err != nil {
		s.logger.Warn("補償処理: 物件行の削除に失敗しました",
			"property_id", propertyID, "error", err)
	}
}

// imageExt はファイル名またはMIMEタイプから画像の拡張子を決定する。
// どちらからも決定できない場合は.binを返す。
func imageExt(filename, contentType string) string {
	if ext := path.Ext(filename); ext != "" && len(ext) <= 5 {
		return strings.ToLower(ext)
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
