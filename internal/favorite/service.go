// Package favorite はお気に入り物件のドメインロジックを提供する。
//
// 全ての操作はセッションからユーザーレコードIDへの解決を経由する。
// 未認証セッションに対しては、参照系は空の結果、更新系は認証エラーを返す。
package favorite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/propfolio/internal/model"
	"github.com/hitoshi/propfolio/internal/record"
	"github.com/hitoshi/propfolio/internal/repository"
)

// Service はお気に入り物件のサービス層。
type Service struct {
	favoriteRepo repository.FavoriteRepository
	propertyRepo repository.PropertyRepository
	recordRepo   repository.UserRecordRepository
	resolver     record.ResolverService
	logger       *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	favoriteRepo repository.FavoriteRepository,
	propertyRepo repository.PropertyRepository,
	recordRepo repository.UserRecordRepository,
	resolver record.ResolverService,
	logger *slog.Logger,
) *Service {
	return &Service{
		favoriteRepo: favoriteRepo,
		propertyRepo: propertyRepo,
		recordRepo:   recordRepo,
		resolver:     resolver,
		logger:       logger,
	}
}

// List はセッションユーザーのお気に入り物件を作成日時の昇順で返す。
// 未認証セッションに対しては、解決もリポジトリ参照も行わず空スライスを返す。
// 参照先の物件が解決できないジョインレコードがあれば操作全体を失敗させる。
func (s *Service) List(ctx context.Context, session *model.Session) ([]*model.Property, error) {
	if session == nil || session.Subject == "" {
		return []*model.Property{}, nil
	}

	userID, err := s.resolver.Resolve(ctx, session)
	if err != nil {
		return nil, err
	}

	favorites, err := s.favoriteRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}

	properties := make([]*model.Property, 0, len(favorites))
	for _, f := range favorites {
		p, err := s.propertyRepo.FindByID(ctx, f.PropertyID)
		if err != nil {
			return nil, fmt.Errorf("お気に入り物件の取得に失敗しました: %w", err)
		}
		if p == nil {
			// 外部キーCASCADEの下では発生しないはずの不整合
			return nil, model.NewDataIntegrityError(
				fmt.Sprintf("お気に入りが存在しない物件%sを参照しています", f.PropertyID))
		}
		properties = append(properties, p)
	}
	return properties, nil
}

// Add は物件をお気に入りに追加する。冪等な操作で、
// 既にお気に入り済みの場合は何もせず成功する。
// 未認証セッションに対しては認証エラーを返す。
func (s *Service) Add(ctx context.Context, session *model.Session, propertyID string) error {
	if session == nil || session.Subject == "" {
		return model.NewUnauthorizedError()
	}

	userID, err := s.resolver.Resolve(ctx, session)
	if err != nil {
		return err
	}

	p, err := s.propertyRepo.FindByID(ctx, propertyID)
	if err != nil {
		return fmt.Errorf("物件の取得に失敗しました: %w", err)
	}
	if p == nil {
		return model.NewPropertyNotFoundError(propertyID)
	}

	// 追加前に既存レコードを確認し、冪等性を保証する
	existing, err := s.favoriteRepo.ListByUserAndProperty(ctx, userID, propertyID)
	if err != nil {
		return fmt.Errorf("お気に入りの確認に失敗しました: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	favorite := &model.FavoriteProperty{
		ID:         uuid.New().String(),
		UserID:     userID,
		PropertyID: propertyID,
		CreatedAt:  time.Now(),
	}
	if err := s.favoriteRepo.Create(ctx, favorite); err != nil {
		return fmt.Errorf("お気に入りの追加に失敗しました: %w", err)
	}

	s.logger.Info("お気に入りを追加しました", "property_id", propertyID)
	return nil
}

// Remove は物件をお気に入りから外す。
// 一致するレコードがなければ何もせず成功する。
// 競合ウィンドウで重複が生じていた場合に備え、一致する全レコードを削除する。
// 未認証セッションに対しては認証エラーを返す。
func (s *Service) Remove(ctx context.Context, session *model.Session, propertyID string) error {
	if session == nil || session.Subject == "" {
		return model.NewUnauthorizedError()
	}

	userID, err := s.resolver.Resolve(ctx, session)
	if err != nil {
		return err
	}

	matches, err := s.favoriteRepo.ListByUserAndProperty(ctx, userID, propertyID)
	if err != nil {
		return fmt.Errorf("お気に入りの確認に失敗しました: %w", err)
	}

	for _, f := range matches {
		if err := s.favoriteRepo.DeleteByID(ctx, f.ID); err != nil {
			return fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
		}
	}

	if len(matches) > 0 {
		s.logger.Info("お気に入りを削除しました", "property_id", propertyID, "removed", len(matches))
	}
	return nil
}

// DeleteAllUserData はセッションユーザーの全ユーザーレコードを削除する。
// お気に入りのジョインレコードは外部キーのCASCADEで削除される。
// アカウント削除フローの一部として使用され、いずれかの削除に失敗した場合は
// エラーを握り潰さずに報告する。
func (s *Service) DeleteAllUserData(ctx context.Context, session *model.Session) error {
	if session == nil || session.Subject == "" {
		return model.NewUnauthorizedError()
	}

	records, err := s.recordRepo.ListByOwner(ctx, session.Subject)
	if err != nil {
		return fmt.Errorf("ユーザーレコードの取得に失敗しました: %w", err)
	}

	for _, r := range records {
		if err := s.recordRepo.DeleteByID(ctx, r.ID); err != nil {
			return fmt.Errorf("ユーザーレコードの削除に失敗しました: %w", err)
		}
	}

	s.logger.Info("ユーザーデータを削除しました", "deleted_records", len(records))
	return nil
}
