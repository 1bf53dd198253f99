// Package account はアカウント削除（退会）のドメインロジックを提供する。
package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/propfolio/internal/model"
	"github.com/hitoshi/propfolio/internal/record"
	"github.com/hitoshi/propfolio/internal/repository"
	"github.com/hitoshi/propfolio/internal/storage"
)

// UserDataDeleter はユーザーデータ削除のインターフェース。
// favoriteパッケージのServiceを抽象化する。
type UserDataDeleter interface {
	DeleteAllUserData(ctx context.Context, session *model.Session) error
}

// Service はアカウント削除のサービス層。
// プロフィール画像 → ユーザーレコード → セッション → キャッシュ無効化の
// 順で明示的なカスケード削除を行う。
type Service struct {
	store       storage.Store
	userData    UserDataDeleter
	sessionRepo repository.SessionRepository
	resolver    record.ResolverService
	logger      *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	store storage.Store,
	userData UserDataDeleter,
	sessionRepo repository.SessionRepository,
	resolver record.ResolverService,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:       store,
		userData:    userData,
		sessionRepo: sessionRepo,
		resolver:    resolver,
		logger:      logger,
	}
}

// Withdraw はセッションユーザーのアカウントを削除する。
//
// 削除順序:
//  1. プロフィール画像（profile-pictures/<subject>/配下の全オブジェクト）
//  2. ユーザーレコード（お気に入りは外部キーのCASCADEで削除）
//  3. サブジェクトの全セッション
//  4. 解決キャッシュの無効化
//
// いずれかの段階が失敗した場合は後続の段階を実行せず、エラーを報告する。
// 途中失敗時の再実行は安全（各段階は冪等）。
func (s *Service) Withdraw(ctx context.Context, session *model.Session) error {
	if session == nil || session.Subject == "" {
		return model.NewUnauthorizedError()
	}
	subject := session.Subject

	// 1. プロフィール画像の削除。失敗は握り潰さず全体を失敗させる。
	prefix := storage.ProfilePicturePrefix(subject)
	paths, err := s.store.List(ctx, prefix)
	if err != nil {
		return model.NewStorageFailedError("プロフィール画像一覧の取得に失敗しました")
	}
	for _, imagePath := range paths {
		if err := s.store.Remove(ctx, imagePath); err != nil {
			s.logger.Error("プロフィール画像の削除に失敗しました", "path", imagePath, "error", err)
			return model.NewStorageFailedError("プロフィール画像の削除に失敗しました")
		}
	}

	// 2. ユーザーレコードの削除
	if err := s.userData.DeleteAllUserData(ctx, session); err != nil {
		return err
	}

	// 3. サブジェクトの全セッションの削除
	if err := s.sessionRepo.DeleteBySubject(ctx, subject); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	// 4. 解決キャッシュの無効化
	s.resolver.Invalidate(subject)

	s.logger.Info("アカウントを削除しました", "removed_pictures", len(paths))
	return nil
}
