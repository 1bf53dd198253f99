// Package record はセッションサブジェクトからユーザーレコードIDへの解決を提供する。
//
// ユーザーレコードはOAuthログイン時には作成せず、初回解決時に遅延作成する。
// 同一サブジェクトへの並行した初回解決はサブジェクト単位のロックで直列化され、
// レコードが二重に作成されることはない。異なるサブジェクト同士は競合しない。
package record

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/propfolio/internal/model"
	"github.com/hitoshi/propfolio/internal/repository"
)

// ResolverService はユーザーレコード解決機能のインターフェースを定義する。
type ResolverService interface {
	// Resolve はセッションのサブジェクトに対応するユーザーレコードIDを返す。
	// 未認証セッションの場合は空文字列を返し、何も作成しない。
	// レコードが存在しない場合は1件だけ作成する。
	Resolve(ctx context.Context, session *model.Session) (string, error)

	// Invalidate は指定サブジェクトのキャッシュ済みIDを破棄する。
	// アカウント削除時に使用する。
	Invalidate(subject string)
}

// Resolver はResolverServiceの実装。
// サブジェクトごとの解決済みIDキャッシュと、初回解決を直列化する
// サブジェクト単位のロックを保持する。
type Resolver struct {
	repo   repository.UserRecordRepository
	logger *slog.Logger

	// mu はcacheとlocksのマップ自体を保護する。
	mu sync.Mutex
	// cache はサブジェクトから解決済みユーザーレコードIDへのマップ。
	cache map[string]string
	// locks はサブジェクトごとの解決ロック。
	// マップ操作はmuの下で行い、取得したロックはmuを手放してから待つ。
	locks map[string]*sync.Mutex
}

// コンパイル時のインターフェース適合チェック
var _ ResolverService = (*Resolver)(nil)

// NewResolver はResolverの新しいインスタンスを生成する。
func NewResolver(repo repository.UserRecordRepository, logger *slog.Logger) *Resolver {
	return &Resolver{
		repo:   repo,
		logger: logger,
		cache:  make(map[string]string),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Resolve はセッションのサブジェクトに対応するユーザーレコードIDを返す。
//
// 振る舞い:
//  1. 未認証セッション（nilまたはサブジェクト空）→ ("", nil)。何も作成しない。
//  2. キャッシュにサブジェクトのIDがあればそれを返す。
//  3. サブジェクト単位のロックの下で所有レコードを列挙する。
//     0件なら1件だけ作成、1件ならそれを使用、
//     2件以上はデータ不整合としてAPIErrorを返す（リトライ不可）。
//  4. 解決したIDをキャッシュして返す。
func (r *Resolver) Resolve(ctx context.Context, session *model.Session) (string, error) {
	if session == nil || session.Subject == "" {
		return "", nil
	}
	subject := session.Subject

	r.mu.Lock()
	if id, ok := r.cache[subject]; ok {
		r.mu.Unlock()
		return id, nil
	}
	lock := r.lockForLocked(subject)
	r.mu.Unlock()

	// 同一サブジェクトの初回解決はここで直列化される。
	// 異なるサブジェクトは別のロックを持つため待たされない。
	lock.Lock()
	defer lock.Unlock()

	// ロック待ちの間に先行者が解決済みの可能性があるため再確認する。
	r.mu.Lock()
	if id, ok := r.cache[subject]; ok {
		r.mu.Unlock()
		return id, nil
	}
	r.mu.Unlock()

	records, err := r.repo.ListByOwner(ctx, subject)
	if err != nil {
		return "", fmt.Errorf("ユーザーレコードの取得に失敗しました: %w", err)
	}

	var recordID string
	switch len(records) {
	case 0:
		created := &model.UserRecord{
			ID:        uuid.New().String(),
			Owner:     subject,
			CreatedAt: time.Now(),
		}
		if err := r.repo.Create(ctx, created); err != nil {
			return "", fmt.Errorf("ユーザーレコードの作成に失敗しました: %w", err)
		}
		recordID = created.ID
		r.logger.Info("ユーザーレコードを作成しました",
			"record_id", recordID,
		)
	case 1:
		recordID = records[0].ID
	default:
		// 不変条件違反。自動修復はせず、致命的なエラーとして報告する。
		r.logger.Error("ユーザーレコードが重複しています",
			"count", len(records),
		)
		return "", model.NewDataIntegrityError(
			fmt.Sprintf("ユーザーレコードが%d件存在します", len(records)))
	}

	r.mu.Lock()
	r.cache[subject] = recordID
	r.mu.Unlock()
	return recordID, nil
}

// Invalidate は指定サブジェクトのキャッシュ済みIDを破棄する。
// 次回のResolveはデータベースを再参照する。
func (r *Resolver) Invalidate(subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, subject)
}

// lockForLocked はサブジェクト用のロックを返す。存在しなければ作成する。
// 呼び出し側がr.muを保持していること。
func (r *Resolver) lockForLocked(subject string) *sync.Mutex {
	lock, ok := r.locks[subject]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[subject] = lock
	}
	return lock
}
