// Package sweep は孤立した物件画像の自動削除ジョブを提供する。
// 補償処理の失敗などでストレージに残った、どの物件からも参照されていない
// オブジェクトを日次バッチで削除する。
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/propfolio/internal/metrics"
	"github.com/hitoshi/propfolio/internal/repository"
	"github.com/hitoshi/propfolio/internal/storage"
)

// SweepJob は孤立画像の削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type SweepJob struct {
	propertyRepo repository.PropertyRepository
	store        storage.Store
	collector    metrics.MetricsCollector
	logger       *slog.Logger
}

// NewSweepJob は新しいSweepJobを生成する。
func NewSweepJob(
	propertyRepo repository.PropertyRepository,
	store storage.Store,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *SweepJob {
	return &SweepJob{
		propertyRepo: propertyRepo,
		store:        store,
		collector:    collector,
		logger:       logger,
	}
}

// Start は指定間隔のティッカーでスイープジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *SweepJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("孤立画像スイープを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("スイープの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("孤立画像スイープを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("スイープの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Run は物件画像プレフィックス配下を1回走査し、孤立オブジェクトを削除する。
//
// 削除対象は (1) 対応する物件が存在しないオブジェクト、
// (2) 物件は存在するがimages配列から参照されていないオブジェクト。
// 個々の削除失敗はログに残して処理を継続する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *SweepJob) Run(ctx context.Context) error {
	start := time.Now()

	properties, err := j.propertyRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("物件一覧の取得に失敗しました: %w", err)
	}

	// 物件IDごとの参照済みパス集合を構築する
	referenced := make(map[string]map[string]struct{}, len(properties))
	for _, p := range properties {
		paths := make(map[string]struct{}, len(p.Images))
		for _, imagePath := range p.Images {
			paths[imagePath] = struct{}{}
		}
		referenced[p.ID] = paths
	}

	objects, err := j.store.List(ctx, storage.PropertyImagesRoot())
	if err != nil {
		return fmt.Errorf("オブジェクト一覧の取得に失敗しました: %w", err)
	}

	deleted := 0
	for _, objectPath := range objects {
		propertyID, ok := propertyIDFromPath(objectPath)
		if !ok {
			// プレフィックス配下の想定外のパスには触れない
			j.logger.Warn("解釈できないオブジェクトパスをスキップします",
				slog.String("path", objectPath),
			)
			continue
		}

		paths, exists := referenced[propertyID]
		if exists {
			if _, used := paths[objectPath]; used {
				continue
			}
		}

		if err := j.store.Remove(ctx, objectPath); err != nil {
			j.logger.Warn("孤立画像の削除に失敗しました",
				slog.String("path", objectPath),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted++
	}

	duration := time.Since(start)
	j.collector.RecordSweepDeleted(deleted)
	j.collector.RecordSweepLatency(duration)

	j.logger.Info("孤立画像スイープが完了しました",
		slog.Int("scanned", len(objects)),
		slog.Int("deleted", deleted),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// propertyIDFromPath はオブジェクトパスから物件IDを取り出す。
// パスは property-images/<propertyID>/<file> の形式を想定する。
func propertyIDFromPath(objectPath string) (string, bool) {
	root := storage.PropertyImagesRoot()
	if !strings.HasPrefix(objectPath, root) {
		return "", false
	}
	rest := strings.TrimPrefix(objectPath, root)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return parts[0], true
}
