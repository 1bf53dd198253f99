package storage

import (
	"context"
	"fmt"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStore はGoogle Cloud Storageを使用したStore実装。
type GCSStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore はGCSクライアントを生成してGCSStoreを返す。
// 認証はApplication Default Credentialsを使用する。
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("GCSクライアントの生成に失敗しました: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: bucket,
	}, nil
}

// Close はGCSクライアントを解放する。
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Upload は指定パスにオブジェクトを書き込む。既存オブジェクトは上書きされる。
func (s *GCSStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		// Close前の書き込みエラーでもWriterは閉じて後始末する
		_ = w.Close()
		return fmt.Errorf("オブジェクトの書き込みに失敗しました: %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("オブジェクトの書き込み完了に失敗しました: %s: %w", path, err)
	}
	return nil
}

// Remove は指定パスのオブジェクトを削除する。
func (s *GCSStore) Remove(ctx context.Context, path string) error {
	if err := s.client.Bucket(s.bucket).Object(path).Delete(ctx); err != nil {
		return fmt.Errorf("オブジェクトの削除に失敗しました: %s: %w", path, err)
	}
	return nil
}

// List は指定プレフィックス配下の全オブジェクトパスを返す。
func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})

	var paths []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("オブジェクト一覧の取得に失敗しました: %s: %w", prefix, err)
		}
		paths = append(paths, attrs.Name)
	}
	return paths, nil
}

// compile-time interface check
var _ Store = (*GCSStore)(nil)
