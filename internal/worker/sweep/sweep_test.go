package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/propfolio/internal/metrics"
	"github.com/hitoshi/propfolio/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

// mockPropertyRepo はPropertyRepositoryのモック実装。スイープはListAllのみ使用する。
type mockPropertyRepo struct {
	properties []*model.Property
	listErr    error
}

func (m *mockPropertyRepo) FindByID(ctx context.Context, id string) (*model.Property, error) {
	for _, p := range m.properties {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockPropertyRepo) ListAll(ctx context.Context) ([]*model.Property, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.properties, nil
}

func (m *mockPropertyRepo) Create(ctx context.Context, p *model.Property) error { return nil }
func (m *mockPropertyRepo) Update(ctx context.Context, p *model.Property) error { return nil }
func (m *mockPropertyRepo) Delete(ctx context.Context, id string) error         { return nil }

// mockStore はstorage.Storeのモック実装。
type mockStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	removeFunc func(ctx context.Context, path string) error
	listErr    error
}

func newMockStore(paths ...string) *mockStore {
	objects := make(map[string][]byte, len(paths))
	for _, p := range paths {
		objects[p] = []byte("data")
	}
	return &mockStore{objects: objects}
}

func (m *mockStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	return nil
}

func (m *mockStore) Remove(ctx context.Context, path string) error {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return errors.New("object not found")
	}
	delete(m.objects, path)
	return nil
}

func (m *mockStore) List(ctx context.Context, prefix string) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var paths []string
	for path := range m.objects {
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *mockStore) remaining() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var paths []string
	for path := range m.objects {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func propertyWithImages(id string, images ...string) *model.Property {
	return &model.Property{
		ID:        id,
		Status:    model.PropertyStatusForSale,
		Images:    images,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// TestRun_DeletesObjectsOfMissingProperty は物件が存在しないオブジェクトの削除を検証する。
func TestRun_DeletesObjectsOfMissingProperty(t *testing.T) {
	repo := &mockPropertyRepo{
		properties: []*model.Property{
			propertyWithImages("prop-1", "property-images/prop-1/a.jpg"),
		},
	}
	store := newMockStore(
		"property-images/prop-1/a.jpg",
		"property-images/gone-prop/old.jpg",
	)
	job := NewSweepJob(repo, store, metrics.NewCollector(prometheus.NewRegistry()), testLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	remaining := store.remaining()
	if len(remaining) != 1 || remaining[0] != "property-images/prop-1/a.jpg" {
		t.Errorf("expected only referenced object to remain, got %v", remaining)
	}
}

// TestRun_DeletesUnreferencedObjects は参照されていないオブジェクトの削除を検証する。
func TestRun_DeletesUnreferencedObjects(t *testing.T) {
	repo := &mockPropertyRepo{
		properties: []*model.Property{
			propertyWithImages("prop-1", "property-images/prop-1/a.jpg"),
		},
	}
	store := newMockStore(
		"property-images/prop-1/a.jpg",
		"property-images/prop-1/orphan.jpg",
	)
	job := NewSweepJob(repo, store, metrics.NewCollector(prometheus.NewRegistry()), testLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	remaining := store.remaining()
	if len(remaining) != 1 || remaining[0] != "property-images/prop-1/a.jpg" {
		t.Errorf("expected orphan removed, got %v", remaining)
	}
}

// TestRun_NothingToDelete は削除対象がない場合に何も起きないことを検証する。
func TestRun_NothingToDelete(t *testing.T) {
	repo := &mockPropertyRepo{
		properties: []*model.Property{
			propertyWithImages("prop-1", "property-images/prop-1/a.jpg", "property-images/prop-1/b.jpg"),
		},
	}
	store := newMockStore(
		"property-images/prop-1/a.jpg",
		"property-images/prop-1/b.jpg",
	)
	job := NewSweepJob(repo, store, metrics.NewCollector(prometheus.NewRegistry()), testLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(store.remaining()) != 2 {
		t.Errorf("expected all objects to remain, got %v", store.remaining())
	}
}

// TestRun_RemoveFailureContinues は個別の削除失敗が処理を止めないことを検証する。
func TestRun_RemoveFailureContinues(t *testing.T) {
	repo := &mockPropertyRepo{properties: []*model.Property{}}
	store := newMockStore(
		"property-images/gone-1/a.jpg",
		"property-images/gone-2/b.jpg",
	)
	store.removeFunc = func(ctx context.Context, path string) error {
		if path == "property-images/gone-1/a.jpg" {
			return errors.New("remove failed")
		}
		store.mu.Lock()
		defer store.mu.Unlock()
		delete(store.objects, path)
		return nil
	}
	job := NewSweepJob(repo, store, metrics.NewCollector(prometheus.NewRegistry()), testLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	remaining := store.remaining()
	if len(remaining) != 1 || remaining[0] != "property-images/gone-1/a.jpg" {
		t.Errorf("expected only failed object to remain, got %v", remaining)
	}
}

// TestRun_ListFailureReturnsError はオブジェクト一覧取得の失敗がエラーになることを検証する。
func TestRun_ListFailureReturnsError(t *testing.T) {
	repo := &mockPropertyRepo{}
	store := newMockStore()
	store.listErr = errors.New("list failed")
	job := NewSweepJob(repo, store, metrics.NewCollector(prometheus.NewRegistry()), testLogger())

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

// TestRun_RecordsMetrics は削除件数がメトリクスに記録されることを検証する。
func TestRun_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	repo := &mockPropertyRepo{properties: []*model.Property{}}
	store := newMockStore(
		"property-images/gone-1/a.jpg",
		"property-images/gone-2/b.jpg",
	)
	job := NewSweepJob(repo, store, metrics.NewCollector(reg), testLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() == "propfolio_sweep_deleted_total" {
			if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 2 {
				t.Errorf("sweep_deleted_total = %v, want 2", v)
			}
			return
		}
	}
	t.Error("propfolio_sweep_deleted_total metric not found")
}

// TestPropertyIDFromPath はオブジェクトパスからの物件ID抽出を検証する。
func TestPropertyIDFromPath(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		wantID string
		wantOK bool
	}{
		{"通常のパス", "property-images/prop-1/a.jpg", "prop-1", true},
		{"ネストしたファイル名", "property-images/prop-1/sub/a.jpg", "prop-1", true},
		{"ルート直下のファイル", "property-images/stray.jpg", "", false},
		{"別カテゴリのパス", "profile-pictures/google:alice/me.png", "", false},
		{"空のID", "property-images//a.jpg", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := propertyIDFromPath(tt.path)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("propertyIDFromPath(%q) = (%q, %v), want (%q, %v)",
					tt.path, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

// TestStart_StopsOnContextCancel はコンテキストキャンセルでループが停止することを検証する。
func TestStart_StopsOnContextCancel(t *testing.T) {
	repo := &mockPropertyRepo{}
	store := newMockStore()
	job := NewSweepJob(repo, store, metrics.NewCollector(prometheus.NewRegistry()), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not stop after context cancellation")
	}
}
