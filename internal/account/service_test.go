package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/propfolio/internal/model"
	"github.com/hitoshi/propfolio/internal/storage"
)

// mockStore はstorage.Storeのモック実装。
type mockStore struct {
	objects map[string][]byte

	removeCalls []string
	removeFunc  func(ctx context.Context, path string) error
	listFunc    func(ctx context.Context, prefix string) ([]string, error)
}

func newMockStore() *mockStore {
	return &mockStore{objects: make(map[string][]byte)}
}

func (m *mockStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	m.objects[path] = data
	return nil
}

func (m *mockStore) Remove(ctx context.Context, path string) error {
	m.removeCalls = append(m.removeCalls, path)
	if m.removeFunc != nil {
		return m.removeFunc(ctx, path)
	}
	delete(m.objects, path)
	return nil
}

func (m *mockStore) List(ctx context.Context, prefix string) ([]string, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, prefix)
	}
	var paths []string
	for path := range m.objects {
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// mockUserDataDeleter はUserDataDeleterのモック実装。
type mockUserDataDeleter struct {
	calls int
	err   error
}

func (m *mockUserDataDeleter) DeleteAllUserData(ctx context.Context, session *model.Session) error {
	m.calls++
	return m.err
}

// mockSessionRepo はSessionRepositoryのモック実装。
type mockSessionRepo struct {
	deletedSubjects []string
	deleteErr       error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error { return nil }
func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error { return nil }

func (m *mockSessionRepo) DeleteBySubject(ctx context.Context, subject string) error {
	m.deletedSubjects = append(m.deletedSubjects, subject)
	return m.deleteErr
}

// mockResolver はrecord.ResolverServiceのモック実装。
type mockResolver struct {
	invalidated []string
}

func (m *mockResolver) Resolve(ctx context.Context, session *model.Session) (string, error) {
	return "", nil
}

func (m *mockResolver) Invalidate(subject string) {
	m.invalidated = append(m.invalidated, subject)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func userSession(subject string) *model.Session {
	return &model.Session{
		ID:        "sess-" + subject,
		Subject:   subject,
		Email:     subject + "@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
}

type fixture struct {
	store       *mockStore
	userData    *mockUserDataDeleter
	sessionRepo *mockSessionRepo
	resolver    *mockResolver
	service     *Service
}

func newFixture() *fixture {
	store := newMockStore()
	userData := &mockUserDataDeleter{}
	sessionRepo := &mockSessionRepo{}
	resolver := &mockResolver{}
	return &fixture{
		store:       store,
		userData:    userData,
		sessionRepo: sessionRepo,
		resolver:    resolver,
		service:     NewService(store, userData, sessionRepo, resolver, testLogger()),
	}
}

// TestWithdraw_Unauthenticated は未認証セッションの退会が認証エラーになることを検証する。
func TestWithdraw_Unauthenticated(t *testing.T) {
	f := newFixture()

	err := f.service.Withdraw(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeUnauthorized {
		t.Errorf("expected code %q, got %q", model.ErrCodeUnauthorized, apiErr.Code)
	}
	if f.userData.calls != 0 {
		t.Error("expected no user data deletion for unauthenticated session")
	}
}

// TestWithdraw_FullCascade は削除が所定の順序で全段階実行されることを検証する。
func TestWithdraw_FullCascade(t *testing.T) {
	f := newFixture()
	picture := storage.ProfilePicturePrefix("google:alice") + "avatar.png"
	f.store.objects[picture] = []byte("png")
	other := storage.ProfilePicturePrefix("google:bob") + "avatar.png"
	f.store.objects[other] = []byte("png")

	if err := f.service.Withdraw(context.Background(), userSession("google:alice")); err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}

	if _, ok := f.store.objects[picture]; ok {
		t.Error("expected alice's profile picture to be removed")
	}
	if _, ok := f.store.objects[other]; !ok {
		t.Error("expected bob's profile picture to be untouched")
	}
	if f.userData.calls != 1 {
		t.Errorf("expected 1 user data deletion call, got %d", f.userData.calls)
	}
	if len(f.sessionRepo.deletedSubjects) != 1 || f.sessionRepo.deletedSubjects[0] != "google:alice" {
		t.Errorf("expected sessions for google:alice to be deleted, got %v", f.sessionRepo.deletedSubjects)
	}
	if len(f.resolver.invalidated) != 1 || f.resolver.invalidated[0] != "google:alice" {
		t.Errorf("expected resolver invalidation for google:alice, got %v", f.resolver.invalidated)
	}
}

// TestWithdraw_NoProfilePictures はプロフィール画像がなくても退会できることを検証する。
func TestWithdraw_NoProfilePictures(t *testing.T) {
	f := newFixture()

	if err := f.service.Withdraw(context.Background(), userSession("google:alice")); err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}
	if f.userData.calls != 1 {
		t.Errorf("expected 1 user data deletion call, got %d", f.userData.calls)
	}
}

// TestWithdraw_PictureRemovalFailureAborts はプロフィール画像の削除失敗が
// 後続の段階を中断させることを検証する。
func TestWithdraw_PictureRemovalFailureAborts(t *testing.T) {
	f := newFixture()
	f.store.objects[storage.ProfilePicturePrefix("google:alice")+"avatar.png"] = []byte("png")
	f.store.removeFunc = func(ctx context.Context, path string) error {
		return errors.New("permission denied")
	}

	err := f.service.Withdraw(context.Background(), userSession("google:alice"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if f.userData.calls != 0 {
		t.Error("expected user data deletion to be skipped after picture failure")
	}
	if len(f.sessionRepo.deletedSubjects) != 0 {
		t.Error("expected session deletion to be skipped after picture failure")
	}
	if len(f.resolver.invalidated) != 0 {
		t.Error("expected resolver invalidation to be skipped after picture failure")
	}
}

// TestWithdraw_UserDataFailureAborts はユーザーレコード削除の失敗が
// セッション削除とキャッシュ無効化を中断させることを検証する。
func TestWithdraw_UserDataFailureAborts(t *testing.T) {
	f := newFixture()
	f.userData.err = errors.New("deadlock detected")

	err := f.service.Withdraw(context.Background(), userSession("google:alice"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(f.sessionRepo.deletedSubjects) != 0 {
		t.Error("expected session deletion to be skipped after user data failure")
	}
	if len(f.resolver.invalidated) != 0 {
		t.Error("expected resolver invalidation to be skipped after user data failure")
	}
}

// TestWithdraw_SessionDeletionFailureReported はセッション削除の失敗が報告されることを検証する。
func TestWithdraw_SessionDeletionFailureReported(t *testing.T) {
	f := newFixture()
	f.sessionRepo.deleteErr = errors.New("connection refused")

	err := f.service.Withdraw(context.Background(), userSession("google:alice"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(f.resolver.invalidated) != 0 {
		t.Error("expected resolver invalidation to be skipped after session failure")
	}
}
