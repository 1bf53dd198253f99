package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// testRateLimiterConfig はテスト用の小さなレート制限設定を返す。
func testRateLimiterConfig(generalBurst, mutationBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001), // 補充をほぼ無効化
		GeneralBurst:    generalBurst,
		MutationRate:    rate.Limit(0.001),
		MutationBurst:   mutationBurst,
		CleanupInterval: time.Hour,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// TestGeneralMiddleware_AllowsWithinBurst はバースト内のリクエストが通過することを検証する。
func TestGeneralMiddleware_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(3, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
		req.RemoteAddr = "203.0.113.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i+1, rec.Code)
		}
	}
}

// TestGeneralMiddleware_RejectsBeyondBurst はバースト超過のリクエストが429になることを検証する。
func TestGeneralMiddleware_RejectsBeyondBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(2, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
		req.RemoteAddr = "203.0.113.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	req.RemoteAddr = "203.0.113.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

// TestGeneralMiddleware_DistinctClientsDoNotShareLimits は異なるクライアントが
// 独立したリミッターを持つことを検証する。
func TestGeneralMiddleware_DistinctClientsDoNotShareLimits(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	// 1人目がバーストを使い切る
	first := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	first.RemoteAddr = "203.0.113.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for first client, got %d", rec.Code)
	}

	// 2人目は影響を受けない
	second := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	second.RemoteAddr = "203.0.113.2:12345"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200 for second client, got %d", rec.Code)
	}

	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("expected 2 limiter entries, got %d", rl.GeneralLimiterCount())
	}
}

// TestGeneralMiddleware_SessionSubjectAsKey は認証済みリクエストが
// サブジェクトをキーとして制限されることを検証する。
func TestGeneralMiddleware_SessionSubjectAsKey(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	// 同一サブジェクト、異なるIPからのリクエスト
	session := validSession("sess-1", false)

	first := httptest.NewRequest(http.MethodGet, "/api/favorites", nil)
	first.RemoteAddr = "203.0.113.1:12345"
	first = first.WithContext(ContextWithSession(first.Context(), session))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/api/favorites", nil)
	second.RemoteAddr = "203.0.113.2:54321"
	second = second.WithContext(ContextWithSession(second.Context(), session))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429 for the same subject, got %d", rec.Code)
	}
}

// TestMutationMiddleware_IndependentOfGeneral は更新系のレート制限が
// API全般の制限とは独立に動作することを検証する。
func TestMutationMiddleware_IndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(10, 1))
	defer rl.Stop()

	generalHandler := rl.GeneralMiddleware()(okHandler())
	mutationHandler := rl.MutationMiddleware()(okHandler())

	// 更新系バースト(1)を使い切る
	req := httptest.NewRequest(http.MethodPut, "/api/favorites/prop-1", nil)
	req.RemoteAddr = "203.0.113.1:12345"
	rec := httptest.NewRecorder()
	mutationHandler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/favorites/prop-1", nil)
	req.RemoteAddr = "203.0.113.1:12345"
	rec = httptest.NewRecorder()
	mutationHandler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 for mutation, got %d", rec.Code)
	}

	// API全般はまだ通過する
	req = httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	req.RemoteAddr = "203.0.113.1:12345"
	rec = httptest.NewRecorder()
	generalHandler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected general requests to be unaffected, got %d", rec.Code)
	}
}

// TestRateLimiter_Cleanup は期限切れエントリのクリーンアップを検証する。
func TestRateLimiter_Cleanup(t *testing.T) {
	config := testRateLimiterConfig(10, 10)
	config.CleanupInterval = 10 * time.Millisecond
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	req.RemoteAddr = "203.0.113.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("expected 1 limiter entry, got %d", rl.GeneralLimiterCount())
	}

	// TTL（CleanupInterval*2）超過までポーリング
	deadline := time.Now().Add(time.Second)
	for rl.GeneralLimiterCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("expected limiter entries to be cleaned up, got %d", rl.GeneralLimiterCount())
	}
}

// TestDefaultRateLimiterConfig はデフォルト設定の値を検証する。
func TestDefaultRateLimiterConfig(t *testing.T) {
	config := DefaultRateLimiterConfig()

	if config.GeneralBurst != 120 {
		t.Errorf("expected general burst 120, got %d", config.GeneralBurst)
	}
	if config.MutationBurst != 10 {
		t.Errorf("expected mutation burst 10, got %d", config.MutationBurst)
	}
	if config.GeneralRate != rate.Limit(2.0) {
		t.Errorf("expected general rate 2 req/sec, got %v", config.GeneralRate)
	}
}
