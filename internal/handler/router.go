package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/propfolio/internal/metrics"
	"github.com/hitoshi/propfolio/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 物件
	PropertyService PropertyServiceInterface

	// お気に入り
	FavoriteService FavoriteServiceInterface

	// アカウント
	AccountService AccountServiceInterface

	// メトリクス
	Collector metrics.MetricsCollector
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 共通ミドルウェアの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery
//
// セッションは経路の性格に応じて3種類を使い分ける:
// 公開経路はオプショナル（ゲストも通す）、お気に入り変更と退会は必須、
// 物件の管理操作は管理者必須。レート制限は一般経路と変更系経路で別々の
// トークンバケットを使う。CSRF検証は/api配下の状態変更メソッドに適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewStatusMetricsMiddleware(deps.Collector.RecordHTTPStatus))
	r.Use(middleware.NewRecoveryMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	propertyHandler := NewPropertyHandler(deps.PropertyService, deps.Collector)
	favoriteHandler := NewFavoriteHandler(deps.FavoriteService, deps.Collector)
	accountHandler := NewAccountHandler(deps.AccountService, deps.AuthConfig)

	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler)

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)

		// セッション管理（必須セッションの内側）
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRequiredSessionMiddleware(deps.SessionFinder))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/me", authHandler.Me)
			r.Post("/logout", authHandler.Logout)
		})
	})

	// --- 公開ルート（ゲストも通す） ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(csrf)

		// 物件の閲覧・検索
		r.Get("/api/properties", propertyHandler.ListProperties)
		r.Get("/api/properties/{id}", propertyHandler.GetProperty)

		// お気に入り一覧（未認証は空で返す）
		r.Get("/api/favorites", favoriteHandler.ListFavorites)

		// CSRFトークン取得
		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
	})

	// --- 認証必須ルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequiredSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(csrf)

		mutation := deps.RateLimiter.MutationMiddleware()

		// お気に入りの登録・解除
		r.With(mutation).Put("/api/favorites/{propertyId}", favoriteHandler.AddFavorite)
		r.With(mutation).Delete("/api/favorites/{propertyId}", favoriteHandler.RemoveFavorite)

		// 退会
		r.With(mutation).Delete("/api/account", accountHandler.Withdraw)
	})

	// --- 管理者専用ルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAdminSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(deps.RateLimiter.MutationMiddleware())
		r.Use(csrf)

		// 物件の管理
		r.Post("/api/properties", propertyHandler.CreateProperty)
		r.Patch("/api/properties/{id}", propertyHandler.UpdateProperty)
		r.Delete("/api/properties/{id}", propertyHandler.DeleteProperty)
		r.Post("/api/properties/{id}/images", propertyHandler.AddImages)
	})

	return r
}

// healthHandler はヘルスチェックエンドポイント。
// GET /health
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
