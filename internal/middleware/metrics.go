package middleware

import "net/http"

// NewStatusMetricsMiddleware はレスポンスのステータスコードを記録関数に渡すミドルウェアを返す。
// recordにはメトリクスコレクターのステータス記録メソッドを渡す。
func NewStatusMetricsMiddleware(record func(statusCode int)) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			record(rec.statusCode)
		})
	}
}
