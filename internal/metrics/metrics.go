// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordPropertyCreated()
	RecordPropertyUpdated()
	RecordPropertyDeleted()
	RecordImagesUploaded(count int)
	RecordImageImport(result string)
	RecordFavoriteAdded()
	RecordFavoriteRemoved()
	RecordHTTPStatus(statusCode int)
	RecordSweepDeleted(count int)
	RecordSweepLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	propertyCreated prometheus.Counter
	propertyUpdated prometheus.Counter
	propertyDeleted prometheus.Counter
	imagesUploaded  prometheus.Counter
	imageImport     *prometheus.CounterVec
	favoriteAdded   prometheus.Counter
	favoriteRemoved prometheus.Counter
	httpStatus      *prometheus.CounterVec
	sweepDeleted    prometheus.Counter
	sweepLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		propertyCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propfolio_property_created_total",
			Help: "作成された物件の合計数",
		}),
		propertyUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propfolio_property_updated_total",
			Help: "更新された物件の合計数",
		}),
		propertyDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propfolio_property_deleted_total",
			Help: "削除された物件の合計数",
		}),
		imagesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propfolio_images_uploaded_total",
			Help: "アップロードされた物件画像の合計数",
		}),
		imageImport: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "propfolio_image_import_total",
			Help: "URL指定による画像取り込みの結果別合計数",
		}, []string{"result"}),
		favoriteAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propfolio_favorite_added_total",
			Help: "お気に入り登録の合計数",
		}),
		favoriteRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propfolio_favorite_removed_total",
			Help: "お気に入り解除の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "propfolio_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sweepDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propfolio_sweep_deleted_total",
			Help: "スイープで削除された孤立画像の合計数",
		}),
		sweepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "propfolio_sweep_latency_seconds",
			Help:    "スイープ1回あたりの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.propertyCreated,
		c.propertyUpdated,
		c.propertyDeleted,
		c.imagesUploaded,
		c.imageImport,
		c.favoriteAdded,
		c.favoriteRemoved,
		c.httpStatus,
		c.sweepDeleted,
		c.sweepLatency,
	)

	return c
}

// RecordPropertyCreated は物件作成を記録する。
func (c *Collector) RecordPropertyCreated() {
	c.propertyCreated.Inc()
}

// RecordPropertyUpdated は物件更新を記録する。
func (c *Collector) RecordPropertyUpdated() {
	c.propertyUpdated.Inc()
}

// RecordPropertyDeleted は物件削除を記録する。
func (c *Collector) RecordPropertyDeleted() {
	c.propertyDeleted.Inc()
}

// RecordImagesUploaded はアップロードされた画像数を記録する。
func (c *Collector) RecordImagesUploaded(count int) {
	c.imagesUploaded.Add(float64(count))
}

// RecordImageImport は画像取り込みの結果を記録する。
// resultには "success"、"blocked"、"failed" を渡す。
func (c *Collector) RecordImageImport(result string) {
	c.imageImport.WithLabelValues(result).Inc()
}

// RecordFavoriteAdded はお気に入り登録を記録する。
func (c *Collector) RecordFavoriteAdded() {
	c.favoriteAdded.Inc()
}

// RecordFavoriteRemoved はお気に入り解除を記録する。
func (c *Collector) RecordFavoriteRemoved() {
	c.favoriteRemoved.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSweepDeleted はスイープで削除された孤立画像数を記録する。
func (c *Collector) RecordSweepDeleted(count int) {
	c.sweepDeleted.Add(float64(count))
}

// RecordSweepLatency はスイープ1回の所要時間を記録する。
func (c *Collector) RecordSweepLatency(duration time.Duration) {
	c.sweepLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
