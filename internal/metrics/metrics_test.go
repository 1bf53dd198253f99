package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			if len(mf.GetMetric()) != 1 {
				t.Fatalf("expected 1 metric for %s, got %d", name, len(mf.GetMetric()))
			}
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordPropertyCounters は物件CRUDカウンタが増加することを検証する。
func TestRecordPropertyCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPropertyCreated()
	c.RecordPropertyCreated()
	c.RecordPropertyUpdated()
	c.RecordPropertyDeleted()

	if v := counterValue(t, reg, "propfolio_property_created_total"); v != 2 {
		t.Errorf("property_created_total = %v, want 2", v)
	}
	if v := counterValue(t, reg, "propfolio_property_updated_total"); v != 1 {
		t.Errorf("property_updated_total = %v, want 1", v)
	}
	if v := counterValue(t, reg, "propfolio_property_deleted_total"); v != 1 {
		t.Errorf("property_deleted_total = %v, want 1", v)
	}
}

// TestRecordImagesUploaded は画像アップロードカウンタが件数分増加することを検証する。
func TestRecordImagesUploaded(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordImagesUploaded(3)
	c.RecordImagesUploaded(2)

	if v := counterValue(t, reg, "propfolio_images_uploaded_total"); v != 5 {
		t.Errorf("images_uploaded_total = %v, want 5", v)
	}
}

// TestRecordImageImport_ResultLabels は画像取り込みカウンタが結果ラベル別に増加することを検証する。
func TestRecordImageImport_ResultLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordImageImport("success")
	c.RecordImageImport("success")
	c.RecordImageImport("blocked")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "propfolio_image_import_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "success":
					if val != 2 {
						t.Errorf("image_import_total{result=success} = %v, want 2", val)
					}
				case "blocked":
					if val != 1 {
						t.Errorf("image_import_total{result=blocked} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("propfolio_image_import_total metric not found")
	}
}

// TestRecordFavoriteCounters はお気に入りカウンタが増加することを検証する。
func TestRecordFavoriteCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFavoriteAdded()
	c.RecordFavoriteAdded()
	c.RecordFavoriteRemoved()

	if v := counterValue(t, reg, "propfolio_favorite_added_total"); v != 2 {
		t.Errorf("favorite_added_total = %v, want 2", v)
	}
	if v := counterValue(t, reg, "propfolio_favorite_removed_total"); v != 1 {
		t.Errorf("favorite_removed_total = %v, want 1", v)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "propfolio_http_status_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "200":
					if val != 2 {
						t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
					}
				case "404":
					if val != 1 {
						t.Errorf("http_status_total{status_code=404} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("propfolio_http_status_total metric not found")
	}
}

// TestRecordSweepMetrics はスイープのカウンタとヒストグラムが記録されることを検証する。
func TestRecordSweepMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSweepDeleted(4)
	c.RecordSweepLatency(100 * time.Millisecond)
	c.RecordSweepLatency(2 * time.Second)

	if v := counterValue(t, reg, "propfolio_sweep_deleted_total"); v != 4 {
		t.Errorf("sweep_deleted_total = %v, want 4", v)
	}

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "propfolio_sweep_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("propfolio_sweep_latency_seconds metric not found")
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPropertyCreated()
	c.RecordImagesUploaded(2)
	c.RecordFavoriteAdded()
	c.RecordHTTPStatus(200)
	c.RecordSweepLatency(500 * time.Millisecond)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"propfolio_property_created_total",
		"propfolio_images_uploaded_total",
		"propfolio_favorite_added_total",
		"propfolio_http_status_total",
		"propfolio_sweep_latency_seconds",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestSetupMetricsRoute_ServesMetrics は/metricsパスでメトリクスが返ることを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordPropertyCreated()

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "propfolio_property_created_total") {
		t.Error("response should contain propfolio_property_created_total metric")
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}
