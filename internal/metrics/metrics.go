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
	RecordSignup()
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordBookingCreated()
	RecordBookingUpdated()
	RecordBookingDeleted()
	RecordExportRows(count int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordSessionsDeleted(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signups         prometheus.Counter
	loginSuccess    prometheus.Counter
	loginFail       *prometheus.CounterVec
	bookingCreated  prometheus.Counter
	bookingUpdated  prometheus.Counter
	bookingDeleted  prometheus.Counter
	exportRows      prometheus.Counter
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	sessionsDeleted prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nailbook_signup_total",
			Help: "新規ユーザー登録の合計数",
		}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nailbook_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nailbook_login_fail_total",
			Help: "ログイン失敗の合計数（理由別）",
		}, []string{"reason"}),
		bookingCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nailbook_booking_created_total",
			Help: "作成された予約の合計数",
		}),
		bookingUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nailbook_booking_updated_total",
			Help: "更新された予約の合計数",
		}),
		bookingDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nailbook_booking_deleted_total",
			Help: "削除された予約の合計数",
		}),
		exportRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nailbook_export_rows_total",
			Help: "CSVエクスポートされた予約行の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nailbook_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nailbook_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nailbook_sessions_deleted_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.signups,
		c.loginSuccess,
		c.loginFail,
		c.bookingCreated,
		c.bookingUpdated,
		c.bookingDeleted,
		c.exportRows,
		c.httpStatus,
		c.requestLatency,
		c.sessionsDeleted,
	)

	return c
}

// RecordSignup は新規ユーザー登録を記録する。
func (c *Collector) RecordSignup() {
	c.signups.Inc()
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を理由付きで記録する。
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFail.WithLabelValues(reason).Inc()
}

// RecordBookingCreated は予約の作成を記録する。
func (c *Collector) RecordBookingCreated() {
	c.bookingCreated.Inc()
}

// RecordBookingUpdated は予約の更新を記録する。
func (c *Collector) RecordBookingUpdated() {
	c.bookingUpdated.Inc()
}

// RecordBookingDeleted は予約の削除を記録する。
func (c *Collector) RecordBookingDeleted() {
	c.bookingDeleted.Inc()
}

// RecordExportRows はエクスポートされた予約行数を記録する。
func (c *Collector) RecordExportRows(count int) {
	c.exportRows.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordSessionsDeleted はクリーンアップで削除されたセッション数を記録する。
func (c *Collector) RecordSessionsDeleted(count int64) {
	c.sessionsDeleted.Add(float64(count))
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
