// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 登録・ログインの結果ラベル。
const (
	OutcomeSuccess            = "success"
	OutcomeValidation         = "validation"
	OutcomeEmailTaken         = "email_taken"
	OutcomePictureRejected    = "picture_rejected"
	OutcomeUnknownUser        = "unknown_user"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeError              = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordRegistration(outcome string)
	RecordLogin(outcome string)
	RecordTokenRejected(reason string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordOrphansDeleted(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations  *prometheus.CounterVec
	logins         *prometheus.CounterVec
	tokenRejected  *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	orphansDeleted prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sociopedia_registrations_total",
			Help: "アカウント登録リクエストの結果別件数",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sociopedia_logins_total",
			Help: "ログインリクエストの結果別件数",
		}, []string{"outcome"}),
		tokenRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sociopedia_token_rejected_total",
			Help: "トークン検証で拒否したリクエスト数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sociopedia_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sociopedia_request_latency_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		orphansDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sociopedia_orphan_pictures_deleted_total",
			Help: "掃除ジョブが削除した孤立画像の合計数",
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.logins,
		c.tokenRejected,
		c.httpStatus,
		c.requestLatency,
		c.orphansDeleted,
	)

	return c
}

// RecordRegistration は登録結果を記録する。
func (c *Collector) RecordRegistration(outcome string) {
	c.registrations.WithLabelValues(outcome).Inc()
}

// RecordLogin はログイン結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordTokenRejected はトークン検証で拒否した理由を記録する。
func (c *Collector) RecordTokenRejected(reason string) {
	c.tokenRejected.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordOrphansDeleted は削除した孤立画像数を記録する。
func (c *Collector) RecordOrphansDeleted(count int) {
	c.orphansDeleted.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスを使わないテストやCLIで使用する。
type NopCollector struct{}

func (NopCollector) RecordRegistration(string)          {}
func (NopCollector) RecordLogin(string)                 {}
func (NopCollector) RecordTokenRejected(string)         {}
func (NopCollector) RecordHTTPStatus(int)               {}
func (NopCollector) RecordRequestLatency(time.Duration) {}
func (NopCollector) RecordOrphansDeleted(int)           {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
