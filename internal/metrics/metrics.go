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
// APIクライアント、認証サービス、チャット、ミドルウェアから利用する。
type MetricsCollector interface {
	ObserveAPICall(endpoint, outcome string, duration time.Duration)
	RecordLogin(outcome string)
	RecordChatSubmission(variant, outcome string)
	RecordGuardRedirect(policy, target string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	reg             prometheus.Registerer
	apiCalls        *prometheus.CounterVec
	apiLatency      *prometheus.HistogramVec
	logins          *prometheus.CounterVec
	chatSubmissions *prometheus.CounterVec
	guardRedirects  *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reg: reg,
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelitalk_api_calls_total",
			Help: "リモートAPI呼び出しの合計数（エンドポイント・結果別）",
		}, []string{"endpoint", "outcome"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intelitalk_api_call_duration_seconds",
			Help:    "リモートAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelitalk_logins_total",
			Help: "ログイン試行の合計数（結果別）",
		}, []string{"outcome"}),
		chatSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelitalk_chat_submissions_total",
			Help: "チャット送信の合計数（パネル種類・結果別）",
		}, []string{"variant", "outcome"}),
		guardRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelitalk_guard_redirects_total",
			Help: "ガードによるリダイレクトの合計数",
		}, []string{"policy", "target"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelitalk_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.apiCalls,
		c.apiLatency,
		c.logins,
		c.chatSubmissions,
		c.guardRedirects,
		c.httpStatus,
	)

	return c
}

// ObserveAPICall はリモートAPI呼び出しの結果とレイテンシを記録する。
func (c *Collector) ObserveAPICall(endpoint, outcome string, duration time.Duration) {
	c.apiCalls.WithLabelValues(endpoint, outcome).Inc()
	c.apiLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordLogin はログイン結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordChatSubmission はチャット送信の結果を記録する。
func (c *Collector) RecordChatSubmission(variant, outcome string) {
	c.chatSubmissions.WithLabelValues(variant, outcome).Inc()
}

// RecordGuardRedirect はガードによるリダイレクトを記録する。
func (c *Collector) RecordGuardRedirect(policy, target string) {
	c.guardRedirects.WithLabelValues(policy, target).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RegisterActivePanels は保持中のチャットパネル数を返す関数をゲージとして登録する。
func (c *Collector) RegisterActivePanels(count func() int) {
	c.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "intelitalk_chat_panels_active",
		Help: "保持中のチャットパネル数",
	}, func() float64 {
		return float64(count())
	}))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 一部のコレクターが失敗しても、収集できた分は返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
