// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	identityExchanges *prometheus.CounterVec
	upsertFailures    prometheus.Counter
	verifyFailures    *prometheus.CounterVec
	llmRequests       *prometheus.CounterVec
	llmLatency        prometheus.Histogram
	ttsRequests       *prometheus.CounterVec
	ttsLatency        prometheus.Histogram
	mindmapsGenerated *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		identityExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adhyayan_identity_exchanges_total",
			Help: "IDトークン交換の合計数（新規/既存ユーザー別）",
		}, []string{"new_user"}),
		upsertFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adhyayan_user_upsert_failures_total",
			Help: "ユーザーレコードupsert失敗の合計数（ステートレス縮退）",
		}),
		verifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adhyayan_token_verify_failures_total",
			Help: "セッショントークン検証失敗の合計数（expired/malformed/invalid別）",
		}, []string{"kind"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adhyayan_llm_requests_total",
			Help: "LLM API呼び出しの合計数（モデル・結果別）",
		}, []string{"model", "outcome"}),
		llmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adhyayan_llm_latency_seconds",
			Help:    "LLM API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		ttsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adhyayan_tts_requests_total",
			Help: "TTS API呼び出しの合計数（モデル・結果別）",
		}, []string{"model", "outcome"}),
		ttsLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adhyayan_tts_latency_seconds",
			Help:    "TTS API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		mindmapsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adhyayan_mindmaps_generated_total",
			Help: "生成されたマインドマップの合計数（llm/fallback別）",
		}, []string{"source"}),
	}

	reg.MustRegister(
		c.identityExchanges,
		c.upsertFailures,
		c.verifyFailures,
		c.llmRequests,
		c.llmLatency,
		c.ttsRequests,
		c.ttsLatency,
		c.mindmapsGenerated,
	)

	return c
}

// RecordIdentityExchange はIDトークン交換を記録する。
func (c *Collector) RecordIdentityExchange(newUser bool) {
	c.identityExchanges.WithLabelValues(strconv.FormatBool(newUser)).Inc()
}

// RecordUpsertFailure はユーザーレコードupsert失敗を記録する。
func (c *Collector) RecordUpsertFailure() {
	c.upsertFailures.Inc()
}

// RecordVerifyFailure はトークン検証失敗を種別付きで記録する。
func (c *Collector) RecordVerifyFailure(kind string) {
	c.verifyFailures.WithLabelValues(kind).Inc()
}

// RecordLLMRequest はLLM API呼び出しの結果を記録する。
func (c *Collector) RecordLLMRequest(model string, success bool) {
	c.llmRequests.WithLabelValues(model, outcome(success)).Inc()
}

// RecordLLMLatency はLLM API呼び出しのレイテンシを記録する。
func (c *Collector) RecordLLMLatency(duration time.Duration) {
	c.llmLatency.Observe(duration.Seconds())
}

// RecordTTSRequest はTTS API呼び出しの結果を記録する。
func (c *Collector) RecordTTSRequest(model string, success bool) {
	c.ttsRequests.WithLabelValues(model, outcome(success)).Inc()
}

// RecordTTSLatency はTTS API呼び出しのレイテンシを記録する。
func (c *Collector) RecordTTSLatency(duration time.Duration) {
	c.ttsLatency.Observe(duration.Seconds())
}

// RecordMindMapGenerated はマインドマップ生成を生成元付きで記録する。
func (c *Collector) RecordMindMapGenerated(source string) {
	c.mindmapsGenerated.WithLabelValues(source).Inc()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
