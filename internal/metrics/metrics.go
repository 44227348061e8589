// Package metrics collects Prometheus metrics for the relay and serves /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes.
const (
	LoginSuccess       = "success"
	LoginAuthFailed    = "auth_failed"
	LoginProfileFailed = "profile_failed"
	LoginStoreFailed   = "store_failed"
)

// Tweet outcomes.
const (
	TweetPosted         = "posted"
	TweetRejected       = "rejected"
	TweetTransportError = "transport_error"
	TweetUnknownUser    = "unknown_user"
	TweetNoTokens       = "no_tokens"
)

// Recorder is what the service and middleware layers record into.
type Recorder interface {
	RecordLogin(outcome string)
	RecordTokenFetch(ok bool)
	RecordTweet(outcome string)
	RecordHTTPRequest(method, route string, status int, d time.Duration)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	logins       *prometheus.CounterVec
	tokenFetches *prometheus.CounterVec
	tweets       *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xoauth_logins_total",
			Help: "Login callbacks by outcome.",
		}, []string{"outcome"}),
		tokenFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xoauth_token_fetches_total",
			Help: "X OAuth token fetches from the identity provider by result.",
		}, []string{"result"}),
		tweets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xoauth_tweets_total",
			Help: "Tweet relay requests by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xoauth_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xoauth_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.logins,
		c.tokenFetches,
		c.tweets,
		c.httpRequests,
		c.httpDuration,
	)

	return c
}

func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordTokenFetch(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.tokenFetches.WithLabelValues(result).Inc()
}

func (c *Collector) RecordTweet(outcome string) {
	c.tweets.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records one served request. route is the chi route pattern,
// not the raw path, so /api/user/{id} stays a single series.
func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Nop discards everything. Used when a component is built without metrics.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordLogin(string)                                   {}
func (Nop) RecordTokenFetch(bool)                                {}
func (Nop) RecordTweet(string)                                   {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
