// Package metrics exposes Prometheus counters and gauges for connection,
// channel, and webhook activity, served at /metrics on the HTTP API router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder wraps the counters a Recorder call site touches. It is passed
// into adapter/webhook/websocket constructors rather than looked up globally,
// per the no-downcasting design this repo follows.
type Recorder struct {
	connectionsOpened *prometheus.CounterVec
	connectionsActive *prometheus.GaugeVec
	channelsOccupied  *prometheus.GaugeVec
	messagesSent      *prometheus.CounterVec
	webhookJobs       *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
}

// New registers a fresh set of collectors on reg with prefix as the
// metric name prefix (e.g. "lumenbridge"). Pass prometheus.NewRegistry()
// for isolated tests, or a shared registry in production.
func New(reg prometheus.Registerer, prefix string) *Recorder {
	r := &Recorder{
		connectionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_connections_opened_total",
			Help: "WebSocket connections accepted, by app id.",
		}, []string{"app"}),
		connectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "_connections_active",
			Help: "Currently open WebSocket connections, by app id.",
		}, []string{"app"}),
		channelsOccupied: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "_channels_occupied",
			Help: "Currently occupied channels, by app id.",
		}, []string{"app"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_messages_sent_total",
			Help: "Frames written to client sockets, by app id.",
		}, []string{"app"}),
		webhookJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_webhook_jobs_total",
			Help: "Webhook delivery attempts, by app id and outcome.",
		}, []string{"app", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "HTTP API requests, by route and status class.",
		}, []string{"route", "status"}),
	}
	reg.MustRegister(r.connectionsOpened, r.connectionsActive, r.channelsOccupied, r.messagesSent, r.webhookJobs, r.httpRequests)
	return r
}

// OrNop returns rec if non-nil, or a Recorder whose collectors are
// unregistered no-ops, so callers never need a nil check.
func OrNop(rec *Recorder) *Recorder {
	if rec != nil {
		return rec
	}
	return New(prometheus.NewRegistry(), "lumenbridge")
}

func (r *Recorder) ConnectionOpened(app string) {
	if r == nil {
		return
	}
	r.connectionsOpened.WithLabelValues(app).Inc()
	r.connectionsActive.WithLabelValues(app).Inc()
}

func (r *Recorder) ConnectionClosed(app string) {
	if r == nil {
		return
	}
	r.connectionsActive.WithLabelValues(app).Dec()
}

func (r *Recorder) ChannelOccupied(app string) {
	if r == nil {
		return
	}
	r.channelsOccupied.WithLabelValues(app).Inc()
}

func (r *Recorder) ChannelVacated(app string) {
	if r == nil {
		return
	}
	r.channelsOccupied.WithLabelValues(app).Dec()
}

func (r *Recorder) MessageSent(app string) {
	if r == nil {
		return
	}
	r.messagesSent.WithLabelValues(app).Inc()
}

func (r *Recorder) WebhookJob(app, outcome string) {
	if r == nil {
		return
	}
	r.webhookJobs.WithLabelValues(app, outcome).Inc()
}

func (r *Recorder) HTTPRequest(route, status string) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, status).Inc()
}
