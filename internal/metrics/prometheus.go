package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	accountEvents       *prometheus.CounterVec
	welcomeQueued       prometheus.Counter
	welcomeProcessed    *prometheus.CounterVec
	welcomeSendDuration prometheus.Histogram
	welcomeQueueDepth   prometheus.Gauge
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them on reg.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	p := &PrometheusRecorder{
		accountEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "userhub_account_events_total",
				Help: "User and email mutations by kind.",
			},
			[]string{"event"},
		),
		welcomeQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userhub_welcome_jobs_queued_total",
			Help: "Welcome mail jobs queued.",
		}),
		welcomeProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "userhub_welcome_jobs_processed_total",
				Help: "Welcome mail job outcomes.",
			},
			[]string{"status"},
		),
		welcomeSendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "userhub_welcome_send_duration_seconds",
			Help:    "Time spent handing a welcome mail to the transport.",
			Buckets: prometheus.DefBuckets,
		}),
		welcomeQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "userhub_welcome_queue_depth",
			Help: "Welcome jobs waiting in the delay set.",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		p.accountEvents,
		p.welcomeQueued,
		p.welcomeProcessed,
		p.welcomeSendDuration,
		p.welcomeQueueDepth,
		p.httpRequests,
		p.httpDuration,
	)

	return p
}

func (p *PrometheusRecorder) IncUserCreated()    { p.accountEvents.WithLabelValues("user_created").Inc() }
func (p *PrometheusRecorder) IncUserUpdated()    { p.accountEvents.WithLabelValues("user_updated").Inc() }
func (p *PrometheusRecorder) IncUserDeleted()    { p.accountEvents.WithLabelValues("user_deleted").Inc() }
func (p *PrometheusRecorder) IncEmailAdded()     { p.accountEvents.WithLabelValues("email_added").Inc() }
func (p *PrometheusRecorder) IncEmailDeleted()   { p.accountEvents.WithLabelValues("email_deleted").Inc() }
func (p *PrometheusRecorder) IncPrimaryChanged() { p.accountEvents.WithLabelValues("primary_changed").Inc() }

func (p *PrometheusRecorder) AddWelcomeQueued(n int) {
	p.welcomeQueued.Add(float64(n))
}

func (p *PrometheusRecorder) IncWelcomeProcessed(status string) {
	p.welcomeProcessed.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) ObserveWelcomeSendDuration(d time.Duration) {
	p.welcomeSendDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetWelcomeQueueDepth(depth int64) {
	p.welcomeQueueDepth.Set(float64(depth))
}

func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
