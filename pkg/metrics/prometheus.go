package metrics

import "github.com/prometheus/client_golang/prometheus"

var HttpRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests received",
	},
	[]string{"endpoint", "status", "method"},
)

var HttpRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint", "method"},
)

var NotificationsDispatchedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ipo_notifications_dispatched_total",
		Help: "Total number of IPO notification dispatch attempts by outcome",
	},
	[]string{"type", "status"},
)

var NotificationSendDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ipo_notification_send_duration_seconds",
		Help:    "Time taken by the delivery API to accept or reject a notification",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"type"},
)

var TokensDeactivatedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "fcm_tokens_deactivated_total",
		Help: "Total number of device tokens deactivated after being reported unregistered",
	},
)

var SchedulerTicksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scheduler_ticks_total",
		Help: "Total number of scheduler ticks by result",
	},
	[]string{"result"},
)

var SchedulerTickDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "scheduler_tick_duration_seconds",
		Help:    "Duration of a complete scan and dispatch cycle",
		Buckets: prometheus.DefBuckets,
	},
)

var SchedulerDuePairs = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "scheduler_due_pairs",
		Help: "Number of (ipo, token, type) pairs found due by the last scan",
	},
)

func InitAPIMetrics() {
	prometheus.MustRegister(HttpRequestsTotal)
	prometheus.MustRegister(HttpRequestDuration)
}

func InitSchedulerMetrics() {
	prometheus.MustRegister(NotificationsDispatchedTotal)
	prometheus.MustRegister(NotificationSendDuration)
	prometheus.MustRegister(TokensDeactivatedTotal)
	prometheus.MustRegister(SchedulerTicksTotal)
	prometheus.MustRegister(SchedulerTickDuration)
	prometheus.MustRegister(SchedulerDuePairs)
}
