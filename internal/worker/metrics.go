package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	tasksTotal        *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	activeTasks       prometheus.Gauge
	sizesIngested     prometheus.Counter
	webpSizesIngested prometheus.Counter
	webhooksTotal     *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perflab_worker_tasks_total",
			Help: "Attachment tasks handled by task type and outcome.",
		}, []string{"task_type", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "perflab_worker_task_duration_seconds",
			Help:    "Time spent handling each attachment task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task_type", "status"}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perflab_worker_active_tasks",
			Help: "Attachment tasks currently being handled.",
		}),
		sizesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perflab_worker_sizes_ingested_total",
			Help: "Intermediate image sizes stored with attachment metadata.",
		}),
		webpSizesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perflab_worker_webp_sizes_ingested_total",
			Help: "Intermediate image sizes stored with a WebP rendition.",
		}),
		webhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perflab_worker_webhooks_total",
			Help: "Webhook deliveries by event and outcome.",
		}, []string{"event", "status"}),
	}

	registry.MustRegister(
		m.tasksTotal,
		m.taskDuration,
		m.activeTasks,
		m.sizesIngested,
		m.webpSizesIngested,
		m.webhooksTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
