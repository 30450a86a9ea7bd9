// Package metrics exposes registration pipeline counters and latencies in
// Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/careloop/careloop-api/internal/task"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "careloop"

// Pipeline records registration pipeline activity. It implements
// task.Observer.
type Pipeline struct {
	registry *prometheus.Registry

	tasksProduced   *prometheus.CounterVec
	tasksFinished   *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	batches         prometheus.Counter
	batchDuration   prometheus.Histogram
	lastBatchSize   prometheus.Gauge
	staleRecovered  prometheus.Counter
	lastBatchFinish prometheus.Gauge
}

var _ task.Observer = (*Pipeline)(nil)

// NewPipeline creates the pipeline collectors on a private registry that
// also carries the Go and process collectors.
func NewPipeline() *Pipeline {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := &Pipeline{
		registry: reg,
		tasksProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registration",
			Name:      "tasks_produced_total",
			Help:      "Registration tasks requested by the producer, by whether they were new.",
		}, []string{"result"}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registration",
			Name:      "tasks_finished_total",
			Help:      "Registration task attempts by type, outcome and error kind.",
		}, []string{"task_type", "outcome", "error_kind"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "registration",
			Name:      "task_duration_seconds",
			Help:      "Executor latency per task type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task_type"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registration",
			Name:      "batches_total",
			Help:      "Processor batches run.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "registration",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of processor batches.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		lastBatchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registration",
			Name:      "last_batch_processed",
			Help:      "Tasks processed by the most recent batch.",
		}),
		staleRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registration",
			Name:      "stale_claims_recovered_total",
			Help:      "Processing claims returned to the retry path after exceeding the claim TTL.",
		}),
		lastBatchFinish: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registration",
			Name:      "last_batch_timestamp_seconds",
			Help:      "Unix time the most recent batch finished.",
		}),
	}

	reg.MustRegister(
		p.tasksProduced,
		p.tasksFinished,
		p.taskDuration,
		p.batches,
		p.batchDuration,
		p.lastBatchSize,
		p.staleRecovered,
		p.lastBatchFinish,
	)
	return p
}

// Registry returns the registry holding the pipeline collectors.
func (p *Pipeline) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// TasksProduced implements task.Observer.
func (p *Pipeline) TasksProduced(created, existing int) {
	p.tasksProduced.WithLabelValues("created").Add(float64(created))
	p.tasksProduced.WithLabelValues("existing").Add(float64(existing))
}

// TaskFinished implements task.Observer.
func (p *Pipeline) TaskFinished(taskType task.TaskType, outcome task.Outcome, kind task.ErrorKind, d time.Duration) {
	k := string(kind)
	if k == "" {
		k = "none"
	}
	p.tasksFinished.WithLabelValues(string(taskType), string(outcome), k).Inc()
	if outcome != task.OutcomeSkipped {
		p.taskDuration.WithLabelValues(string(taskType)).Observe(d.Seconds())
	}
}

// BatchFinished implements task.Observer.
func (p *Pipeline) BatchFinished(summary task.Summary, d time.Duration) {
	p.batches.Inc()
	p.batchDuration.Observe(d.Seconds())
	p.lastBatchSize.Set(float64(summary.Processed))
	p.lastBatchFinish.SetToCurrentTime()
}

// StaleRecovered implements task.Observer.
func (p *Pipeline) StaleRecovered(n int) {
	p.staleRecovered.Add(float64(n))
}
