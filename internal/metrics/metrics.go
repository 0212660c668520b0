// Package metrics declares the Prometheus collectors exported by the worker
// and the producer. Collectors register on the default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job outcomes recorded by JobsFinished.
const (
	OutcomeCompleted = "completed"
	OutcomeRequeued  = "requeued"
	OutcomeDiscarded = "discarded"
	OutcomePanicked  = "panicked"
)

var (
	// jobsReceived counts jobs popped from the queue.
	jobsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "summarizer_jobs_received_total",
		Help: "Total number of jobs popped from the summarization queue",
	})

	// jobsFinished counts handled jobs by outcome.
	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "summarizer_jobs_finished_total",
		Help: "Total number of handled jobs by outcome",
	}, []string{"outcome"})

	// corruptJobs counts queue entries discarded because they could not be decoded.
	corruptJobs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "summarizer_corrupt_jobs_total",
		Help: "Total number of undecodable queue entries discarded",
	})

	// emptyPolls counts poll iterations that produced no job.
	emptyPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "summarizer_empty_polls_total",
		Help: "Total number of consumer polls that produced no job",
	})

	// activeJobs tracks jobs currently being handled.
	activeJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "summarizer_active_jobs",
		Help: "Number of jobs currently being handled",
	})

	// loopActive is 1 while the consumer loop runs.
	loopActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "summarizer_consumer_loop_active",
		Help: "1 when the consumer loop is running, 0 when idle",
	})

	// mlReady is 1 while the ML service is believed ready.
	mlReady = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "summarizer_ml_service_ready",
		Help: "1 when the ML service is believed ready",
	})

	// summarizeDuration tracks latency of summarize calls by result.
	summarizeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "summarizer_ml_summarize_duration_seconds",
		Help:    "Time taken by ML summarize calls",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 240},
	}, []string{"result"})

	// enqueued counts producer-side enqueue attempts by result.
	enqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "summarizer_enqueue_total",
		Help: "Total number of producer enqueue attempts by result",
	}, []string{"result"})

	// wakeups counts wakeup signals by direction and result.
	wakeups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "summarizer_wakeups_total",
		Help: "Wakeup signals sent or received, by result",
	}, []string{"direction", "result"})
)

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// JobReceived records a popped job.
func JobReceived() { jobsReceived.Inc() }

// JobFinished records the outcome of a handled job.
func JobFinished(outcome string) { jobsFinished.WithLabelValues(outcome).Inc() }

// CorruptJob records a discarded queue entry.
func CorruptJob() { corruptJobs.Inc() }

// EmptyPoll records a poll without a job.
func EmptyPoll() { emptyPolls.Inc() }

// SetActiveJobs sets the active job gauge.
func SetActiveJobs(n int) { activeJobs.Set(float64(n)) }

// SetLoopActive sets the loop state gauge.
func SetLoopActive(active bool) { loopActive.Set(boolGauge(active)) }

// SetMLReady sets the ML readiness gauge.
func SetMLReady(ready bool) { mlReady.Set(boolGauge(ready)) }

// ObserveSummarize records the latency of one summarize call.
func ObserveSummarize(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	summarizeDuration.WithLabelValues(result).Observe(d.Seconds())
}

// Enqueued records a producer enqueue attempt.
func Enqueued(err error) {
	if err != nil {
		enqueued.WithLabelValues("error").Inc()
		return
	}
	enqueued.WithLabelValues("ok").Inc()
}

// Wakeup records a wakeup signal. direction is "sent" or "received".
func Wakeup(direction, result string) { wakeups.WithLabelValues(direction, result).Inc() }
