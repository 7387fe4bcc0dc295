package metrics

import (
	"net/http"
	"strconv"

	"github.com/VictoriaMetrics/metrics"
)

// RecordQueueMessage records a queue operation (published, consumed, drained)
// against a named queue.
func RecordQueueMessage(operation, queue string, success bool) {
	name := `outreach_queue_messages_total{operation="` + operation + `",queue="` + queue + `",success="` + strconv.FormatBool(success) + `"}`
	metrics.GetOrCreateCounter(name).Inc()
}

// RecordPipelineOutcome records the terminal outcome of one dispatch job:
// delivered, retried, skipped or failed.
func RecordPipelineOutcome(outcome string) {
	name := `outreach_pipeline_jobs_total{outcome="` + outcome + `"}`
	metrics.GetOrCreateCounter(name).Inc()
}

// RecordDispatch records recipients fanned out for a campaign dispatch run.
func RecordDispatch(result string, count int) {
	name := `outreach_dispatch_recipients_total{result="` + result + `"}`
	metrics.GetOrCreateCounter(name).Add(count)
}

// Handler exposes all counters in Prometheus text format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
}
