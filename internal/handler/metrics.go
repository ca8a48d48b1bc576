package handler

import (
	"bufio"
	"net/http"
	"strconv"

	"github.com/utrscan/utrscan/internal/metrics"
)

// MetricsHandler exposes the in-memory counters in Prometheus text format.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

type sample struct {
	labels string // already formatted, e.g. `{status="success"}`
	value  string
}

type family struct {
	name    string
	kind    string
	help    string
	samples []sample
}

func counter(v uint64) string { return strconv.FormatUint(v, 10) }

func metricFamilies(s metrics.Snapshot) []family {
	status := func(v string) string { return `{status="` + v + `"}` }
	return []family{
		{"utrscan_submissions_total", "counter", "Image submissions by outcome.", []sample{
			{status(metrics.StatusSuccess), counter(s.SubmissionsSucceeded)},
			{status(metrics.StatusExtractionFailed), counter(s.SubmissionsExtractionFailed)},
			{status(metrics.StatusStoreFailed), counter(s.SubmissionsStoreFailed)},
		}},
		{"utrscan_extraction_duration_seconds", "summary", "Time spent in the extraction pipeline.", []sample{
			{"_sum", strconv.FormatFloat(float64(s.ExtractionDurationTotalNs)/1e9, 'f', 6, 64)},
			{"_count", counter(s.ExtractionDurationCount)},
		}},
		{"utrscan_unknown_utr_total", "counter", "Submissions stored without a valid UTR.", []sample{{"", counter(s.UnknownUTRs)}}},
		{"utrscan_auth_failures_total", "counter", "Rejected API keys.", []sample{{"", counter(s.AuthFailures)}}},
		{"utrscan_rate_limited_total", "counter", "Requests rejected by the rate limiter.", []sample{{"", counter(s.RateLimited)}}},
		{"utrscan_users_created_total", "counter", "Users created by admins.", []sample{{"", counter(s.UsersCreated)}}},
		{"utrscan_key_delivery_failures_total", "counter", "API key e-mails that could not be delivered.", []sample{{"", counter(s.KeyDeliveryFailures)}}},
		{"utrscan_logs_purged_total", "counter", "Expired logs deleted by the retention worker.", []sample{{"", strconv.FormatInt(s.LogsPurged, 10)}}},
	}
}

// Metrics writes the current snapshot.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, _ *http.Request) {
	if h.snapshotter == nil {
		writeError(w, http.StatusServiceUnavailable, "METRICS_DISABLED", "Metrics are not enabled")
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	bw := bufio.NewWriter(w)
	for _, f := range metricFamilies(h.snapshotter.Snapshot()) {
		bw.WriteString("# HELP " + f.name + " " + f.help + "\n")
		bw.WriteString("# TYPE " + f.name + " " + f.kind + "\n")
		for _, s := range f.samples {
			// Summary samples carry a name suffix instead of labels.
			bw.WriteString(f.name + s.labels + " " + s.value + "\n")
		}
	}
	_ = bw.Flush()
}
