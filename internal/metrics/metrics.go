package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	merges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfmerge",
			Name:      "merges_total",
			Help:      "Total merges by result (success, error) and output mode",
		},
		[]string{"result", "mode"},
	)

	mergeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfmerge",
			Name:      "merge_duration_seconds",
			Help:      "Duration of merges by output mode",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	pagesMerged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdfmerge",
			Name:      "pages_merged_total",
			Help:      "Total pages written to merged documents",
		},
	)

	sources = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfmerge",
			Name:      "sources_total",
			Help:      "Sources added to planners by kind (file, http, s3, bytes)",
		},
		[]string{"kind"},
	)

	tempRemoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfmerge",
			Name:      "temp_files_removed_total",
			Help:      "Temp files removed by reason (merge, sweep)",
		},
		[]string{"reason"},
	)
)

var initOnce sync.Once

// Init registers collectors.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(merges, mergeLatency, pagesMerged, sources, tempRemoved)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveMerge(result, mode string, dur time.Duration) {
	merges.WithLabelValues(result, mode).Inc()
	mergeLatency.WithLabelValues(mode).Observe(dur.Seconds())
}

func AddPagesMerged(n int) { pagesMerged.Add(float64(n)) }
func IncSource(kind string) { sources.WithLabelValues(kind).Inc() }

func AddTempRemoved(n int) { tempRemoved.WithLabelValues("merge").Add(float64(n)) }
func AddTempSwept(n int)   { tempRemoved.WithLabelValues("sweep").Add(float64(n)) }
