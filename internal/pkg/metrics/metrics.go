// Package metrics exposes Prometheus counters for the relay pipeline.
//
// A nil *Registry is valid and records nothing, so callers do not need to
// branch on whether metrics are enabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inboxed"

// Registry owns the Prometheus registry and the application collectors.
type Registry struct {
	reg         *prometheus.Registry
	submissions *prometheus.CounterVec
	cleanup     *prometheus.CounterVec
	dispatch    *prometheus.HistogramVec
}

// New builds a Registry with process and Go runtime collectors included.
func New() (*Registry, error) {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "form_submissions_total",
			Help:      "Form submissions by outcome.",
		}, []string{"outcome"}),
		cleanup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachment_cleanup_files_total",
			Help:      "Temporary attachment files by cleanup result.",
		}, []string{"result"}),
		dispatch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "email_dispatch_duration_seconds",
			Help:      "Time spent handing emails to the mail transport.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.submissions,
		r.cleanup,
		r.dispatch,
	} {
		if err := r.reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Submission counts one finished submission.
func (r *Registry) Submission(outcome string) {
	if r == nil {
		return
	}
	r.submissions.WithLabelValues(outcome).Inc()
}

// Cleanup counts the files handled by one cleanup batch.
func (r *Registry) Cleanup(removed, failed, abandoned int) {
	if r == nil {
		return
	}
	r.cleanup.WithLabelValues("removed").Add(float64(removed))
	r.cleanup.WithLabelValues("failed").Add(float64(failed))
	r.cleanup.WithLabelValues("abandoned").Add(float64(abandoned))
}

// Dispatch observes one transport call.
func (r *Registry) Dispatch(d time.Duration, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.dispatch.WithLabelValues(result).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
