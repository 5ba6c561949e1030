package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	SweepWindowDaily   = "daily"
	SweepWindowMonthly = "monthly"
)

const (
	SweepJobReasonDeadlineExceeded = "deadline_exceeded"
	SweepJobReasonDB               = "db"
	SweepJobReasonLockUnavailable  = "lock_unavailable"
	SweepJobReasonUnknown          = "unknown"
)

// SweeperMetrics captures reset sweeper health signals.
type SweeperMetrics struct {
	jobRuns       *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobTimeouts   *prometheus.CounterVec
	jobErrors     *prometheus.CounterVec
	jobSkips      *prometheus.CounterVec
	accountsReset *prometheus.CounterVec
}

var (
	sweeperMetricsOnce sync.Once
	sweeperMetrics     *SweeperMetrics
)

// Sweeper returns the singleton sweeper metrics registry.
func Sweeper() *SweeperMetrics {
	return SweeperWithConfig(Config{})
}

// SweeperWithConfig returns the singleton sweeper metrics registry using config labels.
func SweeperWithConfig(cfg Config) *SweeperMetrics {
	sweeperMetricsOnce.Do(func() {
		sweeperMetrics = newSweeperMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return sweeperMetrics
}

// ResetSweeperMetricsForTest resets the sweeper metrics singleton for tests.
func ResetSweeperMetricsForTest() {
	sweeperMetricsOnce = sync.Once{}
	sweeperMetrics = nil
}

func newSweeperMetrics(registerer prometheus.Registerer, cfg Config) *SweeperMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "reelforge"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "reelforge_sweeper_job_runs_total",
		Help:        "Reset sweeper job runs by window.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "reelforge_sweeper_job_duration_seconds",
		Help:        "Reset sweeper job latency.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "reelforge_sweeper_job_timeouts_total",
		Help:        "Reset sweeper jobs cut short by their deadline.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "reelforge_sweeper_job_errors_total",
		Help:        "Reset sweeper job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	jobSkips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "reelforge_sweeper_job_skips_total",
		Help:        "Reset sweeper runs skipped because another replica held the lock.",
		ConstLabels: constLabels,
	}, []string{"job"})
	accountsReset := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "reelforge_sweeper_accounts_reset_total",
		Help:        "Credit accounts whose usage window was zeroed by a sweep.",
		ConstLabels: constLabels,
	}, []string{"window"})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		jobSkips,
		accountsReset,
	)

	return &SweeperMetrics{
		jobRuns:       jobRuns,
		jobDuration:   jobDuration,
		jobTimeouts:   jobTimeouts,
		jobErrors:     jobErrors,
		jobSkips:      jobSkips,
		accountsReset: accountsReset,
	}
}

func (m *SweeperMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SweeperMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SweeperMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *SweeperMetrics) IncJobError(job string, err error) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySweepJobReason(err)).Inc()
}

func (m *SweeperMetrics) IncJobSkip(job string) {
	if m == nil {
		return
	}
	m.jobSkips.WithLabelValues(job).Inc()
}

func (m *SweeperMetrics) AddAccountsReset(window string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.accountsReset.WithLabelValues(window).Add(float64(count))
}

// ClassifySweepJobReason maps an error to a low-cardinality reason label.
func ClassifySweepJobReason(err error) string {
	switch {
	case err == nil:
		return SweepJobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return SweepJobReasonDeadlineExceeded
	case strings.Contains(err.Error(), "lock"):
		return SweepJobReasonLockUnavailable
	default:
		return SweepJobReasonDB
	}
}
