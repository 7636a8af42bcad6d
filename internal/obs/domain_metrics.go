package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// StatementComputeTotal counts statement assembly outcomes.
	StatementComputeTotal *prometheus.CounterVec
	// StatementCacheTotal counts statement cache lookups by result.
	StatementCacheTotal *prometheus.CounterVec
	// StatementComputeLatency records statement assembly latency in milliseconds.
	StatementComputeLatency prometheus.Histogram
	// MileDiscountAppliedTotal counts statements by mile discount source.
	MileDiscountAppliedTotal *prometheus.CounterVec
	// WarmTasksTotal counts statement warm task outcomes.
	WarmTasksTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		StatementComputeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statement_compute_total",
			Help:      "Count of billing statement assembly outcomes.",
		}, []string{"result"})
		StatementCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statement_cache_total",
			Help:      "Count of statement cache lookups by result.",
		}, []string{"result"})
		StatementComputeLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "statement_compute_duration_ms",
			Help:      "Latency for billing statement assembly in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		})
		MileDiscountAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mile_discount_applied_total",
			Help:      "Count of statements by mile discount source.",
		}, []string{"source"})
		WarmTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statement_warm_tasks_total",
			Help:      "Count of statement warm task outcomes.",
		}, []string{"result"})

		mustRegisterCollector(reg, StatementComputeTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				StatementComputeTotal = v
			}
		})
		mustRegisterCollector(reg, StatementCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				StatementCacheTotal = v
			}
		})
		mustRegisterCollector(reg, StatementComputeLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				StatementComputeLatency = v
			}
		})
		mustRegisterCollector(reg, MileDiscountAppliedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				MileDiscountAppliedTotal = v
			}
		})
		mustRegisterCollector(reg, WarmTasksTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WarmTasksTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
