package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache load outcomes.
const (
	CacheHit     = "hit"
	CacheRefresh = "refresh"
	CacheScan    = "scan"
	CacheCorrupt = "corrupt"
)

var (
	CacheLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dvk_cache_loads_total",
			Help: "Directory loads by cache outcome",
		},
		[]string{"result"},
	)

	CacheSaveErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dvk_cache_save_errors_total",
			Help: "Snapshot or index list writes that failed",
		},
	)

	RecordsInvalid = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dvk_records_invalid_total",
			Help: "Record files rejected while parsing",
		},
	)

	CatalogRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dvk_catalog_records",
			Help: "Records held by the most recently loaded catalog",
		},
	)

	LoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dvk_load_duration_seconds",
			Help:    "Full catalog load duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
