package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheLookups counts session cache lookups by result
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convstore_session_cache_lookups_total",
		Help: "Session cache lookups by result (hit, miss, corrupt, error)",
	}, []string{"result"})

	// cacheWrites counts session cache writes by result
	cacheWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convstore_session_cache_writes_total",
		Help: "Session cache writes by result (ok, conflict, error)",
	}, []string{"result"})

	materializations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convstore_session_materializations_total",
		Help: "Sessions rebuilt from the conversation log by result",
	}, []string{"result"})

	turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convstore_session_turns_total",
		Help: "Inference turns by result",
	}, []string{"result"})

	// turnDuration tracks end-to-end RunTurn latency
	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "convstore_session_turn_duration_seconds",
		Help:    "RunTurn duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})
)
