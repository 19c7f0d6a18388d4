package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	electionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "consent",
			Subsystem: "elections",
			Name:      "created_total",
			Help:      "Elections created.",
		},
	)
	electionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "consent",
			Subsystem: "elections",
			Name:      "active",
			Help:      "Elections currently held in memory.",
		},
	)
	votes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "consent",
			Subsystem: "elections",
			Name:      "votes_total",
			Help:      "Ballots received, by whether the current phase accepted them.",
		},
		[]string{"applied"},
	)
	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "consent",
			Subsystem: "elections",
			Name:      "transitions_total",
			Help:      "Step requests, by direction and outcome.",
		},
		[]string{"direction", "outcome"},
	)
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "consent",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events published to election subscribers.",
		},
		[]string{"type"},
	)
	eventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "consent",
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events evicted from a full subscriber buffer.",
		},
	)
	subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "consent",
			Subsystem: "events",
			Name:      "subscribers",
			Help:      "Subscribers currently attached to any election.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "consent",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "consent",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			electionsCreated, electionsActive, votes, transitions,
			eventsPublished, eventsDropped, subscribers,
			httpRequests, httpDuration,
		)
	})
}

func RecordElectionCreated() {
	Register()
	electionsCreated.Inc()
	electionsActive.Inc()
}

func RecordElectionsRemoved(n int) {
	Register()
	electionsActive.Sub(float64(n))
}

func RecordVote(applied bool) {
	Register()
	votes.WithLabelValues(strconv.FormatBool(applied)).Inc()
}

func RecordTransition(direction, outcome string) {
	Register()
	transitions.WithLabelValues(direction, outcome).Inc()
}

func RecordEventPublished(eventType string) {
	Register()
	eventsPublished.WithLabelValues(eventType).Inc()
}

func RecordEventDropped() {
	Register()
	eventsDropped.Inc()
}

func RecordSubscriberAdded() {
	Register()
	subscribers.Inc()
}

func RecordSubscriberRemoved() {
	Register()
	subscribers.Dec()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	Register()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
