// Package metrics exposes the backend's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JoinsRecorded counts attendance rows written.
	JoinsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendly_joins_recorded_total",
		Help: "Attendance records successfully persisted.",
	})

	// JoinsRejected counts join attempts rejected, by reason.
	JoinsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendly_joins_rejected_total",
		Help: "Join attempts rejected before persisting, by reason.",
	}, []string{"reason"})

	// FeedEventsPublished counts live-feed events put on the bus.
	FeedEventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendly_feed_events_published_total",
		Help: "Live attendance events published to the feed bus.",
	})

	// StreamsActive tracks currently open live-stream subscriptions.
	StreamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attendly_live_streams_active",
		Help: "Currently open live attendance stream connections.",
	})

	// SessionsStarted counts class sessions minted.
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendly_sessions_started_total",
		Help: "Class sessions started by teachers.",
	})
)

// Rejection reasons used with JoinsRejected.
const (
	ReasonValidation = "validation"
	ReasonSession    = "session"
	ReasonNetwork    = "network"
	ReasonGeofence   = "geofence"
)
