// Package metrics defines the prometheus collectors shared by the client
// layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts outbound API requests by method and response
	// status. Transport failures are recorded with status "error".
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripcrew_api_requests_total",
		Help: "Outbound API requests by method and status.",
	}, []string{"method", "status"})

	// RenewalsTotal counts access-token renewal attempts by result.
	RenewalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripcrew_token_renewals_total",
		Help: "Access token renewal attempts by result.",
	}, []string{"result"})

	// ViewRefreshDuration observes how long a full aggregate-view refresh
	// takes, labelled by terminal result.
	ViewRefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tripcrew_view_refresh_duration_seconds",
		Help:    "Duration of aggregate view refreshes.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	// NotificationsTotal counts events received on the realtime channel.
	NotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripcrew_notifications_received_total",
		Help: "Notifications received over the realtime channel.",
	})
)
