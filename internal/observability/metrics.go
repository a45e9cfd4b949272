package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OffersPushed     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "courier_dispatch", Name: "offers_pushed_total", Help: "Offers delivered over open realtime connections"})
	PushFallbacks    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "courier_dispatch", Name: "push_fallbacks_total", Help: "Offers routed to push notification delivery"})
	Accepts          = promauto.NewCounter(prometheus.CounterOpts{Namespace: "courier_dispatch", Name: "accepts_total", Help: "Successful booking assignments"})
	AcceptConflicts  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "courier_dispatch", Name: "accept_conflicts_total", Help: "Accept attempts that lost the assignment race"})
	Declines         = promauto.NewCounter(prometheus.CounterOpts{Namespace: "courier_dispatch", Name: "declines_total", Help: "Recorded offer declines"})
	AutoCancels      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "courier_dispatch", Name: "auto_cancels_total", Help: "Bookings cancelled by the timeout policy"})
	ThresholdCancels = promauto.NewCounter(prometheus.CounterOpts{Namespace: "courier_dispatch", Name: "threshold_cancels_total", Help: "Bookings cancelled after too many declines"})
	RidersOnline     = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "courier_dispatch", Name: "riders_online", Help: "Riders with a live presence entry"})
)
