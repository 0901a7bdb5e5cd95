package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "club_booking"

// Collectors holds the booking metrics. It satisfies the recorder interfaces of
// the booking service, the reclaimer and the availability projection.
type Collectors struct {
	admissions        *prometheus.CounterVec
	admissionDuration prometheus.Histogram
	cancellations     *prometheus.CounterVec
	reclaimed         prometheus.Counter
	reclaimFailures   prometheus.Counter
	reclaimDuration   prometheus.Histogram
	bookedResources   prometheus.Gauge
	rebuildDuration   prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Booking admission attempts by outcome.",
		}, []string{"outcome"}),
		admissionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admission_duration_seconds",
			Help:      "Time spent admitting a booking, retries included.",
			Buckets:   prometheus.DefBuckets,
		}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellations_total",
			Help:      "Reservation cancellations by outcome.",
		}, []string{"outcome"}),
		reclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reclaimed_reservations_total",
			Help:      "Expired reservations moved to completed.",
		}),
		reclaimFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reclaim_failures_total",
			Help:      "Expired reservations that could not be reclaimed in a cycle.",
		}),
		reclaimDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reclaim_cycle_duration_seconds",
			Help:      "Duration of a reclaim cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		bookedResources: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "booked_resources",
			Help:      "Resources with a live reservation in the latest projection.",
		}),
		rebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "projection_rebuild_duration_seconds",
			Help:      "Duration of an availability projection rebuild.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		c.admissions,
		c.admissionDuration,
		c.cancellations,
		c.reclaimed,
		c.reclaimFailures,
		c.reclaimDuration,
		c.bookedResources,
		c.rebuildDuration,
	)
	return c
}

// AdmissionResult records one admission; an empty reason means admitted.
func (c *Collectors) AdmissionResult(reason string, elapsed time.Duration) {
	outcome := reason
	if outcome == "" {
		outcome = "Admitted"
	}
	c.admissions.WithLabelValues(outcome).Inc()
	c.admissionDuration.Observe(elapsed.Seconds())
}

func (c *Collectors) CancellationResult(outcome string) {
	c.cancellations.WithLabelValues(outcome).Inc()
}

func (c *Collectors) ReclaimResult(reclaimed, failed int, elapsed time.Duration) {
	c.reclaimed.Add(float64(reclaimed))
	c.reclaimFailures.Add(float64(failed))
	c.reclaimDuration.Observe(elapsed.Seconds())
}

func (c *Collectors) ProjectionRebuilt(booked int, elapsed time.Duration) {
	c.bookedResources.Set(float64(booked))
	c.rebuildDuration.Observe(elapsed.Seconds())
}

// Handler exposes the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
