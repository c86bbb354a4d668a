package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casestatus",
		Name:      "lookups_total",
		Help:      "Case lookups by outcome (success or error kind).",
	}, []string{"outcome"})
	metricLookupsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "casestatus",
		Name:      "lookups_in_flight",
		Help:      "Lookups currently holding a browser session.",
	})
	metricLookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "casestatus",
		Name:      "lookup_duration_seconds",
		Help:      "Wall time of a case lookup from browser launch to teardown.",
		Buckets:   []float64{5, 10, 20, 30, 45, 60, 90, 120, 180},
	})
	metricOCRAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casestatus",
		Name:      "captcha_ocr_attempts_total",
		Help:      "OCR passes over CAPTCHA images by engine and whether the answer was accepted.",
	}, []string{"engine", "accepted"})
)
