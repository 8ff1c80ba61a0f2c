/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Seednode/scavenger/hunt"
)

type metrics struct {
	registry *prometheus.Registry

	gamesStarted  prometheus.Counter
	gamesFinished *prometheus.CounterVec
	itemsCaptured *prometheus.CounterVec
	fallbacks     prometheus.Counter
	activeGames   prometheus.Gauge
	finalScores   prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		gamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scavenger_games_started_total",
			Help: "Games that entered the playing phase.",
		}),
		gamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scavenger_games_finished_total",
			Help: "Games that finished, by whether the team ended them or time ran out.",
		}, []string{"reason"}),
		itemsCaptured: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scavenger_items_captured_total",
			Help: "Checklist items captured, by capture mode.",
		}, []string{"mode"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scavenger_capture_fallbacks_total",
			Help: "Captures that fell back to file selection because the camera was unavailable.",
		}),
		activeGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scavenger_active_games",
			Help: "Games currently held in memory.",
		}),
		finalScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scavenger_final_score",
			Help:    "Scores of finished games.",
			Buckets: prometheus.LinearBuckets(-50, 50, 12),
		}),
	}

	m.registry.MustRegister(
		m.gamesStarted,
		m.gamesFinished,
		m.itemsCaptured,
		m.fallbacks,
		m.activeGames,
		m.finalScores,
	)

	return m
}

func (m *metrics) hooks() hunt.Hooks {
	return hunt.Hooks{
		OnTransition: func(from, to hunt.Phase) {
			if to == hunt.PhasePlaying {
				m.gamesStarted.Inc()
			}
		},
		OnFinish: func(expired bool, score int) {
			reason := "ended"
			if expired {
				reason = "expired"
			}
			m.gamesFinished.WithLabelValues(reason).Inc()
			m.finalScores.Observe(float64(score))
		},
		OnCapture: func(_ hunt.Item, mode hunt.Mode) {
			m.itemsCaptured.WithLabelValues(string(mode)).Inc()
		},
	}
}

func (m *metrics) fallback(error) {
	m.fallbacks.Inc()
}
