// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics defines the controller's Prometheus collectors.
// They live in a standalone package so the controller, watcher, and
// command packages can record measurements without importing each
// other.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Label values for the result dimension of MemberStarts.
const (
	StartResultSuccess         = "success"
	StartResultValidationError = "validation_error"
	StartResultPortExhausted   = "port_exhausted"
	StartResultStartFailed     = "start_failed"
	StartResultTimeout         = "timeout"
)

// Label values for the result dimension of MemberTerminations.
const (
	TerminateResultSuccess         = "success"
	TerminateResultValidationError = "validation_error"
	TerminateResultFailed          = "failed"
)

// Label values for the outcome dimension of WatchOutcomes.
const (
	WatchOutcomeActivated = "activated"
	WatchOutcomeTimedOut  = "timed_out"
	WatchOutcomeFailed    = "failed"
	WatchOutcomeCancelled = "cancelled"
)

var (
	MemberStarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gantry_member_starts_total",
		Help: "Member start attempts by result.",
	}, []string{"result"})

	MemberTerminations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gantry_member_terminations_total",
		Help: "Member termination attempts by result.",
	}, []string{"result"})

	StartDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gantry_member_start_duration_seconds",
		Help:    "Wall time of StartMember including the provisioning poll.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	Members = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gantry_members",
		Help: "Members currently registered.",
	})

	Clusters = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gantry_clusters",
		Help: "Clusters currently registered.",
	})

	PortsAllocated = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gantry_ports_allocated",
		Help: "Proxy ports allocated per backend cluster.",
	}, []string{"backend_cluster"})

	WatchersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gantry_watchers_active",
		Help: "Instance watchers currently running.",
	})

	WatchOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gantry_watch_outcomes_total",
		Help: "Instance watcher terminal states by outcome.",
	}, []string{"outcome"})

	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gantry_events_published_total",
		Help: "Lifecycle events handed to the publisher by event type.",
	}, []string{"event_type"})
)

// Register registers all controller collectors on the given registry
// (or the default registry if nil). Double registration of the same
// collector is tolerated so tests and embedded uses can call Register
// freely.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	collectors := []prometheus.Collector{
		MemberStarts,
		MemberTerminations,
		StartDuration,
		Members,
		Clusters,
		PortsAllocated,
		WatchersActive,
		WatchOutcomes,
		EventsPublished,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
