// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the bridge hub.
//
// # Description
//
// Metrics cover the connection lifecycle and the update/broadcast pipeline:
//   - Active connection gauges (by role)
//   - Update counters (by partition and role)
//   - Rejected inbound counters (by reason)
//   - Broadcast counters and fan-out histogram (by partition)
//   - Dropped delivery counters (by role)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "aerialbridge"

// Subsystem for hub metrics
const hubSubsystem = "hub"

// Reasons recorded on rejected inbound messages.
const (
	ReasonMalformed    = "malformed"
	ReasonUnauthorized = "unauthorized"
	ReasonUnknownPart  = "unknown_partition"
	ReasonUnknownID    = "unknown_entity"
	ReasonRateLimited  = "rate_limited"
	ReasonClosed       = "closed_session"
)

// HubMetrics holds all Prometheus metrics for the state hub.
//
// # Fields
//
//   - ConnectionsActive: Gauge of live websocket sessions by role
//   - ConnectsTotal: Counter of accepted sessions by role
//   - UpdatesTotal: Counter of applied mutations by partition and role
//   - RejectedTotal: Counter of discarded inbound messages by reason
//   - BroadcastsTotal: Counter of fan-outs by partition
//   - DeliveriesDroppedTotal: Counter of per-consumer deliveries dropped
//     because the consumer's send buffer was full or its socket failed
//   - BroadcastFanout: Histogram of consumers reached per broadcast
//
// # Thread Safety
//
// All operations are thread-safe.
type HubMetrics struct {
	ConnectionsActive      *prometheus.GaugeVec
	ConnectsTotal          *prometheus.CounterVec
	UpdatesTotal           *prometheus.CounterVec
	RejectedTotal          *prometheus.CounterVec
	BroadcastsTotal        *prometheus.CounterVec
	DeliveriesDroppedTotal *prometheus.CounterVec
	BroadcastFanout        prometheus.Histogram
}

// DefaultMetrics is the singleton instance of HubMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *HubMetrics

// InitMetrics initializes the default metrics instance against the global
// Prometheus registry. Call once at application startup; repeated calls
// return the existing instance.
func InitMetrics() *HubMetrics {
	if DefaultMetrics == nil {
		DefaultMetrics = newMetrics(prometheus.DefaultRegisterer)
	}
	return DefaultMetrics
}

// NewMetrics creates a HubMetrics instance registered against the given
// registerer. Tests use this with a private registry to avoid global
// registration conflicts.
func NewMetrics(reg prometheus.Registerer) *HubMetrics {
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *HubMetrics {
	factory := promauto.With(reg)

	return &HubMetrics{
		ConnectionsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: hubSubsystem,
				Name:      "connections_active",
				Help:      "Number of live websocket sessions by role",
			},
			[]string{"role"},
		),

		ConnectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: hubSubsystem,
				Name:      "connects_total",
				Help:      "Total accepted websocket sessions by role",
			},
			[]string{"role"},
		),

		UpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: hubSubsystem,
				Name:      "updates_total",
				Help:      "Total applied state mutations by partition and role",
			},
			[]string{"partition", "role"},
		),

		RejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: hubSubsystem,
				Name:      "inbound_rejected_total",
				Help:      "Total inbound messages discarded without mutation, by reason",
			},
			[]string{"reason"},
		),

		BroadcastsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: hubSubsystem,
				Name:      "broadcasts_total",
				Help:      "Total fan-outs triggered by partition",
			},
			[]string{"partition"},
		),

		DeliveriesDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: hubSubsystem,
				Name:      "deliveries_dropped_total",
				Help:      "Total per-consumer deliveries dropped (full buffer or dead socket)",
			},
			[]string{"role"},
		),

		BroadcastFanout: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: hubSubsystem,
				Name:      "broadcast_fanout",
				Help:      "Consumers reached per broadcast",
				Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
			},
		),
	}
}

// SessionOpened records an accepted session.
func (m *HubMetrics) SessionOpened(role string) {
	if m == nil {
		return
	}
	m.ConnectsTotal.WithLabelValues(role).Inc()
	m.ConnectionsActive.WithLabelValues(role).Inc()
}

// SessionClosed records a closed session.
func (m *HubMetrics) SessionClosed(role string) {
	if m == nil {
		return
	}
	m.ConnectionsActive.WithLabelValues(role).Dec()
}

// UpdateApplied records one applied mutation.
func (m *HubMetrics) UpdateApplied(partition, role string) {
	if m == nil {
		return
	}
	m.UpdatesTotal.WithLabelValues(partition, role).Inc()
}

// InboundRejected records one discarded inbound message.
func (m *HubMetrics) InboundRejected(reason string) {
	if m == nil {
		return
	}
	m.RejectedTotal.WithLabelValues(reason).Inc()
}

// BroadcastSent records one fan-out and the number of consumers reached.
func (m *HubMetrics) BroadcastSent(partition string, consumers int) {
	if m == nil {
		return
	}
	m.BroadcastsTotal.WithLabelValues(partition).Inc()
	m.BroadcastFanout.Observe(float64(consumers))
}

// DeliveryDropped records one isolated delivery failure.
func (m *HubMetrics) DeliveryDropped(role string) {
	if m == nil {
		return
	}
	m.DeliveriesDroppedTotal.WithLabelValues(role).Inc()
}
