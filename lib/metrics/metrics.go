// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes the hub's Prometheus metrics.
//
// Registry-derived gauges (applications, running sessions, items,
// attention) are computed at scrape time from a [RegistryStats], so
// nothing has to be updated from inside registry callbacks. Counters
// for registry events and socket requests are updated as they happen.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bureau-foundation/inbox/lib/schema"
	"github.com/bureau-foundation/inbox/lib/service"
)

const namespace = "inbox"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// RegistryStats is the read side of the application registry.
type RegistryStats interface {
	Applications() []schema.Application
	DrawsAttention() bool
}

// HubMetrics holds the hub's metrics.
type HubMetrics struct {
	Events          *prometheus.CounterVec
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Subscribers     prometheus.Gauge
	Resyncs         prometheus.Counter
}

// NewHubMetrics creates and registers the hub's metrics on reg.
func NewHubMetrics(reg prometheus.Registerer, stats RegistryStats) *HubMetrics {
	m := &HubMetrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "events_total",
			Help:      "Total number of registry events, by kind.",
		}, []string{"kind"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "socket",
			Name:      "requests_total",
			Help:      "Total number of hub socket requests, by action and status.",
		}, []string{"action", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "socket",
			Name:      "request_duration_seconds",
			Help:      "Hub socket request duration in seconds, by action.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"action"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "socket",
			Name:      "subscribers",
			Help:      "Number of open subscribe streams.",
		}),
		Resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "socket",
			Name:      "subscriber_resyncs_total",
			Help:      "Total number of subscribe streams that fell behind and were resent a snapshot.",
		}),
	}

	reg.MustRegister(m.Events, m.Requests, m.RequestDuration, m.Subscribers, m.Resyncs)
	reg.MustRegister(&registryCollector{stats: stats})
	return m
}

// ObserveEvent counts a registry event. Safe to call from a registry
// listener.
func (m *HubMetrics) ObserveEvent(event schema.Event) {
	m.Events.WithLabelValues(string(event.Kind)).Inc()
}

// Instrument wraps handler to count and time its requests.
func (m *HubMetrics) Instrument(action string, handler service.ActionFunc) service.ActionFunc {
	return func(ctx context.Context, raw []byte) (any, error) {
		start := time.Now()
		result, err := handler(ctx, raw)
		m.RequestDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
		m.Requests.WithLabelValues(action, requestStatus(err)).Inc()
		return result, err
	}
}

func requestStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

var (
	applicationsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "registry", "applications"),
		"Number of registered applications, by whether a session is running.",
		[]string{"running"}, nil,
	)
	itemsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "registry", "items"),
		"Number of published items, by type.",
		[]string{"type"}, nil,
	)
	attentionDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "registry", "draws_attention"),
		"1 if any application has sources or messages.",
		nil, nil,
	)
)

// registryCollector reads the registry at scrape time.
type registryCollector struct {
	stats RegistryStats
}

func (c *registryCollector) Describe(descriptors chan<- *prometheus.Desc) {
	descriptors <- applicationsDesc
	descriptors <- itemsDesc
	descriptors <- attentionDesc
}

func (c *registryCollector) Collect(metrics chan<- prometheus.Metric) {
	var running, stopped, sources, messages float64
	for _, application := range c.stats.Applications() {
		if application.Running {
			running++
		} else {
			stopped++
		}
		sources += float64(len(application.Sources))
		messages += float64(len(application.Messages))
	}
	attention := 0.0
	if c.stats.DrawsAttention() {
		attention = 1
	}

	metrics <- prometheus.MustNewConstMetric(applicationsDesc, prometheus.GaugeValue, running, "true")
	metrics <- prometheus.MustNewConstMetric(applicationsDesc, prometheus.GaugeValue, stopped, "false")
	metrics <- prometheus.MustNewConstMetric(itemsDesc, prometheus.GaugeValue, sources, "source")
	metrics <- prometheus.MustNewConstMetric(itemsDesc, prometheus.GaugeValue, messages, "message")
	metrics <- prometheus.MustNewConstMetric(attentionDesc, prometheus.GaugeValue, attention)
}
