// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package metrics provides the meters used across the store.
//
// Meters are no-op until InitializePrometheusMetrics is called. Package level
// meters should be declared with the LazyLoad helpers, so they bind to the
// registry in effect at first use rather than at package init.
package metrics

import (
	"net/http"
	"sync"
)

// registry creates and caches meters by name.
type registry interface {
	histogramVec(name string, labels []string, buckets []int64) HistogramVecMeter
	counterVec(name string, labels []string) CountVecMeter
	gauge(name string) GaugeMeter
	gaugeVec(name string, labels []string) GaugeVecMeter
	handler() http.Handler
}

var current registry = noopRegistry{}

// BucketOpMicros buckets state operation durations in microseconds.
var BucketOpMicros = []int64{
	1, 5, 10, 25, 50, 100, 250, 500,
	1000, 2500, 5000, 10_000, 50_000, 100_000, 1_000_000,
}

// HistogramVecMeter aggregates observations into buckets, per label set.
type HistogramVecMeter interface {
	ObserveWithLabels(int64, map[string]string)
}

// CountVecMeter is a monotonically increasing counter per label set.
type CountVecMeter interface {
	AddWithLabel(int64, map[string]string)
}

// GaugeMeter is a single value which can go up and down.
type GaugeMeter interface {
	Add(int64)
	Set(int64)
}

// GaugeVecMeter is a gauge per label set.
type GaugeVecMeter interface {
	AddWithLabel(int64, map[string]string)
	SetWithLabel(int64, map[string]string)
}

// HTTPHandler returns the handler serving the meters. Nil if metrics are disabled.
func HTTPHandler() http.Handler {
	return current.handler()
}

func HistogramVec(name string, labels []string, buckets []int64) HistogramVecMeter {
	return current.histogramVec(name, labels, buckets)
}

func CounterVec(name string, labels []string) CountVecMeter {
	return current.counterVec(name, labels)
}

func Gauge(name string) GaugeMeter {
	return current.gauge(name)
}

func GaugeVec(name string, labels []string) GaugeVecMeter {
	return current.gaugeVec(name, labels)
}

// LazyLoad defers f to the first call of the returned func, and caches its result.
func LazyLoad[T any](f func() T) func() T {
	var (
		once   sync.Once
		result T
	)
	return func() T {
		once.Do(func() { result = f() })
		return result
	}
}

func LazyLoadHistogramVec(name string, labels []string, buckets []int64) func() HistogramVecMeter {
	return LazyLoad(func() HistogramVecMeter { return HistogramVec(name, labels, buckets) })
}

func LazyLoadCounterVec(name string, labels []string) func() CountVecMeter {
	return LazyLoad(func() CountVecMeter { return CounterVec(name, labels) })
}

func LazyLoadGauge(name string) func() GaugeMeter {
	return LazyLoad(func() GaugeMeter { return Gauge(name) })
}

func LazyLoadGaugeVec(name string, labels []string) func() GaugeVecMeter {
	return LazyLoad(func() GaugeVecMeter { return GaugeVec(name, labels) })
}
