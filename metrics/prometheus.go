// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vechain/epochdb/log"
)

const namespace = "epochdb"

var logger = log.WithContext("pkg", "metrics")

// InitializePrometheusMetrics switches the meters created from now on to prometheus.
// Calling it again keeps the existing registry.
func InitializePrometheusMetrics() {
	if _, ok := current.(*promRegistry); !ok {
		current = &promRegistry{}
	}
}

type promRegistry struct {
	meters sync.Map // kind:name => meter
}

func loadOrCreate[T any](r *promRegistry, key string, create func() (T, prometheus.Collector)) T {
	if m, ok := r.meters.Load(key); ok {
		return m.(T)
	}
	m, c := create()
	actual, loaded := r.meters.LoadOrStore(key, m)
	if !loaded {
		if err := prometheus.Register(c); err != nil {
			logger.Warn("unable to register metric", "key", key, "err", err)
		}
	}
	return actual.(T)
}

func floatBuckets(buckets []int64) []float64 {
	if len(buckets) == 0 {
		return nil
	}
	fb := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		fb = append(fb, float64(b))
	}
	return fb
}

func (r *promRegistry) histogramVec(name string, labels []string, buckets []int64) HistogramVecMeter {
	return loadOrCreate(r, "histogramVec:"+name, func() (HistogramVecMeter, prometheus.Collector) {
		h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Buckets:   floatBuckets(buckets),
		}, labels)
		return promHistogramVec{h}, h
	})
}

func (r *promRegistry) counterVec(name string, labels []string) CountVecMeter {
	return loadOrCreate(r, "counterVec:"+name, func() (CountVecMeter, prometheus.Collector) {
		c := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name}, labels)
		return promCounterVec{c}, c
	})
}

func (r *promRegistry) gauge(name string) GaugeMeter {
	return loadOrCreate(r, "gauge:"+name, func() (GaugeMeter, prometheus.Collector) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name})
		return promGauge{g}, g
	})
}

func (r *promRegistry) gaugeVec(name string, labels []string) GaugeVecMeter {
	return loadOrCreate(r, "gaugeVec:"+name, func() (GaugeVecMeter, prometheus.Collector) {
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name}, labels)
		return promGaugeVec{g}, g
	})
}

func (r *promRegistry) handler() http.Handler {
	return promhttp.Handler()
}

type promHistogramVec struct{ vec *prometheus.HistogramVec }

func (m promHistogramVec) ObserveWithLabels(v int64, labels map[string]string) {
	m.vec.With(labels).Observe(float64(v))
}

type promCounterVec struct{ vec *prometheus.CounterVec }

func (m promCounterVec) AddWithLabel(v int64, labels map[string]string) {
	m.vec.With(labels).Add(float64(v))
}

type promGauge struct{ g prometheus.Gauge }

func (m promGauge) Add(v int64) { m.g.Add(float64(v)) }
func (m promGauge) Set(v int64) { m.g.Set(float64(v)) }

type promGaugeVec struct{ vec *prometheus.GaugeVec }

func (m promGaugeVec) AddWithLabel(v int64, labels map[string]string) {
	m.vec.With(labels).Add(float64(v))
}

func (m promGaugeVec) SetWithLabel(v int64, labels map[string]string) {
	m.vec.With(labels).Set(float64(v))
}
