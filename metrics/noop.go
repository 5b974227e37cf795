// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import "net/http"

type noopRegistry struct{}

func (noopRegistry) histogramVec(string, []string, []int64) HistogramVecMeter { return noopMeter{} }
func (noopRegistry) counterVec(string, []string) CountVecMeter                { return noopMeter{} }
func (noopRegistry) gauge(string) GaugeMeter                                  { return noopMeter{} }
func (noopRegistry) gaugeVec(string, []string) GaugeVecMeter                  { return noopMeter{} }
func (noopRegistry) handler() http.Handler                                    { return nil }

// noopMeter implements every meter interface and drops all values.
type noopMeter struct{}

func (noopMeter) ObserveWithLabels(int64, map[string]string) {}
func (noopMeter) AddWithLabel(int64, map[string]string)      {}
func (noopMeter) SetWithLabel(int64, map[string]string)      {}
func (noopMeter) Add(int64)                                  {}
func (noopMeter) Set(int64)                                  {}
