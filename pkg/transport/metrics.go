/*
 *     Copyright 2023 The Dragonfly Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transport

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"d7y.io/curler/pkg/types"
)

var (
	transportLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: types.MetricsNamespace,
		Subsystem: types.TransportMetricsName,
		Name:      "latency",
		Help:      "The latency of transport request stages.",
		// promhttp.InstrumentRoundTripperTrace unit is second, the buckets starts from 1 millisecond to 32.768 seconds
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
	}, []string{"stage"})

	requestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: types.MetricsNamespace,
		Subsystem: types.TransportMetricsName,
		Name:      "request_total",
		Help:      "Counter of the number of transport requests.",
	}, []string{"method", "code"})
)

func withTraceRoundTripper(next http.RoundTripper) http.RoundTripper {
	observe := func(stage string) func(float64) {
		return func(f float64) {
			transportLatency.WithLabelValues(stage).Observe(f)
		}
	}

	trace := promhttp.InstrumentTrace{
		GotConn:              observe("GotConn"),
		PutIdleConn:          observe("PutIdleConn"),
		GotFirstResponseByte: observe("GotFirstResponseByte"),
		DNSStart:             observe("DNSStart"),
		DNSDone:              observe("DNSDone"),
		ConnectStart:         observe("ConnectStart"),
		ConnectDone:          observe("ConnectDone"),
		TLSHandshakeStart:    observe("TLSHandshakeStart"),
		TLSHandshakeDone:     observe("TLSHandshakeDone"),
		WroteHeaders:         observe("WroteHeaders"),
		WroteRequest:         observe("WroteRequest"),
	}

	return promhttp.InstrumentRoundTripperTrace(&trace, next)
}
