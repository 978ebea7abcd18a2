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

package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"d7y.io/curler/pkg/types"
)

var (
	cycleCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: types.MetricsNamespace,
		Subsystem: types.SessionMetricsName,
		Name:      "cycle_total",
		Help:      "Counter of finished fetch cycles.",
	}, []string{"method", "outcome"})

	bodyBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: types.MetricsNamespace,
		Subsystem: types.SessionMetricsName,
		Name:      "body_bytes_total",
		Help:      "Counter of body bytes accepted by sessions.",
	})

	cycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: types.MetricsNamespace,
		Subsystem: types.SessionMetricsName,
		Name:      "cycle_duration_seconds",
		Help:      "Histogram of fetch cycle duration.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
	}, []string{"method"})
)
