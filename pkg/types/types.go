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

package types

const (
	// MetricsNamespace is the prometheus namespace of every collector.
	MetricsNamespace = "curler"

	// TransportMetricsName is the subsystem of transport collectors.
	TransportMetricsName = "transport"

	// SessionMetricsName is the subsystem of fetch session collectors.
	SessionMetricsName = "session"
)

const (
	// ChunkSize is the body read buffer size.
	ChunkSize = 32 * 1024
)
