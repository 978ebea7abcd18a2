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

const (
	// Session has no cycle in progress.
	StateIdle = "Idle"

	// HEAD probe was sent and succeeded at the transport level.
	StateHeadIssued = "HeadIssued"

	// Probe metadata passed the policy.
	StateValidated = "Validated"

	// GET or POST was sent.
	StateBodyIssued = "BodyIssued"

	// Body was received within the limit.
	StateComplete = "Complete"

	// Cycle ended with an error record.
	StateFailed = "Failed"
)

const (
	EventProbe    = "Probe"
	EventValidate = "Validate"
	EventIssue    = "Issue"
	EventComplete = "Complete"
	EventFail     = "Fail"
	EventReset    = "Reset"
)
