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

// Package fetcherrors defines the single error record a fetch cycle can
// produce, whether it came from the network or from a policy check.
package fetcherrors

import (
	"errors"
	"fmt"
	"strings"

	"d7y.io/curler/pkg/unit"
)

// Kind is the category of a failed fetch cycle.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindStatusPolicy
	KindMimePolicy
	KindSizeLimit
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "Transport"
	case KindStatusPolicy:
		return "StatusPolicy"
	case KindMimePolicy:
		return "MimePolicy"
	case KindSizeLimit:
		return "SizeLimit"
	default:
		return "Unknown"
	}
}

// Symbolic names of policy failures.
const (
	NameStatusPolicy = "CUSTOM_HTTPSTATUSCODE"
	NameMimePolicy   = "CUSTOM_MIME"
	NameSizeLimit    = "CUSTOM_FILESIZE"
)

// Record describes why a fetch cycle failed. A cycle holds at most one.
type Record struct {
	Kind Kind

	// Code is the numeric transport code. It is CodeNone for policy
	// failures.
	Code Code

	// Name is the symbolic form of Code, or one of the CUSTOM_* names for
	// policy failures.
	Name string

	Message string
}

func (r *Record) Error() string {
	return fmt.Sprintf("[%s]%s", r.Name, r.Message)
}

// Is matches another *Record by kind and code, so sentinel-style
// comparisons like errors.Is(err, &Record{Kind: KindSizeLimit}) work.
func (r *Record) Is(target error) bool {
	t, ok := target.(*Record)
	if !ok {
		return false
	}

	if t.Kind != r.Kind {
		return false
	}

	return t.Code == CodeNone || t.Code == r.Code
}

// NewTransport builds a transport record for code, keeping the
// underlying library message.
func NewTransport(code Code, message string) *Record {
	return &Record{
		Kind:    KindTransport,
		Code:    code,
		Name:    code.Name(),
		Message: message,
	}
}

func NewStatusPolicy(status int, url string) *Record {
	return &Record{
		Kind:    KindStatusPolicy,
		Name:    NameStatusPolicy,
		Message: fmt.Sprintf("%d status code received while trying to retrieve %s", status, url),
	}
}

func NewMimePolicy(mimeType string, accepted []string) *Record {
	return &Record{
		Kind:    KindMimePolicy,
		Name:    NameMimePolicy,
		Message: fmt.Sprintf("Mime-type requirement not met. Resource is %s. You were hoping for one of: %s.", mimeType, strings.Join(accepted, ", ")),
	}
}

// NewDeclaredSize reports a Content-Length above the limit, found before any
// body was requested.
func NewDeclaredSize(limit, declared unit.Bytes) *Record {
	return &Record{
		Kind:    KindSizeLimit,
		Name:    NameSizeLimit,
		Message: fmt.Sprintf("File size limit reached. Limit was set to %s. Resource is %s.", limit, declared),
	}
}

// NewStreamedSize reports a body that outgrew the limit while it was being
// received.
func NewStreamedSize(limit, received unit.Bytes) *Record {
	return &Record{
		Kind:    KindSizeLimit,
		Name:    NameSizeLimit,
		Message: fmt.Sprintf("File size limit reached while streaming. Limit was set to %s. Received at least %s.", limit, received),
	}
}

// AsRecord unwraps err into a *Record.
func AsRecord(err error) (*Record, bool) {
	var r *Record
	if errors.As(err, &r) {
		return r, true
	}

	return nil, false
}

// KindOf returns the kind of err, or zero when err is not a *Record.
func KindOf(err error) Kind {
	if r, ok := AsRecord(err); ok {
		return r.Kind
	}

	return 0
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func IsTransport(err error) bool {
	return IsKind(err, KindTransport)
}

func IsSizeLimit(err error) bool {
	return IsKind(err, KindSizeLimit)
}
