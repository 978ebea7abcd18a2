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

//go:generate mockgen -destination mocks/transport_mock.go -source transport.go -package mocks

package transport

import (
	"context"
	"net/http"
	"strings"

	"d7y.io/curler/pkg/fetcherrors"
)

// Action tells the transport whether to keep receiving the body.
type Action int

const (
	Continue Action = iota
	Abort
)

// Sink consumes body chunks in arrival order. The chunk is only valid for
// the duration of the call.
type Sink func(chunk []byte) Action

// Request is one HTTP exchange.
type Request struct {
	Method string
	URL    string

	// ContentType and Body are sent with body-bearing methods.
	ContentType string
	Body        []byte

	Config RequestConfig
}

// Metadata describes the outcome of an exchange. Fields the exchange never
// reached keep their zero value, DeclaredContentLength is -1 when unknown.
type Metadata struct {
	Method                string
	HTTPStatus            int
	ResolvedURL           string
	ContentType           string
	DeclaredContentLength int64
	ObservedBytesRead     int64
	Header                http.Header
	TransportError        *fetcherrors.Record
}

// NewMetadata returns metadata for a request that has not completed yet.
func NewMetadata(method, url string) *Metadata {
	return &Metadata{
		Method:                method,
		ResolvedURL:           url,
		DeclaredContentLength: -1,
		Header:                make(http.Header),
	}
}

// MimeType returns the media type of ContentType without parameters,
// lower cased.
func (m *Metadata) MimeType() string {
	mimeType, _, _ := strings.Cut(m.ContentType, ";")
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// Transport executes requests. A non-nil error is always a
// *fetcherrors.Record of kind Transport, and the returned metadata is never
// nil.
type Transport interface {
	Execute(ctx context.Context, req *Request, sink Sink) (*Metadata, error)
}
