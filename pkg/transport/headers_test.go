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
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"d7y.io/curler/internal/dferrors"
	"d7y.io/curler/pkg/fetcherrors"
)

func TestHeaders(t *testing.T) {
	assert := assert.New(t)

	hs := Headers{{Key: "Accept", Value: "*/*"}}
	replaced := hs.Set("accept", "text/html").Set("X-A", "1")
	assert.Equal(Headers{{Key: "Accept", Value: "*/*"}}, hs)
	assert.Equal(Headers{{Key: "accept", Value: "text/html"}, {Key: "X-A", Value: "1"}}, replaced)

	v, ok := replaced.Get("ACCEPT")
	assert.True(ok)
	assert.Equal("text/html", v)

	removed := replaced.Del("Accept")
	assert.Equal(Headers{{Key: "X-A", Value: "1"}}, removed)
	assert.Len(replaced, 2)
	assert.Equal(removed, removed.Del("missing"))

	h := http.Header{}
	replaced.Apply(h)
	assert.Equal("text/html", h.Get("Accept"))
	assert.Equal([]string{"accept: text/html", "X-A: 1"}, replaced.Lines())
}

func TestParseHeaders(t *testing.T) {
	assert := assert.New(t)

	hs, err := ParseHeaders([]string{"Referer: https://a.com/x", "X-A:1", "x-a: 2"})
	assert.NoError(err)
	assert.Equal(Headers{{Key: "Referer", Value: "https://a.com/x"}, {Key: "x-a", Value: "2"}}, hs)

	_, err = ParseHeaders([]string{"novalue"})
	assert.True(errors.Is(err, dferrors.ErrInvalidHeader))

	_, err = ParseHeader(": value")
	assert.Error(err)
}

func TestRequestConfig(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultRequestConfig()
	assert.Equal(5*time.Second, cfg.Timeout)
	assert.Equal(10, cfg.MaxRedirects)
	assert.True(cfg.FollowRedirects)
	assert.False(cfg.TLSVerify)
	assert.NoError(cfg.Validate())

	cfg.Auth = &Auth{Username: "a"}
	clone := cfg.Clone()
	clone.Auth.Username = "b"
	clone.Headers[0].Value = "close"
	assert.Equal("a", cfg.Auth.Username)
	assert.Equal("keep-alive", cfg.Headers[0].Value)

	cfg.Timeout = -1
	cfg.MaxRedirects = -1
	assert.True(errors.Is(cfg.Validate(), dferrors.ErrInvalidArgument))
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code fetcherrors.Code
	}{
		{name: "nil", err: nil, code: fetcherrors.CodeNone},
		{name: "deadline", err: context.DeadlineExceeded, code: fetcherrors.CodeOperationTimedout},
		{name: "canceled", err: context.Canceled, code: fetcherrors.CodeUnknown},
		{name: "canceled request", err: &url.Error{Op: "Get", URL: "https://a.com", Err: context.Canceled}, code: fetcherrors.CodeUnknown},
		{name: "net timeout", err: timeoutError{}, code: fetcherrors.CodeOperationTimedout},
		{name: "unknown authority", err: x509.UnknownAuthorityError{}, code: fetcherrors.CodePeerFailedVerification},
		{name: "hostname", err: x509.HostnameError{}, code: fetcherrors.CodePeerFailedVerification},
		{name: "tls record", err: tls.RecordHeaderError{Msg: "bad"}, code: fetcherrors.CodeSSLConnectError},
		{name: "partial", err: io.ErrUnexpectedEOF, code: fetcherrors.CodePartialFile},
		{name: "empty reply", err: io.EOF, code: fetcherrors.CodeGotNothing},
		{name: "aborted", err: errAborted, code: fetcherrors.CodeAbortedByCallback},
		{name: "other", err: errors.New("boom"), code: fetcherrors.CodeUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, Classify(tc.err))
		})
	}
}

func TestTransportOption(t *testing.T) {
	assert := assert.New(t)

	opt, err := ParseTransportOption([]byte("proxy: http://127.0.0.1:3128\nmaxIdleConns: 7\nidleConnTimeout: 3s\ntlsHandshakeTimeout: 2s\n"))
	assert.NoError(err)
	assert.Equal(7, opt.MaxIdleConns)
	assert.Equal(3*time.Second, opt.IdleConnTimeout)

	base := DefaultTransport()
	assert.NoError(opt.Apply(base))
	assert.Equal(7, base.MaxIdleConns)
	assert.Equal(2*time.Second, base.TLSHandshakeTimeout)

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	proxy, err := base.Proxy(req)
	assert.NoError(err)
	assert.Equal("127.0.0.1:3128", proxy.Host)

	_, err = ParseTransportOption([]byte("maxIdleConns: [oops"))
	assert.Error(err)

	var nilOpt *TransportOption
	assert.NoError(nilOpt.Apply(base))
}

func TestMetadataMimeType(t *testing.T) {
	meta := NewMetadata(http.MethodHead, "http://a.com")
	assert.Equal(t, int64(-1), meta.DeclaredContentLength)
	assert.Equal(t, "", meta.MimeType())

	meta.ContentType = " Text/HTML ; charset=UTF-8"
	assert.Equal(t, "text/html", meta.MimeType())
}
