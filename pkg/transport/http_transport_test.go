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
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-http-utils/headers"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"golang.org/x/time/rate"

	"d7y.io/curler/pkg/fetcherrors"
	"d7y.io/curler/pkg/types"
)

func TestHTTPTransportTestSuite(t *testing.T) {
	suite.Run(t, new(HTTPTransportTestSuite))
}

type HTTPTransportTestSuite struct {
	suite.Suite
	mock      *httpmock.MockTransport
	transport Transport
}

var (
	normalRawURL   = "https://normal.com/page"
	redirectRawURL = "https://redirect.com/r1"
	cookieRawURL   = "https://cookie.com/"
	postRawURL     = "https://post.com/form"
	largeRawURL    = "https://large.com/blob"
	slowRawURL     = "https://slow.com/"
	dnsRawURL      = "https://nowhere.invalid/"
	refusedRawURL  = "https://refused.com/"
)

var testContent = "<html><body>l am test case</body></html>"

func (suite *HTTPTransportTestSuite) SetupTest() {
	suite.mock = httpmock.NewMockTransport()
	suite.transport = NewHTTPTransport(WithHTTPClient(&http.Client{Transport: suite.mock}))

	suite.mock.RegisterResponder(http.MethodGet, normalRawURL, func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusOK, testContent)
		resp.Header.Set(headers.ContentType, "text/html; charset=utf-8")
		resp.ContentLength = int64(len(testContent))
		resp.Request = req
		return resp, nil
	})

	suite.mock.RegisterResponder(http.MethodHead, normalRawURL, func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusOK, "")
		resp.Header.Set(headers.ContentType, "text/html")
		resp.ContentLength = int64(len(testContent))
		resp.Request = req
		return resp, nil
	})

	for i, next := range []string{"https://redirect.com/r2", "https://redirect.com/r3", normalRawURL} {
		from := redirectRawURL
		if i > 0 {
			from = "https://redirect.com/r" + string(rune('1'+i))
		}
		location := next
		suite.mock.RegisterResponder(http.MethodGet, from, func(req *http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(http.StatusFound, "")
			resp.Header.Set(headers.Location, location)
			resp.Request = req
			return resp, nil
		})
	}

	suite.mock.RegisterResponder(http.MethodGet, cookieRawURL, func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusOK, "ok")
		if c, err := req.Cookie("visit"); err == nil {
			resp = httpmock.NewStringResponse(http.StatusOK, "again:"+c.Value)
		}
		resp.Header.Add("Set-Cookie", "visit=1; Path=/")
		return resp, nil
	})

	suite.mock.RegisterResponder(http.MethodPost, postRawURL, func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		return httpmock.NewStringResponse(http.StatusCreated, req.Header.Get(headers.ContentType)+"|"+string(body)), nil
	})

	suite.mock.RegisterResponder(http.MethodGet, largeRawURL,
		httpmock.NewStringResponder(http.StatusOK, strings.Repeat("x", 3*types.ChunkSize)))

	suite.mock.RegisterResponder(http.MethodGet, slowRawURL, func(req *http.Request) (*http.Response, error) {
		select {
		case <-time.After(5 * time.Second):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
		return httpmock.NewStringResponse(http.StatusOK, "late"), nil
	})

	suite.mock.RegisterResponder(http.MethodGet, dnsRawURL,
		httpmock.NewErrorResponder(&net.DNSError{Err: "no such host", Name: "nowhere.invalid", IsNotFound: true}))

	suite.mock.RegisterResponder(http.MethodGet, refusedRawURL,
		httpmock.NewErrorResponder(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}))
}

func (suite *HTTPTransportTestSuite) collect() (Sink, *[]byte) {
	var body []byte
	return func(chunk []byte) Action {
		body = append(body, chunk...)
		return Continue
	}, &body
}

func (suite *HTTPTransportTestSuite) TestExecuteGet() {
	sink, body := suite.collect()
	meta, err := suite.transport.Execute(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    normalRawURL,
		Config: DefaultRequestConfig(),
	}, sink)

	suite.Nil(err)
	suite.Equal(http.StatusOK, meta.HTTPStatus)
	suite.Equal("text/html; charset=utf-8", meta.ContentType)
	suite.Equal("text/html", meta.MimeType())
	suite.Equal(int64(len(testContent)), meta.DeclaredContentLength)
	suite.Equal(int64(len(testContent)), meta.ObservedBytesRead)
	suite.Equal(normalRawURL, meta.ResolvedURL)
	suite.Nil(meta.TransportError)
	suite.Equal(testContent, string(*body))
}

func (suite *HTTPTransportTestSuite) TestExecuteHeadSkipsBody() {
	called := false
	meta, err := suite.transport.Execute(context.Background(), &Request{
		Method: http.MethodHead,
		URL:    normalRawURL,
		Config: DefaultRequestConfig(),
	}, func([]byte) Action {
		called = true
		return Continue
	})

	suite.Nil(err)
	suite.False(called)
	suite.Equal(int64(0), meta.ObservedBytesRead)
	suite.Equal(int64(len(testContent)), meta.DeclaredContentLength)
}

func (suite *HTTPTransportTestSuite) TestExecuteSendsConfiguredHeaders() {
	var got *http.Request
	suite.mock.RegisterResponder(http.MethodGet, "https://headers.com/", func(req *http.Request) (*http.Response, error) {
		got = req
		return httpmock.NewStringResponse(http.StatusOK, ""), nil
	})

	cfg := DefaultRequestConfig()
	cfg.Auth = &Auth{Username: "user", Password: "secret"}
	cfg.Headers = cfg.Headers.Set(headers.Accept, "text/html").Set("X-Trace", "1")

	_, err := suite.transport.Execute(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    "https://headers.com/",
		Config: cfg,
	}, nil)

	suite.Nil(err)
	suite.Require().NotNil(got)
	suite.Equal(DefaultUserAgent, got.Header.Get(headers.UserAgent))
	suite.Equal("en-us,en;q=0.5", got.Header.Get(headers.AcceptLanguage))
	suite.Equal("keep-alive", got.Header.Get("Connection"))
	suite.Equal("text/html", got.Header.Get(headers.Accept))
	suite.Equal("1", got.Header.Get("X-Trace"))

	user, pass, ok := got.BasicAuth()
	suite.True(ok)
	suite.Equal("user", user)
	suite.Equal("secret", pass)
}

func (suite *HTTPTransportTestSuite) TestExecutePost() {
	sink, body := suite.collect()
	meta, err := suite.transport.Execute(context.Background(), &Request{
		Method:      http.MethodPost,
		URL:         postRawURL,
		ContentType: "application/x-www-form-urlencoded",
		Body:        []byte("a=1&b=2"),
		Config:      DefaultRequestConfig(),
	}, sink)

	suite.Nil(err)
	suite.Equal(http.StatusCreated, meta.HTTPStatus)
	suite.Equal("application/x-www-form-urlencoded|a=1&b=2", string(*body))
}

func (suite *HTTPTransportTestSuite) TestExecuteRedirects() {
	cfg := DefaultRequestConfig()
	meta, err := suite.transport.Execute(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    redirectRawURL,
		Config: cfg,
	}, nil)
	suite.Nil(err)
	suite.Equal(http.StatusOK, meta.HTTPStatus)
	suite.Equal(normalRawURL, meta.ResolvedURL)

	cfg.MaxRedirects = 2
	meta, err = suite.transport.Execute(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    redirectRawURL,
		Config: cfg,
	}, nil)
	suite.True(errors.Is(err, &fetcherrors.Record{Kind: fetcherrors.KindTransport, Code: fetcherrors.CodeTooManyRedirects}))
	suite.Equal(err, meta.TransportError)

	cfg.FollowRedirects = false
	meta, err = suite.transport.Execute(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    redirectRawURL,
		Config: cfg,
	}, nil)
	suite.Nil(err)
	suite.Equal(http.StatusFound, meta.HTTPStatus)
}

func (suite *HTTPTransportTestSuite) TestExecuteSinkAbort() {
	chunks := 0
	meta, err := suite.transport.Execute(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    largeRawURL,
		Config: DefaultRequestConfig(),
	}, func(chunk []byte) Action {
		chunks++
		return Abort
	})

	suite.Equal(1, chunks)
	suite.Equal(fetcherrors.CodeAbortedByCallback, meta.TransportError.Code)
	suite.True(fetcherrors.IsTransport(err))
	suite.LessOrEqual(meta.ObservedBytesRead, int64(types.ChunkSize))
	suite.Greater(meta.ObservedBytesRead, int64(0))
}

func (suite *HTTPTransportTestSuite) TestExecuteRateLimited() {
	sink, body := suite.collect()
	tr := NewHTTPTransport(
		WithHTTPClient(&http.Client{Transport: suite.mock}),
		WithRateLimiter(rate.NewLimiter(rate.Inf, types.ChunkSize)),
	)

	_, err := tr.Execute(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    largeRawURL,
		Config: DefaultRequestConfig(),
	}, sink)
	suite.Nil(err)
	suite.Len(*body, 3*types.ChunkSize)
}

func (suite *HTTPTransportTestSuite) TestExecuteCookieJar() {
	cfg := DefaultRequestConfig()
	cfg.CookieJarPath = filepath.Join(suite.T().TempDir(), "cookies.json")

	sink, body := suite.collect()
	_, err := suite.transport.Execute(context.Background(), &Request{Method: http.MethodGet, URL: cookieRawURL, Config: cfg}, sink)
	suite.Nil(err)
	suite.Equal("ok", string(*body))

	sink, body = suite.collect()
	_, err = suite.transport.Execute(context.Background(), &Request{Method: http.MethodGet, URL: cookieRawURL, Config: cfg}, sink)
	suite.Nil(err)
	suite.Equal("again:1", string(*body))

	data, err := os.ReadFile(cfg.CookieJarPath)
	suite.Nil(err)
	suite.Contains(string(data), "visit")
}

func (suite *HTTPTransportTestSuite) TestExecuteErrors() {
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	tests := []struct {
		name string
		ctx  context.Context
		url  string
		code fetcherrors.Code
	}{
		{name: "unsupported protocol", ctx: context.Background(), url: "ftp://normal.com/file", code: fetcherrors.CodeUnsupportedProtocol},
		{name: "malformed url", ctx: context.Background(), url: "http://[::1", code: fetcherrors.CodeURLMalformat},
		{name: "missing host", ctx: context.Background(), url: "http:///path", code: fetcherrors.CodeURLMalformat},
		{name: "dns failure", ctx: context.Background(), url: dnsRawURL, code: fetcherrors.CodeCouldntResolveHost},
		{name: "connection refused", ctx: context.Background(), url: refusedRawURL, code: fetcherrors.CodeCouldntConnect},
		{name: "timeout", ctx: timeoutCtx, url: slowRawURL, code: fetcherrors.CodeOperationTimedout},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			meta, err := suite.transport.Execute(tc.ctx, &Request{
				Method: http.MethodGet,
				URL:    tc.url,
				Config: DefaultRequestConfig(),
			}, nil)

			record, ok := fetcherrors.AsRecord(err)
			suite.Require().True(ok)
			suite.Equal(tc.code, record.Code)
			suite.Equal(fetcherrors.KindTransport, record.Kind)
			suite.Equal(0, meta.HTTPStatus)
			suite.Equal(int64(-1), meta.DeclaredContentLength)
			suite.Equal(tc.url, meta.ResolvedURL)
		})
	}
}

func (suite *HTTPTransportTestSuite) TestRoundTripperCache() {
	tr := NewHTTPTransport().(*httpTransport)
	cfg := DefaultRequestConfig()

	tr.roundTripper(cfg)
	tr.roundTripper(cfg)
	suite.Len(tr.roundTrippers, 1)

	cfg.TLSVerify = true
	tr.roundTripper(cfg)
	suite.Len(tr.roundTrippers, 2)
}

func TestExecuteTLSVerification(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headers.ContentType, "text/html")
		_, _ = io.WriteString(w, testContent)
	}))
	defer server.Close()

	tests := []struct {
		name      string
		base      *http.Transport
		tlsVerify bool
		expect    func(t *testing.T, meta *Metadata, body []byte, err error)
	}{
		{
			name:      "untrusted certificate rejected",
			base:      DefaultTransport(),
			tlsVerify: true,
			expect: func(t *testing.T, meta *Metadata, body []byte, err error) {
				assert := assert.New(t)
				assert.True(fetcherrors.IsTransport(err))
				assert.Equal(fetcherrors.CodePeerFailedVerification, meta.TransportError.Code)
				assert.Equal("CURLE_PEER_FAILED_VERIFICATION", meta.TransportError.Name)
				assert.Equal(0, meta.HTTPStatus)
				assert.Empty(body)
			},
		},
		{
			name:      "untrusted certificate accepted without verification",
			base:      DefaultTransport(),
			tlsVerify: false,
			expect: func(t *testing.T, meta *Metadata, body []byte, err error) {
				assert := assert.New(t)
				assert.Nil(err)
				assert.Equal(http.StatusOK, meta.HTTPStatus)
				assert.Equal(testContent, string(body))
			},
		},
		{
			name:      "base transport without tls config",
			base:      &http.Transport{},
			tlsVerify: false,
			expect: func(t *testing.T, meta *Metadata, body []byte, err error) {
				assert := assert.New(t)
				assert.Nil(err)
				assert.Equal(http.StatusOK, meta.HTTPStatus)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultRequestConfig()
			cfg.TLSVerify = tc.tlsVerify
			cfg.ConnectTimeout = time.Second

			var body []byte
			meta, err := NewHTTPTransport(WithBaseTransport(tc.base)).Execute(context.Background(), &Request{
				Method: http.MethodGet,
				URL:    server.URL,
				Config: cfg,
			}, func(chunk []byte) Action {
				body = append(body, chunk...)
				return Continue
			})
			tc.expect(t, meta, body, err)
		})
	}
}
