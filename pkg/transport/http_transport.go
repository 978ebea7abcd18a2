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
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-http-utils/headers"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	logger "d7y.io/curler/internal/dflog"
	"d7y.io/curler/pkg/cookiejar"
	"d7y.io/curler/pkg/fetcherrors"
	"d7y.io/curler/pkg/ratelimiter/limitreader"
	"d7y.io/curler/pkg/types"
)

const (
	HTTPScheme  = "http"
	HTTPSScheme = "https"
)

var _ Transport = (*httpTransport)(nil)

type roundTripperKey struct {
	connectTimeout time.Duration
	tlsVerify      bool
}

// httpTransport is an implementation of Transport on net/http.
type httpTransport struct {
	client  *http.Client
	base    *http.Transport
	limiter *rate.Limiter

	mu            sync.Mutex
	roundTrippers map[roundTripperKey]http.RoundTripper
	jars          map[string]*cookiejar.Jar
}

// HTTPTransportOption configures the HTTP transport.
type HTTPTransportOption func(t *httpTransport)

// WithHTTPClient routes every request through client's RoundTripper. The
// client's transport then owns dial and TLS settings, and RequestConfig's
// ConnectTimeout and TLSVerify are not applied.
func WithHTTPClient(client *http.Client) HTTPTransportOption {
	return func(t *httpTransport) {
		t.client = client
	}
}

// WithBaseTransport sets the transport cloned for each request
// configuration.
func WithBaseTransport(base *http.Transport) HTTPTransportOption {
	return func(t *httpTransport) {
		t.base = base
	}
}

// WithRateLimiter throttles body reads.
func WithRateLimiter(limiter *rate.Limiter) HTTPTransportOption {
	return func(t *httpTransport) {
		t.limiter = limiter
	}
}

// NewHTTPTransport returns a Transport backed by net/http.
func NewHTTPTransport(opts ...HTTPTransportOption) Transport {
	t := &httpTransport{
		base:          DefaultTransport(),
		roundTrippers: make(map[roundTripperKey]http.RoundTripper),
		jars:          make(map[string]*cookiejar.Jar),
	}

	for i := range opts {
		opts[i](t)
	}

	return t
}

func (t *httpTransport) Execute(ctx context.Context, req *Request, sink Sink) (*Metadata, error) {
	meta := NewMetadata(req.Method, req.URL)
	log := logger.With("method", req.Method, "url", req.URL)

	record := t.execute(ctx, req, sink, meta)
	if record != nil {
		log.Warnf("request failed: %s", record.Error())
		requestCount.WithLabelValues(req.Method, record.Name).Inc()
		meta.TransportError = record
		return meta, record
	}

	log.Debugf("request finished with status %d, %d bytes read", meta.HTTPStatus, meta.ObservedBytesRead)
	requestCount.WithLabelValues(req.Method, fmt.Sprint(meta.HTTPStatus)).Inc()
	return meta, nil
}

func (t *httpTransport) execute(ctx context.Context, req *Request, sink Sink, meta *Metadata) *fetcherrors.Record {
	u, err := url.Parse(req.URL)
	if err != nil {
		return fetcherrors.NewTransport(fetcherrors.CodeURLMalformat, err.Error())
	}

	if u.Scheme != HTTPScheme && u.Scheme != HTTPSScheme {
		return fetcherrors.NewTransport(fetcherrors.CodeUnsupportedProtocol, fmt.Sprintf("protocol %q not supported", u.Scheme))
	}

	if u.Host == "" {
		return fetcherrors.NewTransport(fetcherrors.CodeURLMalformat, fmt.Sprintf("no host in url %q", req.URL))
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return fetcherrors.NewTransport(fetcherrors.CodeURLMalformat, err.Error())
	}

	cfg := req.Config
	if cfg.UserAgent != "" {
		httpReq.Header.Set(headers.UserAgent, cfg.UserAgent)
	}

	if req.ContentType != "" {
		httpReq.Header.Set(headers.ContentType, req.ContentType)
	}

	if cfg.Auth != nil {
		httpReq.SetBasicAuth(cfg.Auth.Username, cfg.Auth.Password)
	}

	cfg.Headers.Apply(httpReq.Header)

	client, jar, err := t.clientFor(cfg)
	if err != nil {
		return fetcherrors.NewTransport(fetcherrors.CodeWriteError, err.Error())
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return newTransportRecord(err)
	}
	defer resp.Body.Close()

	if jar != nil {
		defer func() {
			if err := jar.Save(); err != nil {
				logger.Warnf("save cookie jar %s error: %s", jar.Path(), err)
			}
		}()
	}

	meta.HTTPStatus = resp.StatusCode
	meta.ContentType = resp.Header.Get(headers.ContentType)
	meta.DeclaredContentLength = resp.ContentLength
	meta.Header = resp.Header.Clone()
	meta.ResolvedURL = httpReq.URL.String()
	if resp.Request != nil && resp.Request.URL != nil {
		meta.ResolvedURL = resp.Request.URL.String()
	}

	if sink == nil || req.Method == http.MethodHead {
		return nil
	}

	var reader io.Reader = resp.Body
	if t.limiter != nil {
		reader = limitreader.NewLimitReader(ctx, reader, t.limiter)
	}

	buf := make([]byte, types.ChunkSize)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			meta.ObservedBytesRead += int64(n)
			if sink(buf[:n]) == Abort {
				return newTransportRecord(errAborted)
			}
		}

		if err == io.EOF {
			return nil
		}

		if err != nil {
			return newTransportRecord(err)
		}
	}
}

func (t *httpTransport) clientFor(cfg RequestConfig) (*http.Client, *cookiejar.Jar, error) {
	client := &http.Client{
		Transport:     t.roundTripper(cfg),
		Timeout:       cfg.Timeout,
		CheckRedirect: checkRedirect(cfg),
	}

	if cfg.CookieJarPath == "" {
		if t.client != nil {
			client.Jar = t.client.Jar
		}
		return client, nil, nil
	}

	jar, err := t.jar(cfg.CookieJarPath)
	if err != nil {
		return nil, nil, err
	}

	client.Jar = jar
	return client, jar, nil
}

func (t *httpTransport) roundTripper(cfg RequestConfig) http.RoundTripper {
	if t.client != nil {
		if t.client.Transport != nil {
			return t.client.Transport
		}
		return http.DefaultTransport
	}

	key := roundTripperKey{connectTimeout: cfg.ConnectTimeout, tlsVerify: cfg.TLSVerify}

	t.mu.Lock()
	defer t.mu.Unlock()
	if rt, ok := t.roundTrippers[key]; ok {
		return rt
	}

	base := t.base.Clone()
	if cfg.ConnectTimeout > 0 {
		base.DialContext = (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext
	}

	if base.TLSClientConfig == nil {
		base.TLSClientConfig = &tls.Config{}
	}
	base.TLSClientConfig.InsecureSkipVerify = !cfg.TLSVerify

	rt := withTraceRoundTripper(base)
	t.roundTrippers[key] = rt
	return rt
}

func (t *httpTransport) jar(path string) (*cookiejar.Jar, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if jar, ok := t.jars[path]; ok {
		return jar, nil
	}

	jar, err := cookiejar.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open cookie jar %s", path)
	}

	t.jars[path] = jar
	return jar, nil
}

func checkRedirect(cfg RequestConfig) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if !cfg.FollowRedirects {
			return http.ErrUseLastResponse
		}

		if len(via) > cfg.MaxRedirects {
			return errors.Wrapf(errTooManyRedirects, "limit %d", cfg.MaxRedirects)
		}

		return nil
	}
}
