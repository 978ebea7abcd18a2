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

// Package fetch runs probe-then-fetch cycles: a HEAD request whose metadata
// is checked against a policy before the body is requested and streamed
// under a size limit.
package fetch

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-http-utils/headers"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"d7y.io/curler/internal/dferrors"
	logger "d7y.io/curler/internal/dflog"
	"d7y.io/curler/pkg/charset"
	"d7y.io/curler/pkg/cookiejar"
	"d7y.io/curler/pkg/fetcherrors"
	"d7y.io/curler/pkg/mime"
	"d7y.io/curler/pkg/policy"
	"d7y.io/curler/pkg/transport"
	"d7y.io/curler/pkg/unit"
)

const formContentType = "application/x-www-form-urlencoded"

// Payload is the body of a POST request.
type Payload struct {
	ContentType string
	Body        []byte
}

// FormPayload encodes fields as an urlencoded form.
func FormPayload(fields url.Values) *Payload {
	return &Payload{
		ContentType: formContentType,
		Body:        []byte(fields.Encode()),
	}
}

// Session owns a request configuration and a policy and runs one fetch
// cycle at a time. A concurrent call while a cycle runs fails with
// dferrors.ErrSessionBusy.
type Session struct {
	// ID identifies the session in logs.
	ID string

	// FSM tracks the cycle state.
	FSM *fsm.FSM

	transport transport.Transport
	registry  *mime.Registry
	resolver  *policy.Resolver
	policy    policy.Policy
	config    transport.RequestConfig
	progress  func(read int64)

	busy *atomic.Bool
	log  *logger.SugaredLoggerOnWith

	headURL   string
	head      *transport.Metadata
	bodyMeta  *transport.Metadata
	body      []byte
	lastError *fetcherrors.Record
}

// Option configures a Session.
type Option func(s *Session)

// WithTransport sets the transport. A nil transport makes New fail.
func WithTransport(t transport.Transport) Option {
	return func(s *Session) {
		s.transport = t
	}
}

// WithRegistry sets the MIME registry used to expand accepted tags.
func WithRegistry(r *mime.Registry) Option {
	return func(s *Session) {
		s.registry = r
	}
}

func WithPolicy(p policy.Policy) Option {
	return func(s *Session) {
		s.policy = p.Clone()
	}
}

func WithRequestConfig(c transport.RequestConfig) Option {
	return func(s *Session) {
		s.config = c.Clone()
	}
}

// WithProgress registers fn to receive the accumulated body size after
// every chunk.
func WithProgress(fn func(read int64)) Option {
	return func(s *Session) {
		s.progress = fn
	}
}

// New builds a session. Configuration problems are reported here, before
// any request is made.
func New(opts ...Option) (*Session, error) {
	s := &Session{
		ID:       uuid.New().String(),
		registry: mime.Default(),
		policy:   policy.Default(),
		config:   transport.DefaultRequestConfig(),
		busy:     atomic.NewBool(false),
	}
	s.transport = transport.NewHTTPTransport()

	for _, opt := range opts {
		opt(s)
	}

	if s.transport == nil {
		return nil, errors.Wrap(dferrors.ErrInvalidArgument, "transport is nil")
	}

	if s.registry == nil {
		return nil, errors.Wrap(dferrors.ErrInvalidArgument, "mime registry is nil")
	}

	if err := s.policy.Validate(); err != nil {
		return nil, err
	}

	if err := s.config.Validate(); err != nil {
		return nil, err
	}

	if err := s.verifyCookieJar(); err != nil {
		return nil, err
	}

	s.resolver = policy.NewResolver(s.registry)
	s.log = logger.WithSession(s.ID)
	s.FSM = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: EventProbe, Src: []string{StateIdle}, Dst: StateHeadIssued},
			{Name: EventValidate, Src: []string{StateHeadIssued}, Dst: StateValidated},
			{Name: EventIssue, Src: []string{StateValidated}, Dst: StateBodyIssued},
			{Name: EventComplete, Src: []string{StateBodyIssued}, Dst: StateComplete},
			{Name: EventFail, Src: []string{StateHeadIssued, StateValidated, StateBodyIssued}, Dst: StateFailed},
			{Name: EventReset, Src: []string{StateHeadIssued, StateValidated, StateBodyIssued, StateComplete, StateFailed}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.log.Debugf("session state %s -> %s", e.Src, e.Dst)
			},
		},
	)

	return s, nil
}

// Probe starts a new cycle and sends a HEAD request for rawURL. Only
// transport failures are reported, the status code is not checked.
func (s *Session) Probe(ctx context.Context, rawURL string) (*transport.Metadata, error) {
	if !s.acquire() {
		return nil, dferrors.ErrSessionBusy
	}
	defer s.release()

	if err := s.verifyCookieJar(); err != nil {
		return nil, err
	}

	s.beginCycle(ctx)
	if err := s.probe(ctx, rawURL); err != nil {
		return s.head, err
	}

	return s.head, nil
}

// Get fetches rawURL. A HEAD issued by Probe for the same URL is reused when
// nothing happened in between, otherwise a new cycle probes first.
func (s *Session) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return s.FetchBody(ctx, http.MethodGet, rawURL, nil)
}

// Post sends fields as a form to rawURL. It always probes first.
func (s *Session) Post(ctx context.Context, rawURL string, fields url.Values) ([]byte, error) {
	return s.FetchBody(ctx, http.MethodPost, rawURL, FormPayload(fields))
}

// PostPayload sends a raw body to rawURL. It always probes first.
func (s *Session) PostPayload(ctx context.Context, rawURL, contentType string, body []byte) ([]byte, error) {
	return s.FetchBody(ctx, http.MethodPost, rawURL, &Payload{ContentType: contentType, Body: body})
}

// FetchBody runs the body phase of a cycle for GET or POST. Policy and
// transport failures are returned as *fetcherrors.Record and kept in
// LastError until the next cycle.
func (s *Session) FetchBody(ctx context.Context, method, rawURL string, payload *Payload) ([]byte, error) {
	if method != http.MethodGet && method != http.MethodPost {
		return nil, errors.Wrapf(dferrors.ErrInvalidArgument, "unsupported method %s", method)
	}

	if !s.acquire() {
		return nil, dferrors.ErrSessionBusy
	}
	defer s.release()

	if err := s.verifyCookieJar(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		cycleDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	log := s.log.With("method", method, "url", rawURL)
	reuse := method == http.MethodGet && s.FSM.Is(StateHeadIssued) && s.headURL == rawURL
	if !reuse {
		s.beginCycle(ctx)
		if err := s.probe(ctx, rawURL); err != nil {
			s.stat(method, rawURL, start)
			return nil, err
		}
	} else {
		log.Debugf("reuse probe metadata")
	}

	if record := s.resolver.Validate(s.head, s.policy); record != nil {
		log.Infof("probe rejected: %s", record.Message)
		s.fail(ctx, record)
		s.stat(method, rawURL, start)
		return nil, record
	}
	s.event(ctx, EventValidate)

	cfg := s.config.Clone()
	if accept := s.resolver.AcceptHeader(s.policy); accept != "" {
		cfg.Headers = cfg.Headers.Set(headers.Accept, accept)
	} else {
		cfg.Headers = cfg.Headers.Del(headers.Accept)
	}

	req := &transport.Request{
		Method: method,
		URL:    rawURL,
		Config: cfg,
	}
	if payload != nil {
		req.ContentType = payload.ContentType
		req.Body = payload.Body
	}

	var (
		body     []byte
		breached bool
		limit    = s.policy.MaxBodyBytes
	)
	sink := func(chunk []byte) transport.Action {
		if breached {
			return transport.Abort
		}

		body = append(body, chunk...)
		if s.progress != nil {
			s.progress(int64(len(body)))
		}

		if unit.Bytes(len(body)) > limit {
			breached = true
			return transport.Abort
		}

		return transport.Continue
	}

	s.event(ctx, EventIssue)
	meta, err := s.transport.Execute(ctx, req, sink)
	if meta == nil {
		meta = transport.NewMetadata(method, rawURL)
	}
	s.bodyMeta = meta
	s.body = body

	if breached {
		meta.TransportError = nil
		log.Infof("body exceeded %s", limit)
		record := s.fail(ctx, fetcherrors.NewStreamedSize(limit, unit.Bytes(len(body))))
		s.stat(method, rawURL, start)
		return nil, record
	}

	if err != nil {
		record := s.fail(ctx, err)
		s.stat(method, rawURL, start)
		return nil, record
	}

	s.event(ctx, EventComplete)
	bodyBytes.Add(float64(len(body)))
	log.Infof("fetched %d bytes with status %d", len(body), meta.HTTPStatus)
	s.stat(method, rawURL, start)
	return body, nil
}

// Reset clears the cycle state and keeps the configuration.
func (s *Session) Reset() error {
	if !s.acquire() {
		return dferrors.ErrSessionBusy
	}
	defer s.release()

	s.beginCycle(context.Background())
	return nil
}

// State returns the current cycle state.
func (s *Session) State() string {
	return s.FSM.Current()
}

// LastError returns the error record of the current cycle, or nil.
func (s *Session) LastError() *fetcherrors.Record {
	return s.lastError
}

// HeadMetadata returns the metadata of the last probe, or nil.
func (s *Session) HeadMetadata() *transport.Metadata {
	return s.head
}

// BodyMetadata returns the metadata of the last body request, or nil.
func (s *Session) BodyMetadata() *transport.Metadata {
	return s.bodyMeta
}

// Body returns the bytes received by the last body request. After a size
// limit failure it holds what was received up to the aborting chunk.
func (s *Session) Body() []byte {
	return s.body
}

// AcceptedTypes returns the MIME types the policy currently accepts.
func (s *Session) AcceptedTypes() []string {
	return s.resolver.AcceptedTypes(s.policy)
}

// AcceptHeader returns the Accept value the next body request will carry.
func (s *Session) AcceptHeader() string {
	return s.resolver.AcceptHeader(s.policy)
}

// Charset returns the character set of the completed body, from the
// Content-Type header or else from the document itself. It is empty when
// neither declares one.
func (s *Session) Charset() (string, error) {
	if !s.FSM.Is(StateComplete) {
		return "", dferrors.ErrNotComplete
	}

	cs, _ := charset.Detect(s.bodyMeta.ContentType, s.body)
	return cs, nil
}

// verifyCookieJar checks the jar file before any request of a cycle is sent.
func (s *Session) verifyCookieJar() error {
	if s.config.CookieJarPath == "" {
		return nil
	}

	return cookiejar.VerifyWritable(s.config.CookieJarPath)
}

func (s *Session) acquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

func (s *Session) release() {
	s.busy.Store(false)
}

func (s *Session) beginCycle(ctx context.Context) {
	if !s.FSM.Is(StateIdle) {
		s.event(ctx, EventReset)
	}

	s.headURL = ""
	s.head = nil
	s.bodyMeta = nil
	s.body = nil
	s.lastError = nil
}

func (s *Session) probe(ctx context.Context, rawURL string) error {
	s.event(ctx, EventProbe)

	cfg := s.config.Clone()
	cfg.Headers = cfg.Headers.Set(headers.Accept, "*/*")

	meta, err := s.transport.Execute(ctx, &transport.Request{
		Method: http.MethodHead,
		URL:    rawURL,
		Config: cfg,
	}, nil)
	if meta == nil {
		meta = transport.NewMetadata(http.MethodHead, rawURL)
	}

	s.head = meta
	s.headURL = rawURL
	if err != nil {
		s.log.With("url", rawURL).Warnf("probe failed: %s", err)
		return s.fail(ctx, err)
	}

	return nil
}

// fail stores err as the cycle's record and moves to Failed.
func (s *Session) fail(ctx context.Context, err error) *fetcherrors.Record {
	record, ok := fetcherrors.AsRecord(err)
	if !ok {
		record = fetcherrors.NewTransport(fetcherrors.CodeUnknown, err.Error())
	}

	s.lastError = record
	s.event(ctx, EventFail)
	return record
}

func (s *Session) event(ctx context.Context, name string) {
	if err := s.FSM.Event(ctx, name); err != nil {
		s.log.Errorf("event %s in state %s: %s", name, s.FSM.Current(), err)
	}
}

func (s *Session) stat(method, rawURL string, start time.Time) {
	outcome := "complete"
	status := 0
	if s.lastError != nil {
		outcome = s.lastError.Name
	}

	if s.bodyMeta != nil {
		status = s.bodyMeta.HTTPStatus
	} else if s.head != nil {
		status = s.head.HTTPStatus
	}

	cycleCount.WithLabelValues(method, outcome).Inc()
	logger.StatLogger.Info("fetch",
		zap.String("sessionID", s.ID),
		zap.String("method", method),
		zap.String("url", rawURL),
		zap.Int("status", status),
		zap.Int("bytes", len(s.body)),
		zap.String("outcome", outcome),
		zap.Duration("cost", time.Since(start)),
	)
}
