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
	"time"

	"github.com/go-http-utils/headers"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"d7y.io/curler/internal/dferrors"
)

const (
	DefaultTimeout        = 5 * time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultMaxRedirects   = 10
	DefaultUserAgent      = "Mozilla/5.0 (Macintosh; U; Intel Mac OS X 10.6; en-US; rv:1.9.2.12) Gecko/20101026 Firefox/3.6.12"
)

// Auth holds basic auth credentials.
type Auth struct {
	Username string
	Password string
}

// RequestConfig is the per-session request configuration.
type RequestConfig struct {
	Headers         Headers
	Timeout         time.Duration
	ConnectTimeout  time.Duration
	MaxRedirects    int
	FollowRedirects bool
	UserAgent       string
	Auth            *Auth
	CookieJarPath   string
	TLSVerify       bool
}

// DefaultRequestConfig returns the configuration a fresh session starts with.
func DefaultRequestConfig() RequestConfig {
	return RequestConfig{
		Headers: Headers{
			{Key: "Connection", Value: "keep-alive"},
			{Key: headers.AcceptLanguage, Value: "en-us,en;q=0.5"},
		},
		Timeout:         DefaultTimeout,
		ConnectTimeout:  DefaultConnectTimeout,
		MaxRedirects:    DefaultMaxRedirects,
		FollowRedirects: true,
		UserAgent:       DefaultUserAgent,
	}
}

// Clone returns a deep copy of c.
func (c RequestConfig) Clone() RequestConfig {
	out := c
	out.Headers = c.Headers.Clone()
	if c.Auth != nil {
		auth := *c.Auth
		out.Auth = &auth
	}

	return out
}

func (c RequestConfig) Validate() error {
	var result error
	if c.Timeout < 0 {
		result = multierror.Append(result, errors.Wrap(dferrors.ErrInvalidArgument, "timeout must not be negative"))
	}

	if c.ConnectTimeout < 0 {
		result = multierror.Append(result, errors.Wrap(dferrors.ErrInvalidArgument, "connect timeout must not be negative"))
	}

	if c.MaxRedirects < 0 {
		result = multierror.Append(result, errors.Wrap(dferrors.ErrInvalidArgument, "max redirects must not be negative"))
	}

	for _, h := range c.Headers {
		if h.Key == "" {
			result = multierror.Append(result, errors.Wrap(dferrors.ErrInvalidHeader, "empty header key"))
		}
	}

	return result
}
