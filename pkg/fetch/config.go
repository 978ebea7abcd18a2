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
	"github.com/pkg/errors"

	"d7y.io/curler/internal/dferrors"
	"d7y.io/curler/pkg/container/set"
	"d7y.io/curler/pkg/cookiejar"
	"d7y.io/curler/pkg/mime"
	"d7y.io/curler/pkg/policy"
	"d7y.io/curler/pkg/transport"
	"d7y.io/curler/pkg/unit"
)

// Policy returns a copy of the session policy.
func (s *Session) Policy() policy.Policy {
	return s.policy.Clone()
}

// RequestConfig returns a copy of the session request configuration.
func (s *Session) RequestConfig() transport.RequestConfig {
	return s.config.Clone()
}

// update runs fn while holding the session, so configuration never changes
// under a running cycle.
func (s *Session) update(fn func() error) error {
	if !s.acquire() {
		return dferrors.ErrSessionBusy
	}
	defer s.release()

	return fn()
}

func (s *Session) SetPolicy(p policy.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	return s.update(func() error {
		s.policy = p.Clone()
		return nil
	})
}

// SetAcceptedTags replaces the accepted selectors. With no selectors the
// session accepts no MIME type.
func (s *Session) SetAcceptedTags(selectors ...mime.Selector) error {
	return s.update(func() error {
		s.policy.AcceptedTags = set.New(selectors...)
		return nil
	})
}

// AddAcceptedTags adds selectors to the accepted set.
func (s *Session) AddAcceptedTags(selectors ...mime.Selector) error {
	return s.update(func() error {
		if s.policy.AcceptedTags == nil {
			s.policy.AcceptedTags = set.New[mime.Selector]()
		}

		for _, sel := range selectors {
			s.policy.AcceptedTags.Add(sel)
		}
		return nil
	})
}

func (s *Session) SetAcceptedStatusCodes(codes ...int) error {
	p := s.Policy()
	p.AcceptedStatusCodes = set.New(codes...)
	return s.SetPolicy(p)
}

func (s *Session) SetMaxBodyBytes(limit unit.Bytes) error {
	if limit < 0 {
		return errors.Wrapf(dferrors.ErrInvalidArgument, "max body bytes %d must not be negative", limit)
	}

	return s.update(func() error {
		s.policy.MaxBodyBytes = limit
		return nil
	})
}

func (s *Session) SetRequestConfig(c transport.RequestConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.CookieJarPath != "" {
		if err := cookiejar.VerifyWritable(c.CookieJarPath); err != nil {
			return err
		}
	}

	return s.update(func() error {
		s.config = c.Clone()
		return nil
	})
}

// SetHeader sets one request header, replacing an existing value.
func (s *Session) SetHeader(key, value string) error {
	if key == "" {
		return errors.Wrap(dferrors.ErrInvalidHeader, "empty header key")
	}

	return s.update(func() error {
		s.config.Headers = s.config.Headers.Set(key, value)
		return nil
	})
}

// SetHeaders sets every given header in order.
func (s *Session) SetHeaders(hs transport.Headers) error {
	for _, h := range hs {
		if err := s.SetHeader(h.Key, h.Value); err != nil {
			return err
		}
	}

	return nil
}

func (s *Session) DelHeader(key string) error {
	return s.update(func() error {
		s.config.Headers = s.config.Headers.Del(key)
		return nil
	})
}

func (s *Session) SetUserAgent(userAgent string) error {
	return s.update(func() error {
		s.config.UserAgent = userAgent
		return nil
	})
}

func (s *Session) SetAuth(username, password string) error {
	return s.update(func() error {
		s.config.Auth = &transport.Auth{Username: username, Password: password}
		return nil
	})
}

// SetCookieJarPath checks path is writable before adopting it. An empty path
// disables cookie persistence.
func (s *Session) SetCookieJarPath(path string) error {
	if path != "" {
		if err := cookiejar.VerifyWritable(path); err != nil {
			return err
		}
	}

	return s.update(func() error {
		s.config.CookieJarPath = path
		return nil
	})
}
