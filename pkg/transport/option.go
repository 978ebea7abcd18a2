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
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	logger "d7y.io/curler/internal/dflog"
)

// ProxyEnv names the environment variable holding the default proxy.
var ProxyEnv = "CURLER_PROXY"

// TransportOption tunes the shared http.Transport.
type TransportOption struct {
	Proxy                 string        `yaml:"proxy" mapstructure:"proxy"`
	KeepAlive             time.Duration `yaml:"keepAlive" mapstructure:"keepAlive"`
	MaxIdleConns          int           `yaml:"maxIdleConns" mapstructure:"maxIdleConns"`
	IdleConnTimeout       time.Duration `yaml:"idleConnTimeout" mapstructure:"idleConnTimeout"`
	ResponseHeaderTimeout time.Duration `yaml:"responseHeaderTimeout" mapstructure:"responseHeaderTimeout"`
	TLSHandshakeTimeout   time.Duration `yaml:"tlsHandshakeTimeout" mapstructure:"tlsHandshakeTimeout"`
	ExpectContinueTimeout time.Duration `yaml:"expectContinueTimeout" mapstructure:"expectContinueTimeout"`
}

// ParseTransportOption decodes a YAML transport option document.
func ParseTransportOption(optionYaml []byte) (*TransportOption, error) {
	opt := &TransportOption{}
	if err := yaml.Unmarshal(optionYaml, opt); err != nil {
		return nil, errors.Wrap(err, "decode transport option")
	}

	return opt, nil
}

// Apply copies the non-zero fields of opt onto t.
func (opt *TransportOption) Apply(t *http.Transport) error {
	if opt == nil {
		return nil
	}

	if len(opt.Proxy) > 0 {
		proxy, err := url.Parse(opt.Proxy)
		if err != nil {
			return errors.Wrapf(err, "parse proxy %s", opt.Proxy)
		}
		t.Proxy = http.ProxyURL(proxy)
	}

	if opt.KeepAlive > 0 {
		t.DialContext = (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: opt.KeepAlive,
		}).DialContext
	}

	if opt.IdleConnTimeout > 0 {
		t.IdleConnTimeout = opt.IdleConnTimeout
	}

	if opt.MaxIdleConns > 0 {
		t.MaxIdleConns = opt.MaxIdleConns
	}

	if opt.ExpectContinueTimeout > 0 {
		t.ExpectContinueTimeout = opt.ExpectContinueTimeout
	}

	if opt.ResponseHeaderTimeout > 0 {
		t.ResponseHeaderTimeout = opt.ResponseHeaderTimeout
	}

	if opt.TLSHandshakeTimeout > 0 {
		t.TLSHandshakeTimeout = opt.TLSHandshakeTimeout
	}

	return nil
}

// DefaultTransport returns the base http.Transport every request
// configuration is cloned from.
func DefaultTransport() *http.Transport {
	var proxy *url.URL
	if proxyEnv := os.Getenv(ProxyEnv); len(proxyEnv) > 0 {
		var err error
		if proxy, err = url.Parse(proxyEnv); err != nil {
			logger.Warnf("proxy %s parse error: %s", proxyEnv, err)
		}
	}

	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
	}

	if proxy != nil {
		t.Proxy = http.ProxyURL(proxy)
	}

	return t
}
