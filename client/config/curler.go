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

// Package config holds the runtime configuration of curler.
package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"d7y.io/curler/internal/dferrors"
	"d7y.io/curler/pkg/container/set"
	"d7y.io/curler/pkg/mime"
	"d7y.io/curler/pkg/policy"
	"d7y.io/curler/pkg/ratelimiter/limitreader"
	"d7y.io/curler/pkg/transport"
	"d7y.io/curler/pkg/types"
	"d7y.io/curler/pkg/unit"
)

// CurlerConfig holds all the runtime config information.
type CurlerConfig struct {
	// URLs to fetch, each in its own session.
	URLs []string `yaml:"urls,omitempty" mapstructure:"urls,omitempty"`

	// Method is GET or POST.
	Method string `yaml:"method,omitempty" mapstructure:"method,omitempty"`

	// Form fields sent urlencoded with POST, as key=value.
	Form []string `yaml:"form,omitempty" mapstructure:"form,omitempty"`

	// Data is a raw POST body, conflicts with Form.
	Data        string `yaml:"data,omitempty" mapstructure:"data,omitempty"`
	ContentType string `yaml:"contentType,omitempty" mapstructure:"contentType,omitempty"`

	// Output is a file for a single URL or a directory for several.
	// Empty or "-" writes to stdout.
	Output string `yaml:"output,omitempty" mapstructure:"output,omitempty"`

	// Accept lists mime tags or literal mime types.
	Accept []string `yaml:"accept,omitempty" mapstructure:"accept,omitempty"`

	// Status lists the accepted HTTP status codes.
	Status []int `yaml:"status,omitempty" mapstructure:"status,omitempty"`

	MaxBodySize unit.Bytes `yaml:"maxBodySize,omitempty" mapstructure:"maxBodySize,omitempty"`

	Timeout        time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout,omitempty"`
	ConnectTimeout time.Duration `yaml:"connectTimeout,omitempty" mapstructure:"connectTimeout,omitempty"`
	MaxRedirects   int           `yaml:"maxRedirects,omitempty" mapstructure:"maxRedirects,omitempty"`
	NoFollow       bool          `yaml:"noFollow,omitempty" mapstructure:"noFollow,omitempty"`
	UserAgent      string        `yaml:"userAgent,omitempty" mapstructure:"userAgent,omitempty"`

	// Header of http request.
	// eg: --header='Accept-Language: de' --header='X-Token: abc'.
	Header []string `yaml:"header,omitempty" mapstructure:"header,omitempty"`

	// User is basic auth credentials as user:password.
	User string `yaml:"user,omitempty" mapstructure:"user,omitempty"`

	CookieJar string `yaml:"cookieJar,omitempty" mapstructure:"cookieJar,omitempty"`

	// TLSVerify enables peer certificate verification.
	TLSVerify bool `yaml:"tlsVerify,omitempty" mapstructure:"tlsVerify,omitempty"`

	Concurrency int `yaml:"concurrency,omitempty" mapstructure:"concurrency,omitempty"`

	// RateLimit caps body download speed per second, 0 disables it.
	RateLimit unit.Bytes `yaml:"rateLimit,omitempty" mapstructure:"rateLimit,omitempty"`

	// ShowProgress shows progress bar, it's conflict with `--console`.
	ShowProgress bool   `yaml:"showProgress,omitempty" mapstructure:"showProgress,omitempty"`
	Console      bool   `yaml:"console,omitempty" mapstructure:"console,omitempty"`
	Verbose      bool   `yaml:"verbose,omitempty" mapstructure:"verbose,omitempty"`
	LogDir       string `yaml:"logDir,omitempty" mapstructure:"logDir,omitempty"`

	Transport *transport.TransportOption `yaml:"transport,omitempty" mapstructure:"transport,omitempty"`
}

func NewCurlerConfig() *CurlerConfig {
	return &CurlerConfig{
		Method:         http.MethodGet,
		Accept:         []string{string(mime.TagWebpages)},
		Status:         []int{http.StatusOK},
		MaxBodySize:    policy.DefaultMaxBodyBytes,
		Timeout:        transport.DefaultTimeout,
		ConnectTimeout: transport.DefaultConnectTimeout,
		MaxRedirects:   transport.DefaultMaxRedirects,
		UserAgent:      transport.DefaultUserAgent,
		Concurrency:    DefaultConcurrency,
		LogDir:         DefaultLogDir,
	}
}

func (cfg *CurlerConfig) Validate() error {
	if cfg == nil {
		return errors.Wrap(dferrors.ErrInvalidArgument, "curler config")
	}

	var result error
	if len(cfg.URLs) == 0 {
		result = multierror.Append(result, errors.Wrap(dferrors.ErrInvalidArgument, "no url given"))
	}

	for _, rawURL := range cfg.URLs {
		if !isValidURL(rawURL) {
			result = multierror.Append(result, errors.Wrapf(dferrors.ErrInvalidArgument, "url %s", rawURL))
		}
	}

	if cfg.Method != http.MethodGet && cfg.Method != http.MethodPost {
		result = multierror.Append(result, errors.Wrapf(dferrors.ErrInvalidArgument, "method %s", cfg.Method))
	}

	if len(cfg.Form) > 0 && cfg.Data != "" {
		result = multierror.Append(result, errors.Wrap(dferrors.ErrInvalidArgument, "form and data are exclusive"))
	}

	if _, err := cfg.FormValues(); err != nil {
		result = multierror.Append(result, err)
	}

	if _, err := cfg.Policy(); err != nil {
		result = multierror.Append(result, err)
	}

	if _, err := cfg.RequestConfig(); err != nil {
		result = multierror.Append(result, err)
	}

	if cfg.Concurrency < 1 {
		result = multierror.Append(result, errors.Wrapf(dferrors.ErrInvalidArgument, "concurrency %d", cfg.Concurrency))
	}

	if cfg.RateLimit < 0 {
		result = multierror.Append(result, errors.Wrapf(dferrors.ErrInvalidArgument, "rate limit %s", cfg.RateLimit))
	}

	if err := cfg.checkOutput(); err != nil {
		result = multierror.Append(result, errors.Wrapf(dferrors.ErrInvalidArgument, "output: %v", err))
	}

	return result
}

// Convert merges positional args into the config and normalizes it.
func (cfg *CurlerConfig) Convert(args []string) error {
	cfg.URLs = append(cfg.URLs, args...)
	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))

	if cfg.Console {
		cfg.ShowProgress = false
	}

	if cfg.Output != "" && cfg.Output != StdoutOutput {
		output, err := filepath.Abs(cfg.Output)
		if err != nil {
			return err
		}
		cfg.Output = output
	}

	return nil
}

func (cfg *CurlerConfig) String() string {
	js, _ := json.Marshal(cfg)
	return string(js)
}

// Policy builds the download policy.
func (cfg *CurlerConfig) Policy() (policy.Policy, error) {
	selectors, err := mime.ParseSelectors(cfg.Accept...)
	if err != nil {
		return policy.Policy{}, err
	}

	p := policy.Policy{
		AcceptedTags:        selectors,
		MaxBodyBytes:        cfg.MaxBodySize,
		AcceptedStatusCodes: set.New(cfg.Status...),
	}

	if err := p.Validate(); err != nil {
		return policy.Policy{}, err
	}

	return p, nil
}

// RequestConfig builds the request configuration on top of the defaults.
// Headers given here replace default headers of the same name.
func (cfg *CurlerConfig) RequestConfig() (transport.RequestConfig, error) {
	rc := transport.DefaultRequestConfig()
	rc.Timeout = cfg.Timeout
	rc.ConnectTimeout = cfg.ConnectTimeout
	rc.MaxRedirects = cfg.MaxRedirects
	rc.FollowRedirects = !cfg.NoFollow
	rc.CookieJarPath = cfg.CookieJar
	rc.TLSVerify = cfg.TLSVerify
	if cfg.UserAgent != "" {
		rc.UserAgent = cfg.UserAgent
	}

	hs, err := transport.ParseHeaders(cfg.Header)
	if err != nil {
		return transport.RequestConfig{}, err
	}

	for _, h := range hs {
		rc.Headers = rc.Headers.Set(h.Key, h.Value)
	}

	if cfg.User != "" {
		username, password, ok := strings.Cut(cfg.User, ":")
		if !ok || username == "" {
			return transport.RequestConfig{}, errors.Wrap(dferrors.ErrInvalidArgument, "user must be user:password")
		}
		rc.Auth = &transport.Auth{Username: username, Password: password}
	}

	if err := rc.Validate(); err != nil {
		return transport.RequestConfig{}, err
	}

	return rc, nil
}

// FormValues parses the key=value form fields.
func (cfg *CurlerConfig) FormValues() (url.Values, error) {
	values := url.Values{}
	for _, field := range cfg.Form {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			return nil, errors.Wrapf(dferrors.ErrInvalidArgument, "form field %q", field)
		}
		values.Add(key, value)
	}

	return values, nil
}

// RateLimiter returns the body download limiter, or nil when unlimited.
func (cfg *CurlerConfig) RateLimiter() *rate.Limiter {
	if cfg.RateLimit <= 0 {
		return nil
	}

	return limitreader.NewLimiter(cfg.RateLimit.ToNumber(), types.ChunkSize)
}

// OutputFor returns where the body of the index-th URL goes. An empty
// result means stdout.
func (cfg *CurlerConfig) OutputFor(index int) string {
	if cfg.Output == "" || cfg.Output == StdoutOutput {
		return ""
	}

	if len(cfg.URLs) == 1 {
		return cfg.Output
	}

	return filepath.Join(cfg.Output, fmt.Sprintf("%d-%s", index, outputName(cfg.URLs[index])))
}

func (cfg *CurlerConfig) checkOutput() error {
	if cfg.Output == "" || cfg.Output == StdoutOutput {
		return nil
	}

	if !filepath.IsAbs(cfg.Output) {
		return fmt.Errorf("path[%s] is not absolute path", cfg.Output)
	}

	info, err := os.Stat(cfg.Output)
	if len(cfg.URLs) > 1 {
		if err != nil {
			return os.MkdirAll(cfg.Output, 0755)
		}

		if !info.IsDir() {
			return fmt.Errorf("path[%s] must be a directory for %d urls", cfg.Output, len(cfg.URLs))
		}
		return nil
	}

	if err == nil && info.IsDir() {
		return fmt.Errorf("path[%s] is directory but requires file path", cfg.Output)
	}

	return os.MkdirAll(filepath.Dir(cfg.Output), 0755)
}

func isValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	return (u.Scheme == transport.HTTPScheme || u.Scheme == transport.HTTPSScheme) && u.Host != ""
}

func outputName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DefaultIndexName
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return DefaultIndexName
	}

	return name
}
