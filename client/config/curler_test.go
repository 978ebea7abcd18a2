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

package config

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	testifyassert "github.com/stretchr/testify/assert"

	"d7y.io/curler/internal/dferrors"
	"d7y.io/curler/pkg/mime"
	"d7y.io/curler/pkg/unit"
)

func TestCurlerConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		cfg    func(t *testing.T) *CurlerConfig
		expect func(t *testing.T, cfg *CurlerConfig, err error)
	}{
		{
			name: "no error",
			cfg: func(t *testing.T) *CurlerConfig {
				cfg := NewCurlerConfig()
				cfg.URLs = []string{"http://example.com/a"}
				cfg.Output = filepath.Join(t.TempDir(), "sub", "a.html")
				cfg.Header = []string{"Accept-Language: de", "X-Token: abc"}
				cfg.Accept = []string{"images", "text/css"}
				return cfg
			},
			expect: func(t *testing.T, cfg *CurlerConfig, err error) {
				assert := testifyassert.New(t)
				assert.Nil(err)
				assert.DirExists(filepath.Dir(cfg.Output))
			},
		},
		{
			name: "curler config is nil",
			cfg:  func(t *testing.T) *CurlerConfig { return nil },
			expect: func(t *testing.T, cfg *CurlerConfig, err error) {
				assert := testifyassert.New(t)
				assert.EqualError(err, "curler config: invalid argument")
			},
		},
		{
			name: "no url",
			cfg:  func(t *testing.T) *CurlerConfig { return NewCurlerConfig() },
			expect: func(t *testing.T, cfg *CurlerConfig, err error) {
				assert := testifyassert.New(t)
				assert.ErrorIs(err, dferrors.ErrInvalidArgument)
				assert.Contains(err.Error(), "no url given")
			},
		},
		{
			name: "url is invalid",
			cfg: func(t *testing.T) *CurlerConfig {
				cfg := NewCurlerConfig()
				cfg.URLs = []string{"http:///path", "ftp://example.com/"}
				return cfg
			},
			expect: func(t *testing.T, cfg *CurlerConfig, err error) {
				assert := testifyassert.New(t)
				assert.Contains(err.Error(), "url http:///path: invalid argument")
				assert.Contains(err.Error(), "url ftp://example.com/: invalid argument")
			},
		},
		{
			name: "method is unsupported",
			cfg: func(t *testing.T) *CurlerConfig {
				cfg := NewCurlerConfig()
				cfg.URLs = []string{"http://example.com"}
				cfg.Method = http.MethodPut
				return cfg
			},
			expect: func(t *testing.T, cfg *CurlerConfig, err error) {
				assert := testifyassert.New(t)
				assert.Contains(err.Error(), "method PUT: invalid argument")
			},
		},
		{
			name: "form and data",
			cfg: func(t *testing.T) *CurlerConfig {
				cfg := NewCurlerConfig()
				cfg.URLs = []string{"http://example.com"}
				cfg.Method = http.MethodPost
				cfg.Form = []string{"novalue"}
				cfg.Data = "raw"
				return cfg
			},
			expect: func(t *testing.T, cfg *CurlerConfig, err error) {
				assert := testifyassert.New(t)
				assert.Contains(err.Error(), "form and data are exclusive")
				assert.Contains(err.Error(), `form field "novalue"`)
			},
		},
		{
			name: "invalid policy",
			cfg: func(t *testing.T) *CurlerConfig {
				cfg := NewCurlerConfig()
				cfg.URLs = []string{"http://example.com"}
				cfg.Accept = []string{"pictures"}
				return cfg
			},
			expect: func(t *testing.T, cfg *CurlerConfig, err error) {
				assert := testifyassert.New(t)
				assert.Contains(err.Error(), `unknown mime tag or type "pictures"`)
			},
		},
		{
			name: "header is invalid",
			cfg: func(t *testing.T) *CurlerConfig {
				cfg := NewCurlerConfig()
				cfg.URLs = []string{"http://example.com"}
				cfg.Header = []string{"no separator"}
				return cfg
			},
			expect: func(t *testing.T, cfg *CurlerConfig, err error) {
				assert := testifyassert.New(t)
				assert.ErrorIs(err, dferrors.ErrInvalidHeader)
			},
		},
		{
			name: "concurrency and rate limit",
			cfg: func(t *testing.T) *CurlerConfig {
				cfg := NewCurlerConfig()
				cfg.URLs = []string{"http://example.com"}
				cfg.Concurrency = 0
				cfg.RateLimit = -1
				return cfg
			},
			expect: func(t *testing.T, cfg *CurlerConfig, err error) {
				assert := testifyassert.New(t)
				assert.Contains(err.Error(), "concurrency 0: invalid argument")
				assert.Contains(err.Error(), "rate limit")
			},
		},
		{
			name: "output path is not absolute path",
			cfg: func(t *testing.T) *CurlerConfig {
				cfg := NewCurlerConfig()
				cfg.URLs = []string{"http://example.com"}
				cfg.Output = "tmp/out"
				return cfg
			},
			expect: func(t *testing.T, cfg *CurlerConfig, err error) {
				assert := testifyassert.New(t)
				assert.Contains(err.Error(), "output: path[tmp/out] is not absolute path: invalid argument")
			},
		},
		{
			name: "output is a directory for one url",
			cfg: func(t *testing.T) *CurlerConfig {
				cfg := NewCurlerConfig()
				cfg.URLs = []string{"http://example.com"}
				cfg.Output = t.TempDir()
				return cfg
			},
			expect: func(t *testing.T, cfg *CurlerConfig, err error) {
				assert := testifyassert.New(t)
				assert.Contains(err.Error(), "is directory but requires file path")
			},
		},
		{
			name: "output directory is created for several urls",
			cfg: func(t *testing.T) *CurlerConfig {
				cfg := NewCurlerConfig()
				cfg.URLs = []string{"http://example.com/a", "http://example.com/b"}
				cfg.Output = filepath.Join(t.TempDir(), "out")
				return cfg
			},
			expect: func(t *testing.T, cfg *CurlerConfig, err error) {
				assert := testifyassert.New(t)
				assert.Nil(err)
				assert.DirExists(cfg.Output)
			},
		},
		{
			name: "output is a file for several urls",
			cfg: func(t *testing.T) *CurlerConfig {
				output := filepath.Join(t.TempDir(), "file")
				if err := os.WriteFile(output, nil, 0644); err != nil {
					t.Fatal(err)
				}

				cfg := NewCurlerConfig()
				cfg.URLs = []string{"http://example.com/a", "http://example.com/b"}
				cfg.Output = output
				return cfg
			},
			expect: func(t *testing.T, cfg *CurlerConfig, err error) {
				assert := testifyassert.New(t)
				assert.Contains(err.Error(), "must be a directory for 2 urls")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg(t)
			tc.expect(t, cfg, cfg.Validate())
		})
	}
}

func TestCurlerConfig_Convert(t *testing.T) {
	assert := testifyassert.New(t)

	cfg := NewCurlerConfig()
	cfg.URLs = []string{"http://example.com/a"}
	cfg.Method = " post "
	cfg.Console = true
	cfg.ShowProgress = true
	cfg.Output = "out.html"

	assert.Nil(cfg.Convert([]string{"http://example.com/b"}))
	assert.Equal([]string{"http://example.com/a", "http://example.com/b"}, cfg.URLs)
	assert.Equal(http.MethodPost, cfg.Method)
	assert.False(cfg.ShowProgress)
	assert.True(filepath.IsAbs(cfg.Output))

	cfg = NewCurlerConfig()
	cfg.Output = StdoutOutput
	assert.Nil(cfg.Convert(nil))
	assert.Equal(StdoutOutput, cfg.Output)
}

func TestCurlerConfig_Policy(t *testing.T) {
	assert := testifyassert.New(t)

	cfg := NewCurlerConfig()
	p, err := cfg.Policy()
	assert.Nil(err)
	assert.True(p.AcceptedTags.Contains(mime.Selector(mime.TagWebpages)))
	assert.True(p.AcceptedStatusCodes.Contains(http.StatusOK))
	assert.Equal(unit.MB, p.MaxBodyBytes)

	cfg.Accept = nil
	cfg.Status = []int{200, 203}
	cfg.MaxBodySize = 5 * unit.KB
	p, err = cfg.Policy()
	assert.Nil(err)
	assert.Equal(uint(0), p.AcceptedTags.Len())
	assert.Equal([]int{200, 203}, p.AcceptedStatusCodes.Values())
	assert.Equal(5*unit.KB, p.MaxBodyBytes)

	cfg.Status = []int{42}
	_, err = cfg.Policy()
	assert.ErrorIs(err, dferrors.ErrInvalidArgument)
}

func TestCurlerConfig_RequestConfig(t *testing.T) {
	assert := testifyassert.New(t)

	cfg := NewCurlerConfig()
	cfg.Header = []string{"Accept-Language: de", "X-Token: abc"}
	cfg.User = "user:pa:ss"
	cfg.NoFollow = true
	cfg.Timeout = time.Minute
	cfg.TLSVerify = true

	rc, err := cfg.RequestConfig()
	assert.Nil(err)
	assert.Equal([]string{"Connection: keep-alive", "Accept-Language: de", "X-Token: abc"}, rc.Headers.Lines())
	assert.Equal("user", rc.Auth.Username)
	assert.Equal("pa:ss", rc.Auth.Password)
	assert.False(rc.FollowRedirects)
	assert.Equal(time.Minute, rc.Timeout)
	assert.True(rc.TLSVerify)

	cfg.User = ":nobody"
	_, err = cfg.RequestConfig()
	assert.ErrorIs(err, dferrors.ErrInvalidArgument)
}

func TestCurlerConfig_FormValues(t *testing.T) {
	assert := testifyassert.New(t)

	cfg := NewCurlerConfig()
	cfg.Form = []string{"q=go", "page=2", "empty="}
	values, err := cfg.FormValues()
	assert.Nil(err)
	assert.Equal("empty=&page=2&q=go", values.Encode())
}

func TestCurlerConfig_RateLimiter(t *testing.T) {
	assert := testifyassert.New(t)

	cfg := NewCurlerConfig()
	assert.Nil(cfg.RateLimiter())

	cfg.RateLimit = unit.MB
	limiter := cfg.RateLimiter()
	assert.NotNil(limiter)
	assert.Equal(float64(unit.MB), float64(limiter.Limit()))
}

func TestCurlerConfig_OutputFor(t *testing.T) {
	assert := testifyassert.New(t)

	cfg := NewCurlerConfig()
	cfg.URLs = []string{"http://example.com/a.html"}
	assert.Equal("", cfg.OutputFor(0))

	cfg.Output = "/tmp/out.html"
	assert.Equal("/tmp/out.html", cfg.OutputFor(0))

	cfg.URLs = []string{"http://example.com/a.html", "http://example.com/", "http://example.com/dir/b.png?x=1"}
	cfg.Output = "/tmp/out"
	assert.Equal("/tmp/out/0-a.html", cfg.OutputFor(0))
	assert.Equal("/tmp/out/1-index.html", cfg.OutputFor(1))
	assert.Equal("/tmp/out/2-b.png", cfg.OutputFor(2))
}

func TestCurlerConfig_String(t *testing.T) {
	assert := testifyassert.New(t)

	cfg := NewCurlerConfig()
	cfg.URLs = []string{"http://example.com"}

	var decoded map[string]any
	assert.Nil(json.Unmarshal([]byte(cfg.String()), &decoded))
	assert.Equal([]any{"http://example.com"}, decoded["URLs"])
	assert.Equal("GET", decoded["Method"])
}

func TestSelectorsValue(t *testing.T) {
	assert := testifyassert.New(t)

	selectors := []string{"webpages"}
	value := NewSelectorsValue(&selectors)
	assert.Equal("selectors", value.Type())

	assert.Nil(value.Set("Images, text/css"))
	assert.Equal([]string{"images", "text/css"}, selectors)

	assert.Nil(value.Set("json"))
	assert.Equal("images,text/css,json", value.String())

	assert.ErrorIs(value.Set("bogus"), dferrors.ErrInvalidArgument)
	assert.Equal([]string{"images", "text/css", "json"}, selectors)

	assert.Nil(value.Set(""))
	assert.Empty(selectors)
}
