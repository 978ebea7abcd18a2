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

// Package cookiejar provides an http.CookieJar persisted to a JSON file.
// The file is guarded by a sibling ".lock" file so several processes may
// share one jar path. Save merges cookies other processes stored since Open.
package cookiejar

import (
	"encoding/json"
	"net/http"
	stdcookiejar "net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sys/unix"

	"d7y.io/curler/internal/dferrors"
)

const lockSuffix = ".lock"

// VerifyWritable checks that the jar file can be written. An existing path
// must be a writable regular file. A missing path needs a writable parent
// directory, and the empty file is created right away.
func VerifyWritable(path string) error {
	if path == "" {
		return errors.Wrap(dferrors.ErrInvalidArgument, "empty cookie jar path")
	}

	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return errors.Wrapf(dferrors.ErrNotWritable, "cookie jar %s is a directory", path)
		}

		if err := unix.Access(path, unix.W_OK); err != nil {
			return errors.Wrapf(dferrors.ErrNotWritable, "cookie jar %s: %v", path, err)
		}

		return nil
	}

	if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat cookie jar %s", path)
	}

	dir := filepath.Dir(path)
	if err := unix.Access(dir, unix.W_OK); err != nil {
		return errors.Wrapf(dferrors.ErrNotWritable, "cookie jar directory %s: %v", dir, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return errors.Wrapf(dferrors.ErrNotWritable, "create cookie jar %s: %v", path, err)
	}

	return f.Close()
}

type entry struct {
	URL     string         `json:"url"`
	Cookies []*http.Cookie `json:"cookies"`
}

// Jar is an http.CookieJar whose contents survive across processes.
type Jar struct {
	path string
	lock *flock.Flock
	jar  *stdcookiejar.Jar

	mu      sync.Mutex
	entries map[string]map[string]*http.Cookie
	deleted map[string]map[string]struct{}
}

var _ http.CookieJar = (*Jar)(nil)

// Open verifies path and loads any cookies already stored there.
func Open(path string) (*Jar, error) {
	if err := VerifyWritable(path); err != nil {
		return nil, err
	}

	jar, err := stdcookiejar.New(&stdcookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	j := &Jar{
		path:    path,
		lock:    flock.New(path + lockSuffix),
		jar:     jar,
		entries: make(map[string]map[string]*http.Cookie),
		deleted: make(map[string]map[string]struct{}),
	}

	if err := j.load(); err != nil {
		return nil, err
	}

	return j, nil
}

func (j *Jar) Path() string {
	return j.path
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.remember(u, cookies)
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// Save writes every live cookie to the jar file. Cookies found in the file
// that this jar neither holds nor deleted are kept.
func (j *Jar) Save() error {
	if err := j.lock.Lock(); err != nil {
		return errors.Wrapf(err, "lock cookie jar %s", j.path)
	}
	defer j.lock.Unlock()

	stored, err := j.read()
	if err != nil {
		return err
	}

	j.mu.Lock()
	j.merge(stored)
	now := time.Now()
	var entries []entry
	for rawURL, byName := range j.entries {
		e := entry{URL: rawURL}
		for _, c := range byName {
			if !c.Expires.IsZero() && c.Expires.Before(now) {
				continue
			}
			e.Cookies = append(e.Cookies, c)
		}

		if len(e.Cookies) > 0 {
			entries = append(entries, e)
		}
	}
	j.mu.Unlock()

	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	return os.WriteFile(j.path, data, 0600)
}

func (j *Jar) load() error {
	if err := j.lock.RLock(); err != nil {
		return errors.Wrapf(err, "lock cookie jar %s", j.path)
	}
	defer j.lock.Unlock()

	stored, err := j.read()
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.merge(stored)
	return nil
}

// read decodes the jar file. The caller holds the file lock.
func (j *Jar) read() ([]entry, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read cookie jar %s", j.path)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, "decode cookie jar %s", j.path)
	}

	return entries, nil
}

// merge adds stored cookies unknown to this jar. The caller holds j.mu.
func (j *Jar) merge(stored []entry) {
	for _, e := range stored {
		u, err := url.Parse(e.URL)
		if err != nil {
			continue
		}

		var fresh []*http.Cookie
		for _, c := range e.Cookies {
			if _, ok := j.entries[e.URL][c.Name]; ok {
				continue
			}

			if _, ok := j.deleted[e.URL][c.Name]; ok {
				continue
			}

			fresh = append(fresh, c)
		}

		if len(fresh) > 0 {
			j.jar.SetCookies(u, fresh)
			j.remember(u, fresh)
		}
	}
}

func (j *Jar) remember(u *url.URL, cookies []*http.Cookie) {
	key := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
	byName, ok := j.entries[key]
	if !ok {
		byName = make(map[string]*http.Cookie)
		j.entries[key] = byName
	}

	for _, c := range cookies {
		if c.MaxAge < 0 {
			delete(byName, c.Name)
			if _, ok := j.deleted[key]; !ok {
				j.deleted[key] = make(map[string]struct{})
			}
			j.deleted[key][c.Name] = struct{}{}
			continue
		}

		delete(j.deleted[key], c.Name)

		cp := *c
		if c.MaxAge > 0 && cp.Expires.IsZero() {
			cp.Expires = time.Now().Add(time.Duration(c.MaxAge) * time.Second)
			cp.MaxAge = 0
		}
		byName[c.Name] = &cp
	}
}
