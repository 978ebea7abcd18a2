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
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"d7y.io/curler/internal/dferrors"
)

// Header is a single request header line.
type Header struct {
	Key   string
	Value string
}

// Headers is an ordered header list. Keys compare case insensitively and a
// key appears at most once.
type Headers []Header

// ParseHeader parses a "Key: Value" line.
func ParseHeader(line string) (Header, error) {
	key, value, ok := strings.Cut(line, ":")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return Header{}, errors.Wrapf(dferrors.ErrInvalidHeader, "header %q", line)
	}

	return Header{Key: key, Value: strings.TrimSpace(value)}, nil
}

// ParseHeaders parses every line, keeping the last value of repeated keys.
func ParseHeaders(lines []string) (Headers, error) {
	var result Headers
	for _, line := range lines {
		h, err := ParseHeader(line)
		if err != nil {
			return nil, err
		}
		result = result.Set(h.Key, h.Value)
	}

	return result, nil
}

func (hs Headers) index(key string) int {
	for i, h := range hs {
		if strings.EqualFold(h.Key, key) {
			return i
		}
	}

	return -1
}

// Set replaces key in place or appends it.
func (hs Headers) Set(key, value string) Headers {
	if i := hs.index(key); i >= 0 {
		out := hs.Clone()
		out[i] = Header{Key: key, Value: value}
		return out
	}

	return append(hs.Clone(), Header{Key: key, Value: value})
}

func (hs Headers) Get(key string) (string, bool) {
	if i := hs.index(key); i >= 0 {
		return hs[i].Value, true
	}

	return "", false
}

func (hs Headers) Del(key string) Headers {
	i := hs.index(key)
	if i < 0 {
		return hs
	}

	out := make(Headers, 0, len(hs)-1)
	out = append(out, hs[:i]...)
	return append(out, hs[i+1:]...)
}

func (hs Headers) Clone() Headers {
	if hs == nil {
		return nil
	}

	out := make(Headers, len(hs))
	copy(out, hs)
	return out
}

// Apply writes the headers onto h, replacing existing values.
func (hs Headers) Apply(h http.Header) {
	for _, header := range hs {
		h.Set(header.Key, header.Value)
	}
}

// Lines renders the headers as "Key: Value" strings.
func (hs Headers) Lines() []string {
	lines := make([]string, 0, len(hs))
	for _, h := range hs {
		lines = append(lines, h.Key+": "+h.Value)
	}

	return lines
}
