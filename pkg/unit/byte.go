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

package unit

import (
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Bytes is a byte count that renders and parses in binary units.
type Bytes int64

const (
	B  Bytes = 1
	KB       = 1024 * B
	MB       = 1024 * KB
	GB       = 1024 * MB
	TB       = 1024 * GB
	PB       = 1024 * TB
)

func (f Bytes) ToNumber() int64 {
	return int64(f)
}

func ToBytes(size int64) Bytes {
	return Bytes(size)
}

// Set is used for command flag var
func (f *Bytes) Set(s string) (err error) {
	*f, err = Parse(s)
	return
}

func (f Bytes) Type() string {
	return "bytes"
}

func (f Bytes) String() string {
	return units.BytesSize(float64(f))
}

// Parse accepts plain integers and human sizes such as "512k", "1MB" or
// "1.5GiB". All suffixes are binary multiples.
func Parse(fsize string) (Bytes, error) {
	fsize = strings.TrimSpace(fsize)
	if fsize == "" {
		return 0, nil
	}

	if n, err := strconv.ParseInt(fsize, 10, 64); err == nil {
		if n < 0 {
			return 0, errors.Errorf("parse size %s: negative value", fsize)
		}
		return ToBytes(n), nil
	}

	n, err := units.RAMInBytes(fsize)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse size:%s", fsize)
	}

	if n < 0 {
		return 0, errors.Errorf("parse size %s: negative value", fsize)
	}

	return ToBytes(n), nil
}

// MarshalYAML writes the human form when it parses back to the same value,
// and the plain number otherwise.
func (f Bytes) MarshalYAML() (any, error) {
	if parsed, err := Parse(f.String()); err == nil && parsed == f {
		return f.String(), nil
	}

	return f.ToNumber(), nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (f *Bytes) UnmarshalYAML(node *yaml.Node) error {
	var fsizeStr string
	if err := node.Decode(&fsizeStr); err != nil {
		return err
	}

	fsize, err := Parse(fsizeStr)
	if err != nil {
		return err
	}

	*f = fsize
	return nil
}

// UnmarshalText lets viper and encoding/json decode sizes from strings.
func (f *Bytes) UnmarshalText(text []byte) error {
	return f.Set(string(text))
}
