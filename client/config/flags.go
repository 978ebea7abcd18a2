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
	"strings"

	"d7y.io/curler/pkg/mime"
)

// SelectorsValue implements the pflag.Value interface. Every value is
// checked as a mime selector when the flag is parsed.
type SelectorsValue struct {
	selectors *[]string
	changed   bool
}

func NewSelectorsValue(selectors *[]string) *SelectorsValue {
	return &SelectorsValue{selectors: selectors}
}

func (sv *SelectorsValue) String() string {
	return strings.Join(*sv.selectors, ",")
}

// Set replaces the defaults on first use and appends afterwards. Comma
// separated lists are accepted, an empty value clears the list.
func (sv *SelectorsValue) Set(value string) error {
	if strings.TrimSpace(value) == "" {
		*sv.selectors = []string{}
		sv.changed = true
		return nil
	}

	var parsed []string
	for _, v := range strings.Split(value, ",") {
		sel, err := mime.ParseSelector(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		parsed = append(parsed, string(sel))
	}

	if !sv.changed {
		*sv.selectors = nil
		sv.changed = true
	}

	*sv.selectors = append(*sv.selectors, parsed...)
	return nil
}

func (sv *SelectorsValue) Type() string {
	return "selectors"
}
