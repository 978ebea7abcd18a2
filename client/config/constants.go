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
	"os"
)

const (
	DefaultConfigFilePath = "/etc/curler/curler.yaml"

	// EnvPrefix prefixes environment overrides, e.g. CURLER_TIMEOUT.
	EnvPrefix = "curler"

	DefaultConcurrency = 4

	// StdoutOutput writes bodies to standard output.
	StdoutOutput = "-"

	// DefaultIndexName names the output of a URL whose path has no file name.
	DefaultIndexName = "index.html"
)

// DefaultLogDir is the parent directory of the curler log directory.
var DefaultLogDir = os.TempDir()
