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

package dependency

import (
	"bytes"
	"testing"

	testifyassert "github.com/stretchr/testify/assert"

	"d7y.io/curler/version"
)

func TestVersionCmd(t *testing.T) {
	assert := testifyassert.New(t)

	var out bytes.Buffer
	VersionCmd.SetOut(&out)
	VersionCmd.Run(VersionCmd, nil)

	assert.Contains(out.String(), "GitVersion:"+version.GitVersion)
	assert.Contains(out.String(), "Platform:"+version.Platform)
}
