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

// Package policy decides whether a probed resource may be downloaded.
package policy

import (
	"net/http"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"d7y.io/curler/internal/dferrors"
	"d7y.io/curler/pkg/container/set"
	"d7y.io/curler/pkg/mime"
	"d7y.io/curler/pkg/unit"
)

const DefaultMaxBodyBytes = unit.MB

// Policy is what a caller accepts from a remote resource. An empty
// AcceptedTags set accepts no MIME type at all.
type Policy struct {
	AcceptedTags        set.Set[mime.Selector]
	MaxBodyBytes        unit.Bytes
	AcceptedStatusCodes set.Set[int]
}

// Default accepts web pages answered with 200 up to 1MiB.
func Default() Policy {
	return Policy{
		AcceptedTags:        mime.TagSelectors(mime.TagWebpages),
		MaxBodyBytes:        DefaultMaxBodyBytes,
		AcceptedStatusCodes: set.New(http.StatusOK),
	}
}

// Clone returns a deep copy of p.
func (p Policy) Clone() Policy {
	out := p
	out.AcceptedTags = set.New[mime.Selector]()
	if p.AcceptedTags != nil {
		out.AcceptedTags = p.AcceptedTags.Clone()
	}

	out.AcceptedStatusCodes = set.New[int]()
	if p.AcceptedStatusCodes != nil {
		out.AcceptedStatusCodes = p.AcceptedStatusCodes.Clone()
	}

	return out
}

func (p Policy) Validate() error {
	var result error
	if p.MaxBodyBytes < 0 {
		result = multierror.Append(result, errors.Wrapf(dferrors.ErrInvalidArgument, "max body bytes %d must not be negative", p.MaxBodyBytes))
	}

	for code := range p.AcceptedStatusCodes {
		if code < 100 || code > 999 {
			result = multierror.Append(result, errors.Wrapf(dferrors.ErrInvalidArgument, "status code %d out of range", code))
		}
	}

	return result
}
