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

package policy

import (
	"strings"

	"d7y.io/curler/pkg/fetcherrors"
	"d7y.io/curler/pkg/mime"
	"d7y.io/curler/pkg/transport"
	"d7y.io/curler/pkg/unit"
)

// Resolver expands policies against a MIME registry.
type Resolver struct {
	registry *mime.Registry
}

func NewResolver(registry *mime.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// AcceptedTypes returns the MIME types p accepts, sorted.
func (r *Resolver) AcceptedTypes(p Policy) []string {
	if p.AcceptedTags == nil {
		return []string{}
	}

	return r.registry.MimeTypesForTags(p.AcceptedTags).Values()
}

// AcceptHeader renders the Accept header value for p. It is empty when p
// accepts nothing, in which case no Accept header should be sent.
func (r *Resolver) AcceptHeader(p Policy) string {
	return strings.Join(r.AcceptedTypes(p), ",")
}

// Validate checks probe metadata against p: status first, then MIME type,
// then declared length. It returns the first failure, or nil.
func (r *Resolver) Validate(meta *transport.Metadata, p Policy) *fetcherrors.Record {
	if !p.AcceptedStatusCodes.Contains(meta.HTTPStatus) {
		return fetcherrors.NewStatusPolicy(meta.HTTPStatus, meta.ResolvedURL)
	}

	accepted := r.AcceptedTypes(p)
	mimeType := meta.MimeType()
	found := false
	for _, t := range accepted {
		if t == mimeType {
			found = true
			break
		}
	}

	if !found {
		return fetcherrors.NewMimePolicy(mimeType, accepted)
	}

	if meta.DeclaredContentLength >= 0 && unit.Bytes(meta.DeclaredContentLength) > p.MaxBodyBytes {
		return fetcherrors.NewDeclaredSize(p.MaxBodyBytes, unit.Bytes(meta.DeclaredContentLength))
	}

	return nil
}
