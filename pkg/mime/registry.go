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

package mime

import (
	"strings"

	"github.com/pkg/errors"

	"d7y.io/curler/internal/dferrors"
	"d7y.io/curler/pkg/container/set"
)

// Entry binds a canonical MIME type to the tags it satisfies.
type Entry struct {
	Type string
	Tags []Tag
}

// Registry is an immutable MIME type to tags table.
type Registry struct {
	entries map[string]set.Set[Tag]
}

var defaultEntries = []Entry{
	{Type: "application/json", Tags: []Tag{TagAll, TagJavascript, TagJS, TagJSON, TagText}},
	{Type: "application/x-javascript", Tags: []Tag{TagAll, TagJavascript, TagJS, TagText}},
	{Type: "application/xhtml+xml", Tags: []Tag{TagAll, TagText, TagWebpage, TagWebpages, TagXHTML, TagXML}},
	{Type: "application/xml", Tags: []Tag{TagAll, TagText, TagXML}},
	{Type: "image/bmp", Tags: []Tag{TagAll, TagBMP, TagImage, TagImages}},
	{Type: "image/gif", Tags: []Tag{TagAll, TagGIF, TagImage, TagImages}},
	{Type: "image/jpeg", Tags: []Tag{TagAll, TagImage, TagImages, TagJPEG, TagJPG}},
	{Type: "image/jpg", Tags: []Tag{TagAll, TagImage, TagImages, TagJPEG, TagJPG}},
	{Type: "image/pjpeg", Tags: []Tag{TagAll, TagImage, TagImages, TagJPEG, TagJPG}},
	{Type: "image/png", Tags: []Tag{TagAll, TagImage, TagImages, TagPNG}},
	{Type: "image/vnd.microsoft.icon", Tags: []Tag{TagAll, TagImage, TagImages}},
	{Type: "image/x-icon", Tags: []Tag{TagAll, TagImage, TagImages}},
	{Type: "image/x-bitmap", Tags: []Tag{TagAll, TagImage, TagImages}},
	{Type: "text/css", Tags: []Tag{TagAll, TagCSS, TagText}},
	{Type: "text/html", Tags: []Tag{TagAll, TagHTML, TagText, TagWebpage, TagWebpages}},
	{Type: "text/plain", Tags: []Tag{TagAll, TagText}},
	{Type: "text/javascript", Tags: []Tag{TagAll, TagJavascript, TagJS, TagText}},
	{Type: "text/x-javascript", Tags: []Tag{TagAll, TagJavascript, TagJS, TagText}},
	{Type: "text/x-json", Tags: []Tag{TagAll, TagJavascript, TagJS, TagJSON, TagText}},
}

var defaultRegistry = mustNewRegistry(defaultEntries...)

// Default returns the built-in registry.
func Default() *Registry {
	return defaultRegistry
}

// NewRegistry validates entries and builds a registry from them. Types must
// be unique, every entry needs at least one known tag and must carry TagAll.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]set.Set[Tag], len(entries))}
	for _, e := range entries {
		mimeType := strings.ToLower(strings.TrimSpace(e.Type))
		if mimeType == "" {
			return nil, errors.Wrap(dferrors.ErrInvalidArgument, "empty mime type")
		}

		if _, ok := r.entries[mimeType]; ok {
			return nil, errors.Wrapf(dferrors.ErrInvalidArgument, "duplicate mime type %s", mimeType)
		}

		tags := set.New(e.Tags...)
		if tags.Len() == 0 {
			return nil, errors.Wrapf(dferrors.ErrInvalidArgument, "mime type %s has no tags", mimeType)
		}

		if !tags.Contains(TagAll) {
			return nil, errors.Wrapf(dferrors.ErrInvalidArgument, "mime type %s is missing tag %s", mimeType, TagAll)
		}

		for t := range tags {
			if !t.IsKnown() {
				return nil, errors.Wrapf(dferrors.ErrInvalidArgument, "mime type %s has unknown tag %s", mimeType, t)
			}
		}

		r.entries[mimeType] = tags
	}

	return r, nil
}

func mustNewRegistry(entries ...Entry) *Registry {
	r, err := NewRegistry(entries...)
	if err != nil {
		panic(err)
	}

	return r
}

// TagsFor returns a copy of the tags of mimeType, empty when the type is not
// registered.
func (r *Registry) TagsFor(mimeType string) set.Set[Tag] {
	tags, ok := r.entries[strings.ToLower(mimeType)]
	if !ok {
		return set.New[Tag]()
	}

	return tags.Clone()
}

// MimeTypesForTags expands selectors into the registered types they accept.
// A type matches when it is named literally or when it shares a tag with the
// selectors.
func (r *Registry) MimeTypesForTags(selectors set.Set[Selector]) set.Set[string] {
	result := set.New[string]()
	if selectors.Len() == 0 {
		return result
	}

	wanted := set.New[Tag]()
	for s := range selectors {
		wanted.Add(Tag(s))
	}

	for mimeType, tags := range r.entries {
		if selectors.Contains(Selector(mimeType)) || tags.Intersects(wanted) {
			result.Add(mimeType)
		}
	}

	return result
}

// Types returns every registered type in ascending order.
func (r *Registry) Types() []string {
	result := set.New[string]()
	for mimeType := range r.entries {
		result.Add(mimeType)
	}

	return result.Values()
}

// Entries returns the table ordered by type.
func (r *Registry) Entries() []Entry {
	var result []Entry
	for _, mimeType := range r.Types() {
		result = append(result, Entry{
			Type: mimeType,
			Tags: r.entries[mimeType].Values(),
		})
	}

	return result
}
