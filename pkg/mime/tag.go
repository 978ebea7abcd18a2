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

// Tag names a family of MIME types.
type Tag string

const (
	TagAll        Tag = "all"
	TagBMP        Tag = "bmp"
	TagCSS        Tag = "css"
	TagGIF        Tag = "gif"
	TagHTML       Tag = "html"
	TagImage      Tag = "image"
	TagImages     Tag = "images"
	TagJavascript Tag = "javascript"
	TagJPEG       Tag = "jpeg"
	TagJPG        Tag = "jpg"
	TagJS         Tag = "js"
	TagJSON       Tag = "json"
	TagPNG        Tag = "png"
	TagText       Tag = "text"
	TagWebpage    Tag = "webpage"
	TagWebpages   Tag = "webpages"
	TagXHTML      Tag = "xhtml"
	TagXML        Tag = "xml"
)

var knownTags = set.New(
	TagAll, TagBMP, TagCSS, TagGIF, TagHTML, TagImage, TagImages,
	TagJavascript, TagJPEG, TagJPG, TagJS, TagJSON, TagPNG, TagText,
	TagWebpage, TagWebpages, TagXHTML, TagXML,
)

// IsKnown reports whether t is one of the declared tags.
func (t Tag) IsKnown() bool {
	return knownTags.Contains(t)
}

// Tags returns every declared tag.
func Tags() []Tag {
	return knownTags.Values()
}

// Selector is an entry of an accepted-tags policy: either a Tag or a
// literal MIME type such as "image/png".
type Selector string

// TagSelectors converts tags into selectors.
func TagSelectors(tags ...Tag) set.Set[Selector] {
	s := set.New[Selector]()
	for _, t := range tags {
		s.Add(Selector(t))
	}

	return s
}

// ParseSelector accepts a known tag or a type/subtype string, case
// insensitively.
func ParseSelector(s string) (Selector, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if Tag(s).IsKnown() {
		return Selector(s), nil
	}

	major, minor, ok := strings.Cut(s, "/")
	if ok && major != "" && minor != "" && !strings.ContainsAny(s, " ;,") {
		return Selector(s), nil
	}

	return "", errors.Wrapf(dferrors.ErrInvalidArgument, "unknown mime tag or type %q", s)
}

// ParseSelectors parses every string, failing on the first invalid one.
func ParseSelectors(ss ...string) (set.Set[Selector], error) {
	result := set.New[Selector]()
	for _, s := range ss {
		sel, err := ParseSelector(s)
		if err != nil {
			return nil, err
		}
		result.Add(sel)
	}

	return result, nil
}
