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

// Package charset finds the character set of a fetched document.
package charset

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	htmlcharset "golang.org/x/net/html/charset"
)

var charsetRegexp = regexp.MustCompile(`(?i)charset\s*=\s*["']?([a-z0-9_.:-]+)`)

// Normalize lower cases name and spells utf8 as utf-8.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "utf8" {
		return "utf-8"
	}

	return name
}

// Canonical returns the WHATWG name of a charset label, or false when the
// label is unknown.
func Canonical(name string) (string, bool) {
	_, canonical := htmlcharset.Lookup(name)
	if canonical == "" {
		return "", false
	}

	return canonical, true
}

// FromContentType extracts the charset parameter of a Content-Type value.
func FromContentType(contentType string) (string, bool) {
	matches := charsetRegexp.FindStringSubmatch(contentType)
	if len(matches) < 2 {
		return "", false
	}

	return Normalize(matches[1]), true
}

// FromDocument reads the charset declared by an HTML document, either as
// <meta charset> or as a <meta http-equiv="Content-Type"> content value.
// Known labels are returned by their WHATWG name.
func FromDocument(body []byte) (string, bool) {
	if len(body) == 0 {
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}

	var result string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr("charset"); ok && strings.TrimSpace(v) != "" {
			result = documentCharset(v)
			return false
		}

		if equiv, ok := s.Attr("http-equiv"); ok && strings.EqualFold(strings.TrimSpace(equiv), "content-type") {
			if content, ok := s.Attr("content"); ok {
				if cs, ok := FromContentType(content); ok {
					result = documentCharset(cs)
					return false
				}
			}
		}

		return true
	})

	return result, result != ""
}

// documentCharset prefers the WHATWG name of a known label.
func documentCharset(name string) string {
	name = Normalize(name)
	if canonical, ok := Canonical(name); ok {
		return canonical
	}

	return name
}

// FromBOM reports the charset announced by a byte order mark.
func FromBOM(body []byte) (string, bool) {
	if !bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}) &&
		!bytes.HasPrefix(body, []byte{0xFE, 0xFF}) &&
		!bytes.HasPrefix(body, []byte{0xFF, 0xFE}) {
		return "", false
	}

	_, name, certain := htmlcharset.DetermineEncoding(body, "")
	if !certain {
		return "", false
	}

	return Normalize(name), true
}

// Detect prefers the Content-Type header, then the document markup, then a
// byte order mark.
func Detect(contentType string, body []byte) (string, bool) {
	if cs, ok := FromContentType(contentType); ok {
		return cs, true
	}

	if cs, ok := FromDocument(body); ok {
		return cs, true
	}

	return FromBOM(body)
}
