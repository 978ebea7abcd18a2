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

package set

import (
	"cmp"
	"slices"
)

// Set is an unordered collection of unique values. It is not safe for
// concurrent mutation.
type Set[T cmp.Ordered] map[T]struct{}

// New returns a set holding the given values.
func New[T cmp.Ordered](vals ...T) Set[T] {
	s := make(Set[T], len(vals))
	for _, v := range vals {
		s[v] = struct{}{}
	}

	return s
}

// Values returns the members in ascending order.
func (s Set[T]) Values() []T {
	result := make([]T, 0, len(s))
	for v := range s {
		result = append(result, v)
	}

	slices.Sort(result)
	return result
}

func (s Set[T]) Add(v T) bool {
	if _, found := s[v]; found {
		return false
	}

	s[v] = struct{}{}
	return true
}

func (s Set[T]) Delete(v T) {
	delete(s, v)
}

// Contains reports whether every given value is a member.
func (s Set[T]) Contains(vals ...T) bool {
	for _, v := range vals {
		if _, ok := s[v]; !ok {
			return false
		}
	}

	return true
}

// Intersects reports whether the two sets share at least one member.
func (s Set[T]) Intersects(other Set[T]) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}

	for v := range small {
		if _, ok := large[v]; ok {
			return true
		}
	}

	return false
}

// Union adds every member of other and returns s.
func (s Set[T]) Union(other Set[T]) Set[T] {
	for v := range other {
		s[v] = struct{}{}
	}

	return s
}

func (s Set[T]) Clone() Set[T] {
	return New[T]().Union(s)
}

func (s Set[T]) Len() uint {
	return uint(len(s))
}

func (s Set[T]) Range(fn func(T) bool) {
	for _, v := range s.Values() {
		if !fn(v) {
			break
		}
	}
}

func (s Set[T]) Clear() {
	for v := range s {
		delete(s, v)
	}
}
