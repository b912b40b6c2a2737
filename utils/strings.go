/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var properCaser = cases.Title(language.Und)

// ToProperCase title-cases every word of s.
func ToProperCase(s string) string {
	if s == "" {
		return s
	}
	return properCaser.String(strings.ToLower(s))
}

// HasValue reports whether s contains anything besides white space.
func HasValue(s string) bool {
	return strings.TrimSpace(s) != ""
}

// NilIfEmpty returns nil for a blank string, otherwise a pointer to s.
func NilIfEmpty(s string) *string {
	if !HasValue(s) {
		return nil
	}
	return &s
}

// Coalesce returns the first value that HasValue, or "".
func Coalesce(values ...string) string {
	for _, v := range values {
		if HasValue(v) {
			return v
		}
	}
	return ""
}

// ReplaceAll replaces every old in s with replacement.
func ReplaceAll(s string, replacement string, old ...string) string {
	if len(old) == 0 {
		return s
	}
	pairs := make([]string, 0, len(old)*2)
	for _, o := range old {
		if o == "" {
			continue
		}
		pairs = append(pairs, o, replacement)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// PrefixAll prepends prefix to each value.
func PrefixAll(values []string, prefix string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = prefix + v
	}
	return out
}

// SuffixAll appends suffix to each value.
func SuffixAll(values []string, suffix string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v + suffix
	}
	return out
}

// JoinNonEmpty joins the values that HasValue with sep.
func JoinNonEmpty(sep string, values ...string) string {
	kept := values[:0:0]
	for _, v := range values {
		if HasValue(v) {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, sep)
}
