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

package comparer

import (
	"fmt"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// EqualityComparer decides whether two values are equal and hashes them
// consistently with that decision.
type EqualityComparer[T any] interface {
	Equal(x, y T) bool
	Hash(v T) uint64
}

// DataPropertyComparer compares values by the string form of a fixed list of
// exported fields. T may be a struct or a pointer to one.
type DataPropertyComparer[T any] struct {
	fields [][]int
	names  []string
}

// DataProperty builds a comparer over the named fields of T. Names that do
// not match an exported field are skipped.
func DataProperty[T any](properties ...string) *DataPropertyComparer[T] {
	c := &DataPropertyComparer[T]{}
	typ := reflect.TypeFor[T]()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return c
	}
	for _, name := range properties {
		f, ok := typ.FieldByName(name)
		if !ok || !f.IsExported() {
			continue
		}
		c.fields = append(c.fields, f.Index)
		c.names = append(c.names, name)
	}
	return c
}

// Properties returns the field names the comparer actually uses.
func (c *DataPropertyComparer[T]) Properties() []string {
	return append([]string(nil), c.names...)
}

// values returns the string form of every compared field, or nil when v is
// a nil pointer.
func (c *DataPropertyComparer[T]) values(v T) []string {
	rv := reflect.ValueOf(&v).Elem()
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	out := make([]string, len(c.fields))
	for i, index := range c.fields {
		fv, err := rv.FieldByIndexErr(index)
		if err != nil {
			// embedded nil pointer on the path
			out[i] = "<nil>"
			continue
		}
		out[i] = fmt.Sprint(fv.Interface())
	}
	return out
}

// Equal reports whether every compared field has the same string form in x
// and y. Strings are compared ordinally, so case matters.
func (c *DataPropertyComparer[T]) Equal(x, y T) bool {
	xs, ys := c.values(x), c.values(y)
	if xs == nil || ys == nil {
		return xs == nil && ys == nil
	}
	for i := range xs {
		if xs[i] != ys[i] {
			return false
		}
	}
	return true
}

// Hash combines the hashes of the compared fields. Values that are Equal
// hash the same.
func (c *DataPropertyComparer[T]) Hash(v T) uint64 {
	var h uint64
	for _, s := range c.values(v) {
		h ^= xxhash.Sum64String(s)
	}
	return h
}

// Distinct returns items with later duplicates removed, keeping the first
// occurrence of each value and the original order.
func Distinct[T any](items []T, c EqualityComparer[T]) []T {
	out := make([]T, 0, len(items))
	seen := make(map[uint64][]int, len(items))
	for _, item := range items {
		h := c.Hash(item)
		dup := false
		for _, i := range seen[h] {
			if c.Equal(out[i], item) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[h] = append(seen[h], len(out))
		out = append(out, item)
	}
	return out
}
