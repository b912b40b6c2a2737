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

package types

// Pagination holds one page of items along with the page coordinates and the
// total number of matching rows. PageIndex is zero based.
type Pagination[T any] struct {
	PageIndex int
	PageSize  int
	Total     int
	Items     []*T
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](pageIndex int, pageSize int) *Pagination[T] {
	return &Pagination[T]{pageIndex, pageSize, 0, make([]*T, 0)}
}

// PageCount returns the number of pages needed for Total rows.
func (p *Pagination[T]) PageCount() int {
	if p.PageSize <= 0 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// HasNext reports whether a page follows this one.
func (p *Pagination[T]) HasNext() bool {
	return p.PageIndex+1 < p.PageCount()
}
