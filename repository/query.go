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

package repository

import (
	"fmt"
	"slices"

	"github.com/uptrace/bun"

	"github.com/tomoncle/bedrock/expression"
	"github.com/tomoncle/bedrock/specification"
)

// stage selects which parts of a plan are applied to a query.
type stage int

const (
	stageInclude stage = 1 << iota
	stageSort
	stagePaging

	stageAll = stageInclude | stageSort | stagePaging
)

// plan groups specifications by kind, keeping insertion order within a kind.
type plan[T any] struct {
	includes []*specification.Include[T]
	filters  []*specification.Filter[T]
	sorts    []*specification.Sort[T]
	pagings  []*specification.Paging[T]
}

func newPlan[T any](specs []specification.Specification[T]) (*plan[T], error) {
	p := &plan[T]{}
	for _, spec := range specs {
		switch s := spec.(type) {
		case *specification.Include[T]:
			if s == nil {
				return nil, specification.ErrNilSpecification
			}
			p.includes = append(p.includes, s)
		case *specification.Filter[T]:
			if s == nil {
				return nil, specification.ErrNilSpecification
			}
			p.filters = append(p.filters, s)
		case *specification.Sort[T]:
			if s == nil {
				return nil, specification.ErrNilSpecification
			}
			p.sorts = append(p.sorts, s)
		case *specification.Paging[T]:
			if s == nil {
				return nil, specification.ErrNilSpecification
			}
			p.pagings = append(p.pagings, s)
		case nil:
			return nil, specification.ErrNilSpecification
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedSpecification, spec)
		}
	}
	return p, nil
}

// apply builds the query in the fixed order include, filter, sort, page.
// Filters are always applied; the other stages only when selected.
func (p *plan[T]) apply(q *bun.SelectQuery, res resolver, stages stage) (*bun.SelectQuery, error) {
	var joined []string

	if stages&stageInclude != 0 {
		for _, inc := range p.includes {
			if err := res.relation(inc.Path()); err != nil {
				return nil, err
			}
			q = q.Relation(inc.Path())
			joined = append(joined, inc.Path())
		}
	}

	for _, f := range p.filters {
		where, args, joins, err := translatePredicate(res, f.Expression())
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f, err)
		}
		for _, j := range joins {
			if !slices.Contains(joined, j) {
				q = q.Relation(j)
				joined = append(joined, j)
			}
		}
		q = q.Where(where, args...)
	}

	if stages&stageSort != 0 {
		for _, s := range p.sorts {
			path := s.Column()
			if sel := s.Selector(); sel != nil {
				var err error
				if path, err = expression.MemberPath(sel); err != nil {
					return nil, err
				}
			}
			ref, err := res.column(path)
			if err != nil {
				return nil, err
			}
			if ref.join != "" && !slices.Contains(joined, ref.join) {
				q = q.Relation(ref.join)
				joined = append(joined, ref.join)
			}
			q = q.OrderExpr(ref.fragment+" "+s.Direction().String(), ref.args...)
		}
	}

	if stages&stagePaging != 0 && len(p.pagings) > 0 {
		if len(p.pagings) > 1 {
			return nil, ErrMultiplePaging
		}
		if len(p.sorts) == 0 || stages&stageSort == 0 {
			return nil, ErrPagingWithoutSort
		}
		page := p.pagings[0]
		q = q.Offset(page.Skip()).Limit(page.PageSize())
	}
	return q, nil
}
