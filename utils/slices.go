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
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EmptyIfNil never returns a nil slice.
func EmptyIfNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}

func IsEmpty[T any](values []T) bool {
	return len(values) == 0
}

// AsBatch splits values into consecutive chunks of at most size elements.
func AsBatch[T any](values []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}
	batches := make([][]T, 0, (len(values)+size-1)/size)
	for start := 0; start < len(values); start += size {
		end := min(start+size, len(values))
		batches = append(batches, values[start:end])
	}
	return batches, nil
}

// ParallelExecute runs fn for every value with at most limit goroutines in
// flight. The first error cancels ctx for the remaining calls and is returned.
// A limit <= 0 means unbounded.
func ParallelExecute[T any](ctx context.Context, values []T, limit int, fn func(ctx context.Context, value T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, v := range values {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, v)
		})
	}
	return g.Wait()
}

// Map applies fn to every element.
func Map[T, R any](values []T, fn func(T) R) []R {
	out := make([]R, len(values))
	for i, v := range values {
		out[i] = fn(v)
	}
	return out
}
