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

package rule

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomoncle/bedrock/repository"
)

var (
	ErrClosed = errors.New("rule: closed")
	ErrCycle  = errors.New("rule: chain loops back on itself")
)

// Step processes one entity. A non-nil Rule result takes over the chain in
// place of the next rule.
type Step[T any] func(ctx context.Context, entity *T) (Rule[T], error)

// CheckFunc validates one entity.
type CheckFunc[T any] func(ctx context.Context, entity *T) error

// CompleteFunc finishes processing through the rule's repository.
type CompleteFunc[T any] func(ctx context.Context, repo repository.Repository[T]) error

// Rule is one link of a business rule chain over T.
type Rule[T any] interface {
	// Next returns the rule processing continues with, or nil at the end
	// of the chain.
	Next() Rule[T]

	// Check validates entity against this rule alone.
	Check(ctx context.Context, entity *T) error

	// Process runs step on entity and returns the rule that handles the
	// following step: the rule step returned, else Next, else this rule.
	Process(ctx context.Context, step Step[T], entity *T) (Rule[T], error)

	// Complete ends processing on this rule.
	Complete(ctx context.Context) error

	// Close releases the rule and its repository.
	Close() error
}

type Option[T any] func(*Base[T])

// WithNext links the rule that follows.
func WithNext[T any](next Rule[T]) Option[T] {
	return func(b *Base[T]) { b.next = next }
}

// WithCheck sets the rule's validation.
func WithCheck[T any](check CheckFunc[T]) Option[T] {
	return func(b *Base[T]) { b.check = check }
}

// OnComplete sets what Complete does.
func OnComplete[T any](complete CompleteFunc[T]) Option[T] {
	return func(b *Base[T]) { b.complete = complete }
}

// Base is a Rule backed by a repository. Without options it checks nothing,
// ends the chain and completes as a no-op.
type Base[T any] struct {
	name     string
	repo     repository.Repository[T]
	next     Rule[T]
	check    CheckFunc[T]
	complete CompleteFunc[T]
	closed   bool
}

// New returns the rule called name over repo.
func New[T any](name string, repo repository.Repository[T], opts ...Option[T]) *Base[T] {
	b := &Base[T]{name: name, repo: repo}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Base[T]) Name() string { return b.name }

func (b *Base[T]) String() string { return b.name }

func (b *Base[T]) Repository() repository.Repository[T] { return b.repo }

func (b *Base[T]) Next() Rule[T] { return b.next }

func (b *Base[T]) Check(ctx context.Context, entity *T) error {
	if b.closed {
		return ErrClosed
	}
	if entity == nil {
		return repository.ErrNilEntity
	}
	if b.check == nil {
		return nil
	}
	if err := b.check(ctx, entity); err != nil {
		return fmt.Errorf("rule %s: %w", b.name, err)
	}
	return nil
}

func (b *Base[T]) Process(ctx context.Context, step Step[T], entity *T) (Rule[T], error) {
	if b.closed {
		return nil, ErrClosed
	}
	if step != nil {
		handover, err := step(ctx, entity)
		if err != nil {
			return b, fmt.Errorf("rule %s: %w", b.name, err)
		}
		if handover != nil {
			return handover, nil
		}
	}
	if next := b.Next(); next != nil {
		return next, nil
	}
	return b, nil
}

func (b *Base[T]) Complete(ctx context.Context) error {
	if b.closed {
		return ErrClosed
	}
	if b.complete == nil {
		return nil
	}
	if b.repo != nil {
		b.repo.Context().Logger().Debug("Completing rule", "rule", b.name)
	}
	return b.complete(ctx, b.repo)
}

// Close releases the repository and unlinks the chain. It is idempotent.
func (b *Base[T]) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.next = nil
	if b.repo == nil {
		return nil
	}
	return b.repo.Close()
}

// Run hands entity through steps starting at first, each step on the rule
// the previous one handed over to, then completes the rule processing ended
// on. The first failing step stops the chain and nothing is completed.
func Run[T any](ctx context.Context, first Rule[T], entity *T, steps ...Step[T]) error {
	if first == nil {
		return nil
	}
	current := first
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, err := current.Process(ctx, step, entity)
		if err != nil {
			return err
		}
		current = next
	}
	return current.Complete(ctx)
}

// CheckAll validates entity against first and every rule after it, stopping
// at the first violation.
func CheckAll[T any](ctx context.Context, first Rule[T], entity *T) error {
	seen := make(map[Rule[T]]struct{})
	for r := first; r != nil; r = r.Next() {
		if _, ok := seen[r]; ok {
			return ErrCycle
		}
		seen[r] = struct{}{}
		if err := r.Check(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

// CloseAll closes first and every rule after it.
func CloseAll[T any](first Rule[T]) error {
	var errs []error
	seen := make(map[Rule[T]]struct{})
	for r := first; r != nil; {
		if _, ok := seen[r]; ok {
			break
		}
		seen[r] = struct{}{}
		next := r.Next()
		errs = append(errs, r.Close())
		r = next
	}
	return errors.Join(errs...)
}
