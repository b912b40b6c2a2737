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

package uow

import "slices"

// UpsertOptions names the columns an upsert overwrites and the unique keys
// that detect a conflict. Empty ConflictKeys means "id".
type UpsertOptions struct {
	Fields       []string
	ConflictKeys []string
}

// Entry is one tracked entity. Entity is always a pointer to a Bun model.
type Entry struct {
	Entity any
	State  ObjectState
	Upsert *UpsertOptions
}

// ChangeTracker records pending entity changes in registration order.
// Entities are identified by pointer.
type ChangeTracker struct {
	entries []*Entry
}

func newChangeTracker() *ChangeTracker {
	return &ChangeTracker{}
}

func (t *ChangeTracker) lookup(entity any) (int, *Entry) {
	for i, e := range t.entries {
		if e.Entity == entity {
			return i, e
		}
	}
	return -1, nil
}

func (t *ChangeTracker) set(entity any, state ObjectState) *Entry {
	if _, e := t.lookup(entity); e != nil {
		e.State = state
		return e
	}
	e := &Entry{Entity: entity, State: state}
	t.entries = append(t.entries, e)
	return e
}

func (t *ChangeTracker) drop(entity any) {
	if i, _ := t.lookup(entity); i >= 0 {
		t.entries = slices.Delete(t.entries, i, i+1)
	}
}

// Add marks entity for insertion.
func (t *ChangeTracker) Add(entity any) {
	t.set(entity, Added)
}

// Remove marks entity for deletion. An entity added in the same unit of work
// is simply forgotten.
func (t *ChangeTracker) Remove(entity any) {
	if _, e := t.lookup(entity); e != nil && e.State == Added {
		t.drop(entity)
		return
	}
	t.set(entity, Deleted)
}

// Update marks entity as modified unless it is still waiting to be inserted.
func (t *ChangeTracker) Update(entity any) {
	if _, e := t.lookup(entity); e != nil && (e.State == Added || e.State == Upserted) {
		return
	}
	t.set(entity, Modified)
}

// Attach starts tracking entity without scheduling a write. Already tracked
// entities keep their state.
func (t *ChangeTracker) Attach(entity any) {
	if _, e := t.lookup(entity); e != nil {
		return
	}
	t.set(entity, Unchanged)
}

// Upsert marks entity for an insert that updates opts.Fields on conflict.
func (t *ChangeTracker) Upsert(entity any, opts UpsertOptions) {
	e := t.set(entity, Upserted)
	e.Upsert = &opts
}

// State returns the tracked state of entity, or Detached.
func (t *ChangeTracker) State(entity any) ObjectState {
	if _, e := t.lookup(entity); e != nil {
		return e.State
	}
	return Detached
}

// Entries returns a copy of the tracked entries in registration order.
func (t *ChangeTracker) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	return out
}

// HasChanges reports whether any entry is pending.
func (t *ChangeTracker) HasChanges() bool {
	return slices.ContainsFunc(t.entries, func(e *Entry) bool { return e.State.Pending() })
}

// accept marks every written entry as Unchanged and forgets deleted ones.
func (t *ChangeTracker) accept() {
	t.entries = slices.DeleteFunc(t.entries, func(e *Entry) bool { return e.State == Deleted })
	for _, e := range t.entries {
		e.State = Unchanged
		e.Upsert = nil
	}
}

func (t *ChangeTracker) clear() {
	t.entries = nil
}
