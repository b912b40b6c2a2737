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

import (
	"errors"

	"github.com/tomoncle/bedrock/types"
)

var (
	ErrInvalidUnitOfWork  = errors.New("invalid unit of work or it does not exist")
	ErrNotActive          = errors.New("unit of work is not active")
	ErrTransactionAborted = errors.New("transaction aborted by a nested rollback")
)

// Options controls how Do finishes a unit of work.
type Options int

const (
	// Explicit leaves Commit to the caller.
	Explicit Options = 0
	// AutoCommit commits when the block returns without error.
	AutoCommit Options = 1
)

func (o Options) Has(flag Options) bool { return o&flag == flag }

func (o Options) String() string {
	if o.Has(AutoCommit) {
		return "auto_commit"
	}
	return "explicit"
}

// Status is the lifecycle state of a UnitOfWork:
// Active -> Committed | RolledBack -> Disposed.
type Status int

const (
	Active Status = iota
	Committed
	RolledBack
	Disposed
)

var _ types.BaseEnum = Active

var statusNames = [...]string{
	Active:     "active",
	Committed:  "committed",
	RolledBack: "rolled_back",
	Disposed:   "disposed",
}

var statusDescs = [...]string{
	Active:     "unit of work is open",
	Committed:  "unit of work committed",
	RolledBack: "unit of work rolled back",
	Disposed:   "unit of work closed",
}

func (s Status) IsValid() bool { return s >= Active && s <= Disposed }

func (s Status) Number() int {
	if !s.IsValid() {
		return types.IllegalValue
	}
	return int(s)
}

func (s Status) String() string { return s.Name() }

func (s Status) Name() string {
	if !s.IsValid() {
		return types.IllegalName
	}
	return statusNames[s]
}

func (s Status) Desc() string {
	if !s.IsValid() {
		return types.IllegalDesc
	}
	return statusDescs[s]
}

// ObjectState is the change-tracking state of an entity.
type ObjectState int

const (
	Detached ObjectState = iota
	Unchanged
	Added
	Modified
	Deleted
	Upserted
)

var _ types.BaseEnum = Unchanged

var objectStateNames = [...]string{
	Detached:  "detached",
	Unchanged: "unchanged",
	Added:     "added",
	Modified:  "modified",
	Deleted:   "deleted",
	Upserted:  "upserted",
}

var objectStateDescs = [...]string{
	Detached:  "not tracked",
	Unchanged: "tracked without pending changes",
	Added:     "inserted on commit",
	Modified:  "updated on commit",
	Deleted:   "deleted on commit",
	Upserted:  "inserted or updated on commit",
}

func (s ObjectState) IsValid() bool { return s >= Detached && s <= Upserted }

func (s ObjectState) Number() int {
	if !s.IsValid() {
		return types.IllegalValue
	}
	return int(s)
}

func (s ObjectState) String() string { return s.Name() }

func (s ObjectState) Name() string {
	if !s.IsValid() {
		return types.IllegalName
	}
	return objectStateNames[s]
}

func (s ObjectState) Desc() string {
	if !s.IsValid() {
		return types.IllegalDesc
	}
	return objectStateDescs[s]
}

// Pending reports whether the state is written to the store on commit.
func (s ObjectState) Pending() bool {
	return s == Added || s == Modified || s == Deleted || s == Upserted
}
