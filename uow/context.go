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
	"context"
	"database/sql"
	"errors"
	"slices"

	"github.com/uptrace/bun"

	"github.com/tomoncle/bedrock/database"
	"github.com/tomoncle/bedrock/ioc"
)

// Stats counts the store primitives a DataContext has issued.
type Stats struct {
	SaveChanges int
	Commits     int
	Rollbacks   int
}

// DataContext is the shared state of one logical operation: the unit-of-work
// stack, the repository counter, the ambient transaction and the change
// tracker. It is not safe for concurrent use.
type DataContext struct {
	db        *bun.DB
	logger    database.Logger
	container *ioc.Container

	units        []*UnitOfWork
	repositories int
	tx           *bun.Tx
	doomed       bool
	tracker      *ChangeTracker
	stats        Stats
}

type Option func(*DataContext)

func WithLogger(logger database.Logger) Option {
	return func(dc *DataContext) {
		if logger != nil {
			dc.logger = logger
		}
	}
}

// WithContainer sets the container repositories are resolved from.
func WithContainer(c *ioc.Container) Option {
	return func(dc *DataContext) {
		if c != nil {
			dc.container = c
		}
	}
}

func NewDataContext(db *bun.DB, opts ...Option) *DataContext {
	dc := &DataContext{
		db:      db,
		tracker: newChangeTracker(),
	}
	for _, opt := range opts {
		opt(dc)
	}
	if dc.logger == nil {
		dc.logger = database.NewDefaultLogger("UOW")
	}
	if dc.container == nil {
		dc.container = ioc.New()
	}
	return dc
}

func (dc *DataContext) DB() *bun.DB { return dc.db }

// IDB returns the ambient transaction while a unit of work is open and the
// database otherwise.
func (dc *DataContext) IDB() bun.IDB {
	if dc.tx != nil {
		return *dc.tx
	}
	return dc.db
}

func (dc *DataContext) Logger() database.Logger { return dc.logger }

func (dc *DataContext) Container() *ioc.Container { return dc.container }

func (dc *DataContext) Tracker() *ChangeTracker { return dc.tracker }

func (dc *DataContext) Stats() Stats { return dc.stats }

// UnitOfWorkCount is the current nesting depth.
func (dc *DataContext) UnitOfWorkCount() int { return len(dc.units) }

func (dc *DataContext) RepositoryCount() int { return dc.repositories }

// AcquireRepository and ReleaseRepository keep the repository counter used
// for leak detection when the outermost unit of work closes.
func (dc *DataContext) AcquireRepository() { dc.repositories++ }

func (dc *DataContext) ReleaseRepository() {
	if dc.repositories > 0 {
		dc.repositories--
	}
}

// InTransaction reports whether an ambient transaction is open.
func (dc *DataContext) InTransaction() bool { return dc.tx != nil }

// Doomed reports whether a nested rollback has condemned the transaction.
func (dc *DataContext) Doomed() bool { return dc.doomed }

// Current returns the innermost open unit of work.
func (dc *DataContext) Current() (*UnitOfWork, error) {
	if len(dc.units) == 0 {
		return nil, ErrInvalidUnitOfWork
	}
	return dc.units[len(dc.units)-1], nil
}

// Exec runs a raw statement on the current connection, inside the ambient
// transaction when there is one.
func (dc *DataContext) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return dc.IDB().ExecContext(ctx, query, args...)
}

// Do runs fn in an auto-committed unit of work without audit information.
func (dc *DataContext) Do(ctx context.Context, fn func(ctx context.Context, u *UnitOfWork) error) error {
	return Do(ctx, dc, AutoCommit, nil, fn)
}

func (dc *DataContext) push(u *UnitOfWork) {
	dc.units = append(dc.units, u)
}

func (dc *DataContext) pop(u *UnitOfWork) {
	i := slices.Index(dc.units, u)
	if i < 0 {
		return
	}
	if i != len(dc.units)-1 {
		dc.logger.Warn("Unit of work closed out of order", "depth", i+1, "count", len(dc.units))
	}
	if i == 0 {
		// the transaction is gone, so are the scopes nested in it
		for _, inner := range dc.units[1:] {
			inner.status = Disposed
		}
		clear(dc.units)
		dc.units = dc.units[:0]
		return
	}
	dc.units = slices.Delete(dc.units, i, i+1)
}

func (dc *DataContext) begin(ctx context.Context) error {
	tx, err := dc.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	dc.tx = &tx
	dc.doomed = false
	return nil
}

// rollbackTx rolls back the ambient transaction if one is open and drops
// every pending change.
func (dc *DataContext) rollbackTx() error {
	dc.tracker.clear()
	if dc.tx == nil {
		return nil
	}
	tx := dc.tx
	dc.tx = nil
	dc.stats.Rollbacks++
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (dc *DataContext) commitTx() error {
	tx := dc.tx
	dc.tx = nil
	if err := tx.Commit(); err != nil {
		return err
	}
	dc.stats.Commits++
	return nil
}
