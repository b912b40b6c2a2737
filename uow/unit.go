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

	"github.com/tomoncle/bedrock/database"
	"github.com/tomoncle/bedrock/types"
)

// UnitOfWork is one scope on a DataContext stack. Close must be called on
// every path, normally through Do.
type UnitOfWork struct {
	dc        *DataContext
	options   Options
	status    Status
	depth     int
	outermost bool
	audit     *types.AuditInfo
}

// New pushes a unit of work onto dc. The outermost unit begins the ambient
// transaction; if that fails the push is undone and the store error returned.
func New(ctx context.Context, dc *DataContext, opts Options) (*UnitOfWork, error) {
	if dc == nil {
		return nil, ErrInvalidUnitOfWork
	}
	u := &UnitOfWork{dc: dc, options: opts, status: Active}
	dc.push(u)
	u.depth = len(dc.units)
	if u.depth == 1 {
		if err := dc.begin(ctx); err != nil {
			dc.pop(u)
			return nil, err
		}
		u.outermost = true
	}
	dc.logger.Debug("Unit of work opened", "depth", u.depth, "options", opts)
	return u, nil
}

func (u *UnitOfWork) DataContext() *DataContext { return u.dc }

func (u *UnitOfWork) Options() Options { return u.options }

func (u *UnitOfWork) Status() Status { return u.status }

func (u *UnitOfWork) Depth() int { return u.depth }

func (u *UnitOfWork) Audit() *types.AuditInfo { return u.audit }

// IsTopLevel reports whether this is the only open unit of work.
func (u *UnitOfWork) IsTopLevel() bool {
	return u.dc.UnitOfWorkCount() == 1
}

// Commit completes the scope. At top level it writes pending changes and
// commits the transaction, returning the rows affected; nested units return
// 0. A transaction doomed by a nested rollback fails with
// ErrTransactionAborted. Store errors are returned as-is.
func (u *UnitOfWork) Commit(ctx context.Context) (int64, error) {
	if u.status != Active {
		return 0, ErrNotActive
	}
	dc := u.dc
	if !u.IsTopLevel() {
		u.status = Committed
		return 0, nil
	}
	if dc.doomed {
		if err := dc.rollbackTx(); err != nil {
			dc.logger.Error("Rollback of aborted transaction failed", u.logFields("error", err)...)
		}
		u.status = RolledBack
		return 0, ErrTransactionAborted
	}

	n, err := dc.flush(ctx, dc.IDB())
	if err != nil {
		_, kind := database.IsSqlError(err)
		dc.logger.Error("Saving changes failed", u.logFields("error", err, "kind", kind)...)
		return 0, err
	}
	if dc.tx != nil {
		if err := dc.commitTx(); err != nil {
			return 0, err
		}
	}
	u.status = Committed
	dc.logger.Debug("Unit of work committed", u.logFields("rows", n)...)
	return n, nil
}

// Rollback dooms the ambient transaction and discards pending changes. At
// top level the transaction is rolled back immediately, nested units leave
// that to the outermost Close. The nesting depth is unchanged.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.status == Disposed {
		return ErrNotActive
	}
	dc := u.dc
	u.status = RolledBack
	dc.doomed = true
	dc.tracker.clear()
	dc.logger.Debug("Unit of work rolled back", u.logFields()...)
	if u.IsTopLevel() {
		return dc.rollbackTx()
	}
	return nil
}

// Close releases the scope exactly once. The outermost unit rolls back a
// transaction that was never committed; a nested unit closed while still
// Active dooms it.
func (u *UnitOfWork) Close() error {
	if u.status == Disposed {
		return nil
	}
	dc := u.dc
	var err error
	if u.outermost {
		if dc.tx != nil {
			if u.status == Active {
				dc.logger.Warn("Unit of work closed without commit", u.logFields()...)
			}
			err = dc.rollbackTx()
		}
		dc.tracker.clear()
		dc.doomed = false
		if dc.repositories > 0 {
			dc.logger.Warn("Repository leak detected", u.logFields("repositories", dc.repositories)...)
		}
	} else if u.status == Active {
		dc.doomed = true
	}
	dc.pop(u)
	u.status = Disposed
	return err
}

func (u *UnitOfWork) logFields(kv ...interface{}) []interface{} {
	fields := append([]interface{}{"depth", u.depth}, kv...)
	return append(fields, u.audit.LogFields()...)
}

// Do runs fn inside a new unit of work. When fn succeeds and opts has
// AutoCommit the unit is committed if it is still Active; when fn fails or
// panics an Active unit is rolled back. The unit is always closed. fn's error
// is returned unchanged and a panic is re-raised after cleanup.
func Do(ctx context.Context, dc *DataContext, opts Options, audit *types.AuditInfo, fn func(ctx context.Context, u *UnitOfWork) error) (err error) {
	u, err := New(ctx, dc, opts)
	if err != nil {
		return err
	}
	u.audit = audit
	ctx = types.WithAudit(ctx, audit)

	defer func() {
		r := recover()
		if r != nil || err != nil {
			if u.status == Active {
				if rbErr := u.Rollback(ctx); rbErr != nil {
					dc.logger.Error("Rollback failed", u.logFields("error", rbErr)...)
				}
			}
		}
		if closeErr := u.Close(); closeErr != nil {
			if err == nil && r == nil {
				err = closeErr
			} else {
				dc.logger.Error("Closing unit of work failed", u.logFields("error", closeErr)...)
			}
		}
		if r != nil {
			panic(r)
		}
	}()

	if err = fn(ctx, u); err != nil {
		return err
	}
	if opts.Has(AutoCommit) && u.status == Active {
		_, err = u.Commit(ctx)
	}
	return err
}
