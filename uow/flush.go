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
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

// flush writes every pending entry through db and returns the summed rows
// affected. The tracker is left untouched on error.
func (dc *DataContext) flush(ctx context.Context, db bun.IDB) (int64, error) {
	var total int64
	for _, e := range dc.tracker.entries {
		var (
			res sql.Result
			err error
		)
		switch e.State {
		case Added:
			res, err = db.NewInsert().Model(e.Entity).Exec(ctx)
		case Modified:
			res, err = db.NewUpdate().Model(e.Entity).WherePK().Exec(ctx)
		case Deleted:
			res, err = db.NewDelete().Model(e.Entity).WherePK().Exec(ctx)
		case Upserted:
			res, err = dc.upsert(ctx, db, e.Entity, e.Upsert)
		default:
			continue
		}
		if err != nil {
			return total, err
		}
		if res != nil {
			if n, err := res.RowsAffected(); err == nil {
				total += n
			}
		}
	}
	dc.stats.SaveChanges++
	dc.tracker.accept()
	return total, nil
}

func (dc *DataContext) upsert(ctx context.Context, db bun.IDB, entity any, opts *UpsertOptions) (sql.Result, error) {
	if opts == nil || len(opts.Fields) == 0 {
		return nil, fmt.Errorf("upsert %T: fields cannot be empty", entity)
	}
	switch {
	case dc.db.HasFeature(feature.InsertOnConflict):
		keys := opts.ConflictKeys
		if len(keys) == 0 {
			keys = []string{"id"}
		}
		set := make([]string, 0, len(opts.Fields))
		for _, field := range opts.Fields {
			set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", field, field))
		}
		return db.NewInsert().
			Model(entity).
			On("CONFLICT (" + strings.Join(keys, ",") + ") DO UPDATE").
			Set(strings.Join(set, ", ")).
			Exec(ctx)
	case dc.db.HasFeature(feature.InsertOnDuplicateKey):
		set := make([]string, 0, len(opts.Fields))
		for _, field := range opts.Fields {
			set = append(set, fmt.Sprintf("%s = VALUES(%s)", field, field))
		}
		return db.NewInsert().
			Model(entity).
			On("DUPLICATE KEY UPDATE " + strings.Join(set, ", ")).
			Exec(ctx)
	default:
		res, err := db.NewInsert().Model(entity).Exec(ctx)
		if err == nil {
			return res, nil
		}
		res, updateErr := db.NewUpdate().Model(entity).WherePK().Exec(ctx)
		if updateErr != nil {
			return nil, fmt.Errorf("upsert failed for entity: insert error: %v, update error: %w", err, updateErr)
		}
		return res, nil
	}
}
