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

package database

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"

	"github.com/tomoncle/bedrock/utils"
)

// MigrationManager applies versioned migrations, each inside its own
// transaction, and records them in the migrations table.
type MigrationManager struct {
	db     *bun.DB
	logger Logger
}

// Migration is an applied migration record.
type Migration struct {
	bun.BaseModel `bun:"table:migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

var (
	extraMigrations   []MigrationItem
	extraMigrationsMu sync.Mutex
)

// RegisterMigration adds a migration that runs after the base tables are
// created. Versions are compared as strings, "001" runs before "002".
func RegisterMigration(item MigrationItem) {
	extraMigrationsMu.Lock()
	defer extraMigrationsMu.Unlock()
	extraMigrations = append(extraMigrations, item)
}

func NewMigrationManager(db *bun.DB, logger Logger) *MigrationManager {
	return &MigrationManager{db: db, logger: logger}
}

// RunMigrations creates the migrations table if needed and executes every
// pending migration in ascending version order. Query hooks are silenced
// unless BUNDEBUG_MIGRATION is true.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return ErrNotConnected
	}
	if !utils.EnvDefaultBool("BUNDEBUG_MIGRATION", false) {
		SilenceHooks(true)
		defer SilenceHooks(false)
	}

	if err := mm.createMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations := mm.getAllMigrations()
	slices.SortStableFunc(migrations, func(a, b MigrationItem) int {
		return strings.Compare(a.Version, b.Version)
	})
	for _, migration := range migrations {
		if err := mm.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
	}

	if mm.logger != nil {
		mm.logger.Info("Database migrations completed!")
	}
	return nil
}

func (mm *MigrationManager) createMigrationTable(ctx context.Context) error {
	_, err := mm.db.NewCreateTable().
		Model((*Migration)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (mm *MigrationManager) getAllMigrations() []MigrationItem {
	migrations := []MigrationItem{
		{
			Version:     "000",
			Name:        "create_base_tables",
			Description: "Create tables for registered models",
			Up:          mm.createBaseTables,
		},
	}
	extraMigrationsMu.Lock()
	migrations = append(migrations, extraMigrations...)
	extraMigrationsMu.Unlock()
	return migrations
}

func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) error {
	if migration.Up == nil {
		return fmt.Errorf("migration %s has no up step", migration.Version)
	}
	exists, err := mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", migration.Version).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := migration.Up(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().
			Model(&Migration{
				Version:     migration.Version,
				Name:        migration.Name,
				AppliedAt:   time.Now(),
				Description: migration.Description,
			}).
			Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if mm.logger != nil {
		mm.logger.Info("Migration executed successfully", "version", migration.Version, "name", migration.Name)
	}
	return nil
}

func (mm *MigrationManager) createBaseTables(ctx context.Context, db bun.IDB) error {
	for _, model := range RegisteredModelInstances() {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table %T: %w", model, err)
		}
	}
	return nil
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}
