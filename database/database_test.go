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
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/goleak"

	"github.com/tomoncle/bedrock/types"
)

type widget struct {
	bun.BaseModel `bun:"table:widgets,alias:w"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
}

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) SetLevel(LogLevel) {}
func (l *recordingLogger) Debug(msg string, _ ...interface{}) {
	l.messages = append(l.messages, msg)
}
func (l *recordingLogger) Info(msg string, _ ...interface{}) {
	l.messages = append(l.messages, msg)
}
func (l *recordingLogger) Warn(msg string, _ ...interface{}) {
	l.messages = append(l.messages, msg)
}
func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.messages = append(l.messages, msg)
}

func memoryDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}

func openMemoryDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, memoryDSN())
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:", SQLiteDSN(""))
	assert.Equal(t, "app.db", SQLiteDSN("app"))
	assert.Equal(t, "app.db", SQLiteDSN("app.db"))
	assert.Equal(t, "file:x?mode=memory", SQLiteDSN("file:x?mode=memory"))
}

func TestManagerLifecycle(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.Type = "sqlite"
	cfg.DBName = memoryDSN()
	cfg.MaxOpenConns = 1
	cfg.HealthCheckInterval = 0

	log := &recordingLogger{}
	m := NewDatabaseManager(cfg)
	m.SetLogger(log)

	ctx := context.Background()
	require.NoError(t, m.Connect(ctx))
	require.NoError(t, m.Ping(ctx))

	status := m.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.Equal(t, 1, status.MaxOpenConns)
	assert.Equal(t, 1, m.GetStats().MaxOpenConns)

	require.NoError(t, m.Reconnect(ctx))
	require.NoError(t, m.Ping(ctx))

	require.NoError(t, m.Disconnect())
	assert.Nil(t, m.GetDB())
	assert.ErrorIs(t, m.Ping(ctx), ErrNotConnected)
	assert.ErrorIs(t, m.RunMigrations(ctx), ErrNotConnected)
	assert.Contains(t, log.messages, "Database connection closed")
}

func TestHealthLoopStopsOnDisconnect(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := DefaultConnectionConfig()
	cfg.Type = "sqlite"
	cfg.DBName = memoryDSN()
	cfg.HealthCheckInterval = 5 * time.Millisecond

	m := NewDatabaseManager(cfg)
	require.NoError(t, m.Connect(context.Background()))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.Disconnect())
	require.NoError(t, m.Disconnect())
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	f := NewDatabaseFactory()
	_, err := f.CreateFromConfig(&ConnectionConfig{Type: "oracle"})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = f.CreateFromConfig(nil)
	assert.ErrorIs(t, err, ErrNilConfig)
	assert.ErrorIs(t, f.InitializeDatabase(context.Background(), false), ErrNoManager)
	assert.Contains(t, SupportedTypes(), "postgresql")
}

func TestFactoryCopiesConfig(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	cfg := &ConnectionConfig{Type: "sqlite", DBName: memoryDSN()}

	f := NewDatabaseFactory()
	f.SetLogger(&recordingLogger{})
	m, err := f.CreateFromConfig(cfg)
	require.NoError(t, err)
	assert.Empty(t, cfg.Host)
	assert.Same(t, m, f.GetManager())
	assert.Nil(t, f.GetDB())
	assert.False(t, f.GetHealthStatus(context.Background()).Healthy)
	require.NoError(t, f.Close())
}

func TestDSNBuilders(t *testing.T) {
	cfg := &ConnectionConfig{Username: "u", Password: "p", Host: "h", Port: 5432, DBName: "d", ConnectTimeout: 3 * time.Second}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable&connect_timeout=3", PostgresDSN(cfg))
	assert.Contains(t, MySQLDSN(cfg), "u:p@tcp(h:5432)/d?charset=utf8mb4")
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_SLOW_QUERY_TIME", "250ms")

	cfg := DefaultConnectionConfig()
	cfg.Host = "localhost"
	require.NoError(t, OverrideFromEnv(cfg))
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.SlowQueryTime)
	assert.Equal(t, 10, cfg.MaxIdleConns)
}

func TestModelRegistryOrder(t *testing.T) {
	type late struct{ ID int64 }
	type early struct{ ID int64 }
	RegisterModel[late](50)
	RegisterModel[*early](40)
	RegisterModel[early](-5)

	var names []string
	for _, m := range RegisteredModels() {
		names = append(names, m.Type.Name())
	}
	assert.Equal(t, 1, strings.Count(strings.Join(names, ","), "early"))
	assert.Less(t, slices.Index(names, "early"), slices.Index(names, "late"))
	assert.IsType(t, (*early)(nil), RegisteredModels()[slices.Index(names, "early")].Instance())
}

func TestRunMigrations(t *testing.T) {
	RegisterModel[widget](1)
	RegisterMigration(MigrationItem{
		Version: "001",
		Name:    "seed_widgets",
		Up: func(ctx context.Context, db bun.IDB) error {
			_, err := db.NewInsert().Model(&widget{Name: "sprocket"}).Exec(ctx)
			return err
		},
	})

	db := openMemoryDB(t)
	mm := NewMigrationManager(db, &recordingLogger{})
	ctx := context.Background()
	require.NoError(t, mm.RunMigrations(ctx))
	// a second run applies nothing new
	require.NoError(t, mm.RunMigrations(ctx))

	applied, err := mm.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "000", applied[0].Version)
	assert.Equal(t, "seed_widgets", applied[1].Name)

	count, err := db.NewSelect().Model((*widget)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIsSqlError(t *testing.T) {
	db := openMemoryDB(t)
	_, err := db.NewSelect().Model((*widget)(nil)).Count(context.Background())
	require.Error(t, err)

	is, kind := IsSqlError(err)
	assert.True(t, is)
	assert.Equal(t, NoTableErr, kind)
	assert.Equal(t, "no_table", kind.String())

	is, kind = IsSqlError(fmt.Errorf("wrapped: %w", sql.ErrNoRows))
	assert.True(t, is)
	assert.Equal(t, NoRowsErr, kind)

	is, kind = IsSqlError(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.True(t, is)
	assert.Equal(t, DuplicateKeyErr, kind)

	is, kind = IsSqlError(&pq.Error{Code: "23503"})
	assert.True(t, is)
	assert.Equal(t, ForeignKeyViolationErr, kind)

	is, kind = IsSqlError(&mysql.MySQLError{Number: 9999})
	assert.True(t, is)
	assert.Equal(t, UnknownErr, kind)

	is, kind = IsSqlError(errors.New("UNIQUE constraint failed: widgets.id"))
	assert.True(t, is)
	assert.Equal(t, DuplicateKeyErr, kind)

	is, _ = IsSqlError(errors.New("boom"))
	assert.False(t, is)
	is, _ = IsSqlError(nil)
	assert.False(t, is)
}

func TestAuditQueryHook(t *testing.T) {
	var buf bytes.Buffer
	db := openMemoryDB(t)
	db.AddQueryHook(NewAuditQueryHook(&buf))

	info := types.NewAuditInfo("alice", "report")
	ctx := types.WithAudit(context.Background(), info)
	_, err := db.ExecContext(ctx, "SELECT 1")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "user=alice")
	assert.Contains(t, out, info.ActivityID.String())
	assert.Contains(t, out, "SELECT 1")

	buf.Reset()
	SilenceHooks(true)
	_, err = db.ExecContext(ctx, "SELECT 2")
	SilenceHooks(false)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestSlowQueryHook(t *testing.T) {
	log := &recordingLogger{}
	db := openMemoryDB(t)
	db.AddQueryHook(NewSlowQueryHook(time.Nanosecond, log))

	_, err := db.ExecContext(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Contains(t, log.messages, "Database slow query detected")
}
