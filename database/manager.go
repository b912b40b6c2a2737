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
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

var (
	ErrUnsupportedType = errors.New("unsupported database type")
	ErrNotConnected    = errors.New("database not connected")
)

// driver knows how to open one database type.
type driver struct {
	name    string
	dsn     func(cfg *ConnectionConfig) string
	dialect func() schema.Dialect
}

var (
	mysqlDriver = driver{
		name:    "mysql",
		dsn:     MySQLDSN,
		dialect: func() schema.Dialect { return mysqldialect.New() },
	}
	postgresDriver = driver{
		name:    "postgres",
		dsn:     PostgresDSN,
		dialect: func() schema.Dialect { return pgdialect.New() },
	}
	sqliteDriver = driver{
		name:    sqliteshim.ShimName,
		dsn:     func(cfg *ConnectionConfig) string { return SQLiteDSN(cfg.DBName) },
		dialect: func() schema.Dialect { return sqlitedialect.New() },
	}

	drivers = map[string]driver{
		"mysql":      mysqlDriver,
		"postgres":   postgresDriver,
		"postgresql": postgresDriver,
		"sqlite":     sqliteDriver,
		"sqlite3":    sqliteDriver,
	}
)

// SupportedTypes lists the accepted ConnectionConfig.Type values.
func SupportedTypes() []string {
	out := make([]string, 0, len(drivers))
	for name := range drivers {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func lookupDriver(typ string) (driver, error) {
	d, ok := drivers[strings.ToLower(typ)]
	if !ok {
		return driver{}, fmt.Errorf("%w: %s, supported types: %v", ErrUnsupportedType, typ, SupportedTypes())
	}
	return d, nil
}

// MySQLDSN builds a go-sql-driver DSN with utf8mb4 and parsed times.
func MySQLDSN(cfg *ConnectionConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%s&readTimeout=%s&writeTimeout=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
		cfg.ConnectTimeout, cfg.ReadTimeout, cfg.WriteTimeout)
}

// PostgresDSN builds a lib/pq URL. SSL is disabled unless SSLMode says
// otherwise.
func PostgresDSN(cfg *ConnectionConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
		sslMode, int(cfg.ConnectTimeout.Seconds()))
}

// SQLiteDSN turns a database name into a sqlite DSN. Names that already look
// like a DSN (":memory:", "file:...", anything with a query string) are kept.
func SQLiteDSN(name string) string {
	if name == "" {
		return ":memory:"
	}
	if strings.HasPrefix(name, "file:") || strings.HasPrefix(name, ":") || strings.Contains(name, "?") || strings.HasSuffix(name, ".db") {
		return name
	}
	return name + ".db"
}

type defaultDatabaseManager struct {
	config *ConnectionConfig

	mu             sync.RWMutex
	logger         Logger
	db             *bun.DB
	sqlDB          *sql.DB
	connected      bool
	lastError      error
	reconnectTries int

	stopHealth context.CancelFunc
	healthDone chan struct{}
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by Bun.
// A nil config falls back to DefaultConnectionConfig.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	return &defaultDatabaseManager{config: config}
}

func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	if dm.connected && dm.db != nil {
		dm.mu.Unlock()
		return nil
	}
	err := dm.open(ctx)
	logger := dm.logger
	dm.mu.Unlock()
	if err != nil {
		return err
	}

	if dm.config.HealthCheckInterval > 0 {
		dm.startHealthCheck()
	}
	if logger != nil {
		logger.Info("Database connected successfully:", "type", dm.config.Type, "host", dm.config.Host, "dbname", dm.config.DBName)
	}
	return nil
}

// open creates the pool, installs the query hooks and pings. Callers hold mu.
func (dm *defaultDatabaseManager) open(ctx context.Context) error {
	d, err := lookupDriver(dm.config.Type)
	if err != nil {
		dm.lastError = err
		return err
	}
	sqlDB, err := sql.Open(d.name, d.dsn(dm.config))
	if err != nil {
		dm.lastError = err
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	sqlDB.SetMaxIdleConns(dm.config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dm.config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dm.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(dm.config.ConnMaxIdleTime)

	db := bun.NewDB(sqlDB, d.dialect())
	for _, hook := range dm.queryHooks() {
		db.AddQueryHook(hook)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		dm.lastError = err
		return fmt.Errorf("database connection test failed: %w", err)
	}

	dm.db, dm.sqlDB = db, sqlDB
	dm.connected = true
	dm.lastError = nil
	return nil
}

func (dm *defaultDatabaseManager) queryHooks() []bun.QueryHook {
	var hooks []bun.QueryHook
	if dm.config.EnableQueryLog {
		hooks = append(hooks, bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if dm.config.EnableAuditLog {
		hooks = append(hooks, NewAuditQueryHook(os.Stdout))
	}
	if dm.config.SlowQueryTime > 0 {
		hooks = append(hooks, NewSlowQueryHook(dm.config.SlowQueryTime, dm.logger))
	}
	return hooks
}

// closeLocked closes the pool. Callers hold mu.
func (dm *defaultDatabaseManager) closeLocked() error {
	if dm.db == nil {
		return nil
	}
	err := dm.db.Close()
	dm.db, dm.sqlDB = nil, nil
	dm.connected = false
	return err
}

func (dm *defaultDatabaseManager) Disconnect() error {
	dm.stopHealthCheck()

	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.db == nil {
		return nil
	}
	err := dm.closeLocked()
	if dm.logger != nil {
		if err != nil {
			dm.logger.Error("Failed to close database connection", "error", err)
		} else {
			dm.logger.Info("Database connection closed")
		}
	}
	return err
}

func (dm *defaultDatabaseManager) Reconnect(ctx context.Context) error {
	if logger := dm.getLogger(); logger != nil {
		logger.Info("Attempting to reconnect to the database")
	}
	if err := dm.Disconnect(); err != nil {
		if logger := dm.getLogger(); logger != nil {
			logger.Warn("Error disconnecting existing connection", "error", err)
		}
	}
	return dm.Connect(ctx)
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	dm.mu.RLock()
	db := dm.db
	dm.mu.RUnlock()

	if db == nil {
		return ErrNotConnected
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.sqlDB
}

// HealthCheck pings without holding the manager lock, so a slow database
// does not block GetDB.
func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	dm.mu.RLock()
	db, sqlDB, connected := dm.db, dm.sqlDB, dm.connected
	dm.mu.RUnlock()

	start := time.Now()
	status := &HealthStatus{LastCheckTime: start, Connected: connected}
	if db == nil {
		status.LastError = "Database not initialized"
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := db.PingContext(pingCtx)
	status.ResponseTime = time.Since(start)
	status.Healthy = err == nil
	status.Connected = err == nil
	if err != nil {
		status.LastError = err.Error()
	}

	stats := sqlDB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections

	dm.mu.Lock()
	if dm.db == db {
		dm.lastError = err
		dm.connected = err == nil
	}
	dm.mu.Unlock()
	return status
}

func (dm *defaultDatabaseManager) startHealthCheck() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.stopHealth != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	dm.stopHealth, dm.healthDone = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(dm.config.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				status := dm.HealthCheck(checkCtx)
				cancel()
				if !status.Healthy && dm.config.EnableReconnect {
					dm.tryReconnect(ctx)
				}
			}
		}
	}()
}

// stopHealthCheck cancels the health loop and waits for it to exit. It must
// be called without holding mu.
func (dm *defaultDatabaseManager) stopHealthCheck() {
	dm.mu.Lock()
	cancel, done := dm.stopHealth, dm.healthDone
	dm.stopHealth, dm.healthDone = nil, nil
	dm.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// tryReconnect reopens the pool in place, keeping the health loop running.
func (dm *defaultDatabaseManager) tryReconnect(ctx context.Context) {
	dm.mu.Lock()
	if dm.reconnectTries >= dm.config.MaxReconnectTries {
		logger, tries := dm.logger, dm.reconnectTries
		dm.mu.Unlock()
		if logger != nil {
			logger.Error("Max reconnect attempts reached, stopping", "tries", tries)
		}
		return
	}
	dm.reconnectTries++
	dm.mu.Unlock()

	select {
	case <-ctx.Done():
		return
	case <-time.After(dm.config.ReconnectInterval):
	}

	openCtx, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()

	dm.mu.Lock()
	defer dm.mu.Unlock()
	_ = dm.closeLocked()
	if err := dm.open(openCtx); err != nil {
		if dm.logger != nil {
			dm.logger.Error("Reconnect failed", "error", err, "try", dm.reconnectTries)
		}
		return
	}
	dm.reconnectTries = 0
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	dm.mu.RLock()
	sqlDB := dm.sqlDB
	dm.mu.RUnlock()

	if sqlDB == nil {
		return &DBStats{}
	}
	s := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      s.MaxOpenConnections,
		OpenConns:         s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		WaitCount:         s.WaitCount,
		WaitDuration:      s.WaitDuration,
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxIdleTimeClosed: s.MaxIdleTimeClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}
}

func (dm *defaultDatabaseManager) RunMigrations(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return ErrNotConnected
	}
	return NewMigrationManager(db, dm.getLogger()).RunMigrations(ctx)
}

func (dm *defaultDatabaseManager) getLogger() Logger {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.logger
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}
