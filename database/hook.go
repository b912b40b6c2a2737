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
	"io"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"

	"github.com/tomoncle/bedrock/types"
)

var hooksSilent atomic.Bool

// SilenceHooks mutes the audit and slow query hooks, e.g. during migrations.
func SilenceHooks(b bool) {
	hooksSilent.Store(b)
}

var operationColors = map[string]*color.Color{
	"SELECT": color.New(color.FgGreen),
	"INSERT": color.New(color.FgBlue),
	"UPDATE": color.New(color.FgYellow),
	"DELETE": color.New(color.FgMagenta),
}

var (
	defaultOperationColor = color.New(color.FgRed)
	auditTagColor         = color.New(color.FgCyan)
	errorColor            = color.New(color.BgRed, color.FgWhite)
)

// AuditQueryHook writes one line per query, tagged with the user and activity
// of the unit of work that issued it.
type AuditQueryHook struct {
	writer io.Writer
}

var _ bun.QueryHook = (*AuditQueryHook)(nil)

func NewAuditQueryHook(w io.Writer) *AuditQueryHook {
	return &AuditQueryHook{writer: w}
}

func (h *AuditQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *AuditQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if hooksSilent.Load() {
		return
	}
	user, activity := "-", "-"
	if info, ok := types.AuditFromContext(ctx); ok {
		user, activity = info.UserName, info.ActivityID.String()
	}

	c, ok := operationColors[event.Operation()]
	if !ok {
		c = defaultOperationColor
	}
	line := fmt.Sprintf("%s %s %12s  %s",
		time.Now().Format("2006-01-02 15:04:05.000"),
		auditTagColor.Sprintf("[AUDIT user=%s activity=%s]", user, activity),
		time.Since(event.StartTime).Round(time.Microsecond),
		c.Sprint(event.Query),
	)
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		line += "\t" + errorColor.Sprintf(" %T: %v ", event.Err, event.Err)
	}
	_, _ = fmt.Fprintln(h.writer, line)
}

// SlowQueryHook warns through Logger about queries slower than a threshold.
type SlowQueryHook struct {
	slowTime time.Duration
	logger   Logger
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

func NewSlowQueryHook(slowTime time.Duration, logger Logger) *SlowQueryHook {
	return &SlowQueryHook{slowTime: slowTime, logger: logger}
}

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if hooksSilent.Load() || event.Err != nil || h.logger == nil {
		return
	}
	duration := time.Since(event.StartTime)
	if duration <= h.slowTime {
		return
	}
	fields := []interface{}{
		"duration", duration,
		"slow_threshold", h.slowTime,
		"query", event.Query,
	}
	if info, ok := types.AuditFromContext(ctx); ok {
		fields = append(fields, info.LogFields()...)
	}
	h.logger.Warn("Database slow query detected", fields...)
}
