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

package types

import (
	"context"

	"github.com/google/uuid"
)

// AuditInfo identifies who started a unit of work and why.
type AuditInfo struct {
	UserName    string
	ActivityID  uuid.UUID
	Description string
}

// NewAuditInfo returns an AuditInfo with a fresh activity id.
func NewAuditInfo(userName, description string) *AuditInfo {
	return &AuditInfo{
		UserName:    userName,
		ActivityID:  uuid.New(),
		Description: description,
	}
}

type auditKey struct{}

// WithAudit stores info in ctx. A nil info returns ctx unchanged.
func WithAudit(ctx context.Context, info *AuditInfo) context.Context {
	if info == nil {
		return ctx
	}
	return context.WithValue(ctx, auditKey{}, info)
}

// AuditFromContext returns the AuditInfo stored by WithAudit, if any.
func AuditFromContext(ctx context.Context) (*AuditInfo, bool) {
	if ctx == nil {
		return nil, false
	}
	info, ok := ctx.Value(auditKey{}).(*AuditInfo)
	return info, ok
}

// LogFields renders info as kv pairs for the database Logger.
func (a *AuditInfo) LogFields() []interface{} {
	if a == nil {
		return nil
	}
	return []interface{}{"user_name", a.UserName, "activity_id", a.ActivityID.String()}
}
