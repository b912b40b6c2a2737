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
	"reflect"
	"slices"
	"sync"
)

// Model is a bun model whose table is created by the base migration.
// Tables are created by ascending Priority, so referenced tables should get
// lower values than the tables pointing at them.
type Model struct {
	Type     reflect.Type
	Priority int
}

// Instance returns a typed nil pointer usable as a bun model.
func (m Model) Instance() interface{} {
	return reflect.Zero(reflect.PointerTo(m.Type)).Interface()
}

var modelRegistry struct {
	mu     sync.RWMutex
	models []Model
}

// RegisterModel records T for base-table creation. Registering the same
// type again only updates its priority.
func RegisterModel[T any](priority int) {
	typ := reflect.TypeFor[T]()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	modelRegistry.mu.Lock()
	defer modelRegistry.mu.Unlock()
	for i, m := range modelRegistry.models {
		if m.Type == typ {
			modelRegistry.models[i].Priority = priority
			return
		}
	}
	modelRegistry.models = append(modelRegistry.models, Model{Type: typ, Priority: priority})
}

// RegisteredModels returns the registered models ordered by priority, ties
// keeping registration order.
func RegisteredModels() []Model {
	modelRegistry.mu.RLock()
	out := slices.Clone(modelRegistry.models)
	modelRegistry.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b Model) int { return a.Priority - b.Priority })
	return out
}

func RegisteredModelInstances() []interface{} {
	models := RegisteredModels()
	out := make([]interface{}, len(models))
	for i, m := range models {
		out[i] = m.Instance()
	}
	return out
}
