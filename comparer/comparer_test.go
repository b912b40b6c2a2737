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

package comparer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type message struct {
	ID      int
	IsValid bool
	Message string
	secret  string
}

func TestDataPropertyIsCaseSensitive(t *testing.T) {
	a := &message{ID: 1, IsValid: true, Message: "Test"}
	b := &message{ID: 1, IsValid: true, Message: "test"}

	assert.False(t, DataProperty[*message]("ID", "Message").Equal(a, b))

	byValid := DataProperty[*message]("ID", "IsValid")
	assert.True(t, byValid.Equal(a, b))
	assert.Equal(t, byValid.Hash(a), byValid.Hash(b))
}

func TestDataPropertySkipsUnknownFields(t *testing.T) {
	c := DataProperty[message]("ID", "Missing", "secret")
	assert.Equal(t, []string{"ID"}, c.Properties())
	assert.True(t, c.Equal(message{ID: 2, Message: "x"}, message{ID: 2, Message: "y"}))
	assert.False(t, c.Equal(message{ID: 2}, message{ID: 3}))
}

func TestDataPropertyNilPointers(t *testing.T) {
	c := DataProperty[*message]("ID")
	assert.True(t, c.Equal(nil, nil))
	assert.False(t, c.Equal(nil, &message{}))
	assert.Equal(t, uint64(0), c.Hash(nil))
}

func TestDistinct(t *testing.T) {
	items := []*message{
		{ID: 1, IsValid: true, Message: "Test"},
		{ID: 1, IsValid: true, Message: "Test"},
		{ID: 1, IsValid: true, Message: "test"},
		{ID: 2, IsValid: false, Message: "Test"},
	}
	got := Distinct[*message](items, DataProperty[*message]("ID", "IsValid", "Message"))
	assert.Len(t, got, 3)
	assert.Same(t, items[0], got[0])
	assert.Same(t, items[2], got[1])
	assert.Same(t, items[3], got[2])

	assert.Empty(t, Distinct[*message](nil, DataProperty[*message]("ID")))
}
