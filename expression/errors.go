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

package expression

import "errors"

var (
	ErrNilExpression  = errors.New("expression: nil expression")
	ErrParameterCount = errors.New("expression: parameter count mismatch")
	ErrParameterType  = errors.New("expression: parameter type mismatch")
	ErrUnknownMember  = errors.New("expression: unknown member")
	ErrUnsupported    = errors.New("expression: unsupported operation")
	ErrNotBoolean     = errors.New("expression: operand is not boolean")
	ErrNilReference   = errors.New("expression: nil reference")
	ErrNotMemberPath  = errors.New("expression: body is not a member path")
)
