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

package repository

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"

	"github.com/tomoncle/bedrock/expression"
)

var sqlOps = map[expression.Op]string{
	expression.OpEqual:          "=",
	expression.OpNotEqual:       "<>",
	expression.OpLessThan:       "<",
	expression.OpLessOrEqual:    "<=",
	expression.OpGreaterThan:    ">",
	expression.OpGreaterOrEqual: ">=",
	expression.OpAnd:            "AND",
	expression.OpAndAlso:        "AND",
	expression.OpOr:             "OR",
	expression.OpOrElse:         "OR",
}

// mirrored maps an operator to the one that keeps its meaning with the
// operands swapped, so 5 < x.Age becomes x.Age > 5.
var mirrored = map[expression.Op]expression.Op{
	expression.OpEqual:          expression.OpEqual,
	expression.OpNotEqual:       expression.OpNotEqual,
	expression.OpLessThan:       expression.OpGreaterThan,
	expression.OpLessOrEqual:    expression.OpGreaterOrEqual,
	expression.OpGreaterThan:    expression.OpLessThan,
	expression.OpGreaterOrEqual: expression.OpLessOrEqual,
}

// likeEscaper quotes the LIKE wildcards so method arguments match literally.
// '!' is the escape character since MySQL reads a backslash inside a string
// literal as an escape of its own.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// columnRef is a resolved column as a query fragment plus its arguments.
// join names the relation that must be joined for the column to exist.
// nullable columns are guarded so every comparison is either true or false.
type columnRef struct {
	fragment string
	args     []any
	join     string
	nullable bool
}

// nullableField reports whether the column can hold NULL. Plain scalar
// fields are written as values and never read back as NULL.
func nullableField(f *schema.Field) bool {
	if f.IsPtr || f.NullZero {
		return true
	}
	if f.IndirectType == reflect.TypeOf(time.Time{}) {
		return false
	}
	switch f.IndirectType.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return false
	}
	return true
}

// resolver maps Go field paths on a Bun model to SQL columns.
type resolver struct {
	table    *schema.Table
	typeName string
}

func newResolver(table *schema.Table, typ reflect.Type) resolver {
	return resolver{table: table, typeName: typ.String()}
}

func (r resolver) unknown(path string) error {
	return fmt.Errorf("%w: could not find a property called '%s' on type %s", ErrUnknownProperty, path, r.typeName)
}

func findField(table *schema.Table, name string) *schema.Field {
	for _, f := range table.Fields {
		if f.GoName == name || f.Name == name {
			return f
		}
	}
	return nil
}

// column resolves "Name" on the model itself or "Author.Name" through a
// has-one or belongs-to relation.
func (r resolver) column(path string) (columnRef, error) {
	parts := strings.Split(path, ".")
	switch len(parts) {
	case 1:
		f := findField(r.table, parts[0])
		if f == nil {
			return columnRef{}, r.unknown(path)
		}
		return columnRef{fragment: "?TableAlias.?", args: []any{bun.Ident(f.Name)}, nullable: nullableField(f)}, nil
	case 2:
		rel, ok := r.table.Relations[parts[0]]
		if !ok || (rel.Type != schema.HasOneRelation && rel.Type != schema.BelongsToRelation) {
			return columnRef{}, r.unknown(path)
		}
		f := findField(rel.JoinTable, parts[1])
		if f == nil {
			return columnRef{}, r.unknown(path)
		}
		return columnRef{
			fragment: "?.?",
			args:     []any{bun.Ident(rel.Field.Name), bun.Ident(f.Name)},
			join:     rel.Field.GoName,
			nullable: true,
		}, nil
	default:
		return columnRef{}, r.unknown(path)
	}
}

// relation checks that every segment of an include path names a relation.
func (r resolver) relation(path string) error {
	table := r.table
	for _, part := range strings.Split(path, ".") {
		rel, ok := table.Relations[part]
		if !ok {
			return r.unknown(path)
		}
		table = rel.JoinTable
	}
	return nil
}

// translator renders a unary predicate lambda as a Bun where clause.
type translator struct {
	resolver
	param *expression.Parameter
	sb    strings.Builder
	args  []any
	joins []string
}

// translatePredicate returns the where clause, its arguments and the
// relations the clause reads from.
func translatePredicate(res resolver, l *expression.Lambda) (string, []any, []string, error) {
	if l == nil {
		return "", nil, nil, expression.ErrNilExpression
	}
	params := l.Params()
	if len(params) != 1 {
		return "", nil, nil, fmt.Errorf("%w: want 1 parameter, got %d", expression.ErrParameterCount, len(params))
	}
	t := &translator{resolver: res, param: params[0]}
	if err := t.predicate(l.Body()); err != nil {
		return "", nil, nil, err
	}
	return t.sb.String(), t.args, t.joins, nil
}

func (t *translator) write(fragment string, args ...any) {
	t.sb.WriteString(fragment)
	t.args = append(t.args, args...)
}

func (t *translator) predicate(n expression.Node) error {
	switch v := n.(type) {
	case *expression.Binary:
		if v.Op().IsLogical() {
			t.write("(")
			if err := t.predicate(v.Left()); err != nil {
				return err
			}
			t.write(" " + sqlOps[v.Op()] + " ")
			if err := t.predicate(v.Right()); err != nil {
				return err
			}
			t.write(")")
			return nil
		}
		if v.Op().IsComparison() {
			return t.comparison(v)
		}
	case *expression.Unary:
		if v.Op() == expression.OpNot {
			// leaves never yield NULL, so NOT keeps in-memory meaning
			t.write("NOT (")
			if err := t.predicate(v.Operand()); err != nil {
				return err
			}
			t.write(")")
			return nil
		}
	case *expression.Call:
		return t.call(v)
	case *expression.Member:
		// a bare boolean field
		return t.compareColumn(v, expression.OpEqual, expression.Const(true))
	case *expression.Constant:
		b, ok := v.Value().(bool)
		if !ok {
			return fmt.Errorf("%w: %s", expression.ErrNotBoolean, v)
		}
		if b {
			t.write("1 = 1")
		} else {
			t.write("1 = 0")
		}
		return nil
	}
	return fmt.Errorf("%w: %s", expression.ErrUnsupported, n)
}

func (t *translator) comparison(b *expression.Binary) error {
	lm, lok := b.Left().(*expression.Member)
	rm, rok := b.Right().(*expression.Member)
	switch {
	case lok && rok:
		l, err := t.member(lm)
		if err != nil {
			return err
		}
		r, err := t.member(rm)
		if err != nil {
			return err
		}
		return t.compareColumns(l, b.Op(), r)
	case lok:
		return t.compareColumn(lm, b.Op(), b.Right())
	case rok:
		return t.compareColumn(rm, mirrored[b.Op()], b.Left())
	default:
		lc, lok := b.Left().(*expression.Constant)
		rc, rok := b.Right().(*expression.Constant)
		if !lok || !rok {
			return fmt.Errorf("%w: %s", expression.ErrUnsupported, b)
		}
		ok, err := expression.Compare(b.Op(), lc.Value(), rc.Value())
		if err != nil {
			return err
		}
		return t.predicate(expression.Const(ok))
	}
}

// compareColumns compares two columns. NULL equals only NULL and is never
// ordered.
func (t *translator) compareColumns(l columnRef, op expression.Op, r columnRef) error {
	if !l.nullable && !r.nullable {
		t.ref(l)
		t.write(" " + sqlOps[op] + " ")
		t.ref(r)
		return nil
	}
	if op == expression.OpEqual || op == expression.OpNotEqual {
		if op == expression.OpNotEqual {
			t.write("NOT ")
		}
		t.write("((")
		t.isNull(l, true)
		t.write(" AND ")
		t.isNull(r, true)
		t.write(") OR (")
		t.isNull(l, false)
		t.write(" AND ")
		t.isNull(r, false)
		t.write(" AND ")
		t.ref(l)
		t.write(" = ")
		t.ref(r)
		t.write("))")
		return nil
	}
	t.write("(")
	t.isNull(l, false)
	t.write(" AND ")
	t.isNull(r, false)
	t.write(" AND ")
	t.ref(l)
	t.write(" " + sqlOps[op] + " ")
	t.ref(r)
	t.write(")")
	return nil
}

func (t *translator) compareColumn(m *expression.Member, op expression.Op, other expression.Node) error {
	c, ok := other.(*expression.Constant)
	if !ok {
		return fmt.Errorf("%w: %s compared with %s", expression.ErrUnsupported, m, other)
	}
	ref, err := t.member(m)
	if err != nil {
		return err
	}
	if isNil(c.Value()) {
		switch op {
		case expression.OpEqual:
			t.isNull(ref, true)
		case expression.OpNotEqual:
			t.isNull(ref, false)
		default:
			// nil is never ordered
			t.write("1 = 0")
		}
		return nil
	}
	if !ref.nullable {
		t.ref(ref)
		t.write(" "+sqlOps[op]+" ?", c.Value())
		return nil
	}
	t.write("(")
	if op == expression.OpNotEqual {
		// nil differs from every value
		t.isNull(ref, true)
		t.write(" OR ")
	} else {
		t.isNull(ref, false)
		t.write(" AND ")
	}
	t.ref(ref)
	t.write(" "+sqlOps[op]+" ?)", c.Value())
	return nil
}

func (t *translator) call(c *expression.Call) error {
	m, ok := c.Target().(*expression.Member)
	if !ok {
		return fmt.Errorf("%w: %s", expression.ErrUnsupported, c)
	}
	args := c.Args()
	values := make([]any, 0, len(args))
	for _, a := range args {
		k, ok := a.(*expression.Constant)
		if !ok {
			return fmt.Errorf("%w: %s", expression.ErrUnsupported, c)
		}
		values = append(values, k.Value())
	}

	if c.Method() == expression.MethodIn {
		return t.in(m, values)
	}

	if len(values) != 1 {
		return fmt.Errorf("%w: %s takes 1 argument", expression.ErrParameterCount, c.Method())
	}
	s, ok := values[0].(string)
	if !ok {
		return fmt.Errorf("%w: %s needs a string argument", expression.ErrParameterType, c.Method())
	}
	s = likeEscaper.Replace(s)
	var pattern string
	switch c.Method() {
	case expression.MethodContains:
		pattern = "%" + s + "%"
	case expression.MethodHasPrefix:
		pattern = s + "%"
	case expression.MethodHasSuffix:
		pattern = "%" + s
	default:
		return fmt.Errorf("%w: %s", expression.ErrUnsupported, c)
	}
	ref, err := t.member(m)
	if err != nil {
		return err
	}
	if ref.nullable {
		t.write("(")
		t.isNull(ref, false)
		t.write(" AND ")
	}
	t.ref(ref)
	t.write(" LIKE ? ESCAPE '!'", pattern)
	if ref.nullable {
		t.write(")")
	}
	return nil
}

// in renders a membership test. A nil candidate matches a NULL column.
func (t *translator) in(m *expression.Member, values []any) error {
	if len(values) == 0 {
		t.write("1 = 0")
		return nil
	}
	ref, err := t.member(m)
	if err != nil {
		return err
	}
	set := make([]any, 0, len(values))
	hasNil := false
	for _, v := range values {
		if isNil(v) {
			hasNil = true
			continue
		}
		set = append(set, v)
	}
	switch {
	case len(set) == 0:
		t.isNull(ref, true)
	case hasNil:
		t.write("(")
		t.isNull(ref, true)
		t.write(" OR ")
		t.ref(ref)
		t.write(" IN (?))", bun.In(set))
	case ref.nullable:
		t.write("(")
		t.isNull(ref, false)
		t.write(" AND ")
		t.ref(ref)
		t.write(" IN (?))", bun.In(set))
	default:
		t.ref(ref)
		t.write(" IN (?)", bun.In(set))
	}
	return nil
}

func (t *translator) ref(ref columnRef) {
	t.write(ref.fragment, ref.args...)
}

func (t *translator) isNull(ref columnRef, null bool) {
	t.ref(ref)
	if null {
		t.write(" IS NULL")
	} else {
		t.write(" IS NOT NULL")
	}
}

// member resolves the column for a field path rooted at the lambda
// parameter and records the relation it needs.
func (t *translator) member(m *expression.Member) (columnRef, error) {
	var parts []string
	var n expression.Node = m
	for {
		switch v := n.(type) {
		case *expression.Member:
			parts = append(parts, v.Name())
			n = v.Target()
			continue
		case *expression.Parameter:
			if v != t.param {
				return columnRef{}, fmt.Errorf("%w: %s is not bound to %s", expression.ErrUnsupported, m, t.param)
			}
		default:
			return columnRef{}, fmt.Errorf("%w: %s", expression.ErrNotMemberPath, m)
		}
		break
	}
	slices.Reverse(parts)
	ref, err := t.column(strings.Join(parts, "."))
	if err != nil {
		return columnRef{}, err
	}
	if ref.join != "" && !slices.Contains(t.joins, ref.join) {
		t.joins = append(t.joins, ref.join)
	}
	return ref, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
