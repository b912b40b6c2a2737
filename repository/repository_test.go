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
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/goleak"

	"github.com/tomoncle/bedrock/expression"
	"github.com/tomoncle/bedrock/ioc"
	"github.com/tomoncle/bedrock/specification"
	"github.com/tomoncle/bedrock/uow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type author struct {
	bun.BaseModel `bun:"table:authors,alias:a"`

	ID   int64  `bun:"id,pk"`
	Name string `bun:"name"`
}

type message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	RowID    int64   `bun:"row_id,pk,autoincrement"`
	ID       int64   `bun:"id"`
	Message  string  `bun:"message"`
	Note     *string `bun:"note"`
	AuthorID int64   `bun:"author_id"`
	Author   *author `bun:"rel:belongs-to,join:author_id=id"`
}

func idIs(id int64) *specification.Filter[message] {
	return specification.Where[message](func(x *expression.Parameter) expression.Node {
		return x.Field("ID").Eq(id)
	})
}

func newContext(t *testing.T, opts ...uow.Option) *uow.DataContext {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, model := range []any{(*author)(nil), (*message)(nil)} {
		_, err := db.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}
	return uow.NewDataContext(db, opts...)
}

// seeded returns a context holding two authors and the messages
// {1 "b"}, {1 "a"}, {2 "c"}.
func seeded(t *testing.T) *uow.DataContext {
	t.Helper()
	dc := newContext(t)
	err := dc.Do(context.Background(), func(ctx context.Context, u *uow.UnitOfWork) error {
		authors, err := Get[author](u)
		if err != nil {
			return err
		}
		defer authors.Close()
		messages, err := Get[message](u)
		if err != nil {
			return err
		}
		defer messages.Close()

		if err := authors.Add(&author{ID: 10, Name: "ann"}, &author{ID: 20, Name: "bo"}); err != nil {
			return err
		}
		return messages.Add(
			&message{ID: 1, Message: "b", AuthorID: 10},
			&message{ID: 1, Message: "a", AuthorID: 20},
			&message{ID: 2, Message: "c", AuthorID: 10},
		)
	})
	require.NoError(t, err)
	return dc
}

func texts(items []*message) []string {
	out := make([]string, len(items))
	for i, m := range items {
		out[i] = m.Message
	}
	return out
}

func TestGetElementsFilterThenSort(t *testing.T) {
	dc := seeded(t)
	repo := New[message](dc)
	defer repo.Close()

	items, err := repo.GetElements(context.Background(), idIs(1), specification.Asc[message]("Message"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, texts(items))
}

func TestGetElementsStageOrderIgnoresArgumentOrder(t *testing.T) {
	dc := seeded(t)
	repo := New[message](dc)
	defer repo.Close()

	page, err := specification.NewPaging[message](0, 2)
	require.NoError(t, err)
	byMessage, err := specification.SortBy[message](expression.Selector[message]("Message"), specification.Descending)
	require.NoError(t, err)

	items, err := repo.GetElements(context.Background(), page, byMessage)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, texts(items))

	page2, err := specification.NewPaging[message](1, 2)
	require.NoError(t, err)
	items, err = repo.GetElements(context.Background(), specification.Asc[message]("ID"), specification.Asc[message]("Message"), page2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, texts(items))
}

func TestPagingPreconditions(t *testing.T) {
	dc := seeded(t)
	repo := New[message](dc)
	defer repo.Close()
	ctx := context.Background()

	_, err := repo.GetElements(ctx, specification.DefaultPaging[message]())
	assert.ErrorIs(t, err, ErrPagingWithoutSort)

	_, err = repo.GetElements(ctx,
		specification.Asc[message]("ID"),
		specification.DefaultPaging[message](),
		specification.DefaultPaging[message]())
	assert.ErrorIs(t, err, ErrMultiplePaging)

	// counting ignores sort and paging
	n, err := repo.GetElementCount(ctx, idIs(1), specification.DefaultPaging[message]())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGet(t *testing.T) {
	dc := seeded(t)
	repo := New[message](dc)
	defer repo.Close()
	ctx := context.Background()

	m, err := repo.Get(ctx, idIs(2))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "c", m.Message)

	m, err = repo.Get(ctx, idIs(99))
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = repo.Get(ctx, idIs(1))
	assert.ErrorIs(t, err, ErrMultipleResults)

	_, err = repo.Get(ctx, nil)
	assert.ErrorIs(t, err, specification.ErrNilSpecification)
	var nilFilter *specification.Filter[message]
	_, err = repo.Get(ctx, nilFilter)
	assert.ErrorIs(t, err, specification.ErrNilSpecification)
}

func TestAnyAndCount(t *testing.T) {
	dc := seeded(t)
	repo := New[message](dc)
	defer repo.Close()
	ctx := context.Background()

	ok, err := repo.Any(ctx, idIs(2))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Any(ctx, idIs(3))
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := repo.GetElementCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPage(t *testing.T) {
	dc := seeded(t)
	repo := New[message](dc)
	defer repo.Close()
	ctx := context.Background()

	paging, err := specification.NewPaging[message](0, 2)
	require.NoError(t, err)
	p, err := repo.Page(ctx, specification.Asc[message]("Message"), paging)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 2, p.PageCount())
	assert.True(t, p.HasNext())
	assert.Equal(t, []string{"a", "b"}, texts(p.Items))

	p, err = repo.Page(ctx, specification.Asc[message]("Message"), idIs(7))
	require.NoError(t, err)
	assert.Zero(t, p.Total)
	assert.Empty(t, p.Items)
	assert.Equal(t, 10, p.PageSize)

	_, err = repo.Page(ctx, idIs(1))
	assert.ErrorIs(t, err, ErrPagingWithoutSort)
}

func TestFilterOperators(t *testing.T) {
	dc := seeded(t)
	repo := New[message](dc)
	defer repo.Close()
	ctx := context.Background()
	asc := specification.Asc[message]("Message")

	cases := []struct {
		name   string
		filter *specification.Filter[message]
		want   []string
	}{
		{"in", specification.Where[message](func(x *expression.Parameter) expression.Node {
			return x.Field("Message").In("a", "c")
		}), []string{"a", "c"}},
		{"empty in", specification.Where[message](func(x *expression.Parameter) expression.Node {
			return x.Field("Message").In()
		}), []string{}},
		{"prefix", specification.Where[message](func(x *expression.Parameter) expression.Node {
			return x.Field("Message").HasPrefix("b")
		}), []string{"b"}},
		{"not", idIs(1).MustNot(), []string{"c"}},
		{"null", specification.Where[message](func(x *expression.Parameter) expression.Node {
			return x.Field("Note").Eq(nil)
		}), []string{"a", "b", "c"}},
		{"mirrored", specification.Where[message](func(x *expression.Parameter) expression.Node {
			return expression.MakeBinary(expression.OpLessThan, expression.Const(1), x.Field("ID"))
		}), []string{"c"}},
		{"relation", specification.Where[message](func(x *expression.Parameter) expression.Node {
			return x.Field("Author.Name").Eq("ann")
		}), []string{"b", "c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, err := repo.GetElements(ctx, tc.filter, asc)
			require.NoError(t, err)
			assert.Equal(t, tc.want, texts(items))
		})
	}

	either, err := idIs(2).Or(specification.Where[message](func(x *expression.Parameter) expression.Node {
		return x.Field("Message").Eq("a")
	}))
	require.NoError(t, err)
	items, err := repo.GetElements(ctx, either, asc)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, texts(items))

	// several filters narrow the result
	items, err = repo.GetElements(ctx, idIs(1), specification.Where[message](func(x *expression.Parameter) expression.Node {
		return x.Field("Message").Ne("a")
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, texts(items))
}

// addMessages stores extra rows next to the seeded ones.
func addMessages(t *testing.T, dc *uow.DataContext, items ...*message) {
	t.Helper()
	err := dc.Do(context.Background(), func(ctx context.Context, u *uow.UnitOfWork) error {
		repo, err := Get[message](u)
		if err != nil {
			return err
		}
		defer repo.Close()
		return repo.Add(items...)
	})
	require.NoError(t, err)
}

// assertSameAsInMemory checks that the query selects exactly the rows the
// filter is satisfied by when evaluated in memory.
func assertSameAsInMemory(t *testing.T, repo Repository[message], filter *specification.Filter[message], want []string) {
	t.Helper()
	ctx := context.Background()
	asc := specification.Asc[message]("Message")

	all, err := repo.GetElements(ctx, asc)
	require.NoError(t, err)
	expected := []string{}
	for _, m := range all {
		ok, err := filter.IsSatisfiedBy(m)
		require.NoError(t, err)
		if ok {
			expected = append(expected, m.Message)
		}
	}
	assert.Equal(t, want, expected, "in memory: %s", filter)

	items, err := repo.GetElements(ctx, filter, asc)
	require.NoError(t, err)
	assert.Equal(t, want, texts(items), "query: %s", filter)
}

func TestNullColumnsMatchInMemoryEvaluation(t *testing.T) {
	dc := seeded(t)
	note := "x"
	addMessages(t, dc, &message{ID: 3, Message: "x", Note: &note, AuthorID: 20})
	repo := New[message](dc)
	defer repo.Close()

	where := func(build func(x *expression.Parameter) expression.Node) *specification.Filter[message] {
		return specification.Where[message](build)
	}
	noteIsX := where(func(x *expression.Parameter) expression.Node { return x.Field("Note").Eq("x") })

	cases := []struct {
		name   string
		filter *specification.Filter[message]
		want   []string
	}{
		{"equal", noteIsX, []string{"x"}},
		{"not equal", noteIsX.MustNot(), []string{"a", "b", "c"}},
		{"ne", where(func(x *expression.Parameter) expression.Node {
			return x.Field("Note").Ne("x")
		}), []string{"a", "b", "c"}},
		{"ne nil", where(func(x *expression.Parameter) expression.Node {
			return x.Field("Note").Ne(nil)
		}), []string{"x"}},
		{"not less", where(func(x *expression.Parameter) expression.Node {
			return x.Field("Note").Lt("y")
		}).MustNot(), []string{"a", "b", "c"}},
		{"not prefix", where(func(x *expression.Parameter) expression.Node {
			return x.Field("Note").HasPrefix("x")
		}).MustNot(), []string{"a", "b", "c"}},
		{"not in", where(func(x *expression.Parameter) expression.Node {
			return x.Field("Note").In("x", "y")
		}).MustNot(), []string{"a", "b", "c"}},
		{"in with nil", where(func(x *expression.Parameter) expression.Node {
			return x.Field("Note").In(nil, "x")
		}), []string{"a", "b", "c", "x"}},
		{"columns equal", where(func(x *expression.Parameter) expression.Node {
			return x.Field("Note").Eq(x.Field("Message"))
		}), []string{"x"}},
		{"columns differ", where(func(x *expression.Parameter) expression.Node {
			return x.Field("Note").Ne(x.Field("Message"))
		}), []string{"a", "b", "c"}},
		{"ordered against nil", where(func(x *expression.Parameter) expression.Node {
			return x.Field("Note").Lt(nil)
		}), []string{}},
		{"constants", where(func(x *expression.Parameter) expression.Node {
			return expression.MakeBinary(expression.OpEqual, expression.Const(nil), expression.Const("x"))
		}).MustNot(), []string{"a", "b", "c", "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertSameAsInMemory(t, repo, tc.filter, tc.want)
		})
	}
}

func TestStringMethodsMatchLiterally(t *testing.T) {
	dc := seeded(t)
	repo := New[message](dc)
	defer repo.Close()

	contains := func(s string) *specification.Filter[message] {
		return specification.Where[message](func(x *expression.Parameter) expression.Node {
			return x.Field("Message").Contains(s)
		})
	}
	assertSameAsInMemory(t, repo, contains("_"), []string{})
	assertSameAsInMemory(t, repo, contains("%"), []string{})

	addMessages(t, dc,
		&message{ID: 4, Message: "a_c", AuthorID: 10},
		&message{ID: 4, Message: "100%", AuthorID: 10},
		&message{ID: 4, Message: "x!y", AuthorID: 10},
	)
	assertSameAsInMemory(t, repo, contains("_"), []string{"a_c"})
	assertSameAsInMemory(t, repo, contains("%"), []string{"100%"})
	assertSameAsInMemory(t, repo, contains("!"), []string{"x!y"})
	assertSameAsInMemory(t, repo, specification.Where[message](func(x *expression.Parameter) expression.Node {
		return x.Field("Message").HasPrefix("a_")
	}), []string{"a_c"})
	assertSameAsInMemory(t, repo, specification.Where[message](func(x *expression.Parameter) expression.Node {
		return x.Field("Message").HasSuffix("0%")
	}), []string{"100%"})
}

func TestInclude(t *testing.T) {
	dc := seeded(t)
	repo := New[message](dc)
	defer repo.Close()
	ctx := context.Background()

	inc, err := specification.IncludeBy[message](expression.Selector[message]("Author"))
	require.NoError(t, err)
	m, err := repo.Get(ctx, inc, idIs(2))
	require.NoError(t, err)
	require.NotNil(t, m)
	require.NotNil(t, m.Author)
	assert.Equal(t, "ann", m.Author.Name)

	bad, err := specification.IncludePath[message]("Editor")
	require.NoError(t, err)
	_, err = repo.GetElements(ctx, bad)
	assert.ErrorIs(t, err, ErrUnknownProperty)
}

func TestUnknownProperty(t *testing.T) {
	dc := seeded(t)
	repo := New[message](dc)
	defer repo.Close()
	ctx := context.Background()

	_, err := repo.GetElements(ctx, specification.Asc[message]("Title"))
	require.ErrorIs(t, err, ErrUnknownProperty)
	assert.Contains(t, err.Error(), "could not find a property called 'Title'")

	_, err = repo.GetElements(ctx, specification.Where[message](func(x *expression.Parameter) expression.Node {
		return x.Field("Title").Eq("x")
	}))
	assert.ErrorIs(t, err, ErrUnknownProperty)
}

func TestMutationsNeedUnitOfWork(t *testing.T) {
	dc := newContext(t)
	repo := New[message](dc)
	defer repo.Close()

	m := &message{ID: 1}
	assert.ErrorIs(t, repo.Add(m), uow.ErrInvalidUnitOfWork)
	assert.ErrorIs(t, repo.Update(m), uow.ErrInvalidUnitOfWork)
	assert.ErrorIs(t, repo.Remove(m), uow.ErrInvalidUnitOfWork)
	assert.ErrorIs(t, repo.Attach(m), uow.ErrInvalidUnitOfWork)

	err := dc.Do(context.Background(), func(ctx context.Context, u *uow.UnitOfWork) error {
		assert.ErrorIs(t, repo.Add(m, nil), ErrNilEntity)
		assert.Equal(t, uow.Detached, dc.Tracker().State(m))
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateAndRemove(t *testing.T) {
	dc := seeded(t)
	ctx := context.Background()

	err := dc.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		repo, err := Get[message](u)
		if err != nil {
			return err
		}
		defer repo.Close()

		m, err := repo.Get(ctx, idIs(2))
		if err != nil {
			return err
		}
		m.Message = "z"
		if err := repo.Update(m); err != nil {
			return err
		}
		gone, err := repo.Get(ctx, specification.Where[message](func(x *expression.Parameter) expression.Node {
			return x.Field("Message").Eq("a")
		}))
		if err != nil {
			return err
		}
		return repo.Remove(gone)
	})
	require.NoError(t, err)

	repo := New[message](dc)
	defer repo.Close()
	items, err := repo.GetElements(ctx, specification.Asc[message]("Message"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "z"}, texts(items))
}

func TestFindPrefersTrackedEntities(t *testing.T) {
	dc := seeded(t)
	ctx := context.Background()

	err := dc.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		repo, err := Get[message](u)
		if err != nil {
			return err
		}
		defer repo.Close()

		pending := &message{ID: 5, Message: "pending"}
		require.NoError(t, repo.Add(pending))

		found, err := repo.Find(ctx, idIs(5))
		require.NoError(t, err)
		assert.Same(t, pending, found)

		stored, err := repo.Find(ctx, idIs(2))
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "c", stored.Message)
		return nil
	})
	require.NoError(t, err)
}

func TestAsync(t *testing.T) {
	dc := seeded(t)
	repo := New[message](dc)
	defer repo.Close()
	ctx := context.Background()

	one := <-repo.GetAsync(ctx, idIs(2))
	require.NoError(t, one.Err)
	assert.Equal(t, "c", one.Value.Message)

	many := <-repo.GetElementsAsync(ctx, idIs(1), specification.Asc[message]("Message"))
	require.NoError(t, many.Err)
	assert.Equal(t, []string{"a", "b"}, texts(many.Value))

	failed := <-repo.GetElementsAsync(ctx, specification.DefaultPaging[message]())
	assert.ErrorIs(t, failed.Err, ErrPagingWithoutSort)
}

type countingRepository struct {
	Repository[message]
	label string
}

func TestGetResolvesThroughContainer(t *testing.T) {
	c := ioc.New()
	dc := newContext(t, uow.WithContainer(c))
	require.NoError(t, RegisterFactory[message](c, func(dc *uow.DataContext, params ioc.Parameters) (Repository[message], error) {
		label, _ := ioc.Param[string](params, "label")
		return &countingRepository{Repository: New[message](dc), label: label}, nil
	}))

	err := dc.Do(context.Background(), func(ctx context.Context, u *uow.UnitOfWork) error {
		repo, err := Get[message](u, ioc.Named("label", "audit"), ioc.Named(ContextParameter, "spoofed"))
		require.NoError(t, err)
		custom, ok := repo.(*countingRepository)
		require.True(t, ok)
		assert.Equal(t, "audit", custom.label)
		assert.Same(t, dc, repo.Context())
		assert.Equal(t, 1, dc.RepositoryCount())
		require.NoError(t, repo.Close())
		require.NoError(t, repo.Close())
		assert.Zero(t, dc.RepositoryCount())

		// no binding for author: the default repository is returned
		authors, err := Get[author](u)
		require.NoError(t, err)
		defer authors.Close()
		_, ok = authors.(*baseRepositoryImpl[author])
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)

	_, err = Get[message](nil)
	assert.ErrorIs(t, err, uow.ErrInvalidUnitOfWork)
}

func TestRegister(t *testing.T) {
	c := ioc.New()
	require.NoError(t, Register[message](c))
	assert.True(t, ioc.Has[Repository[message]](c))

	_, err := ioc.GetBinding[Repository[message]](c)
	assert.ErrorIs(t, err, uow.ErrInvalidUnitOfWork)
	assert.ErrorIs(t, RegisterFactory[message](c, nil), ioc.ErrNilFactory)
}

func TestClosedRepository(t *testing.T) {
	dc := seeded(t)
	repo := New[message](dc)
	require.NoError(t, repo.Close())

	_, err := repo.GetElements(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, repo.Add(&message{}), ErrClosed)
}
