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

package bedrock

import (
	"context"
	"database/sql"
	"errors"
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
	"github.com/tomoncle/bedrock/repository"
	"github.com/tomoncle/bedrock/specification"
	"github.com/tomoncle/bedrock/types"
	"github.com/tomoncle/bedrock/uow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID    int64  `bun:"id,pk"`
	Name  string `bun:"name"`
	Price int    `bun:"price"`
}

func cheaperThan(price int) *specification.Filter[product] {
	return specification.Where[product](func(x *expression.Parameter) expression.Node {
		return x.Field("Price").Lt(price)
	})
}

func newService(t *testing.T) (Service[product], *uow.DataContext) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.NewCreateTable().Model((*product)(nil)).Exec(context.Background())
	require.NoError(t, err)

	dc := uow.NewDataContext(db)
	return NewService[product](dc), dc
}

func seed(t *testing.T, svc Service[product]) {
	t.Helper()
	require.NoError(t, svc.Save(context.Background(),
		&product{ID: 1, Name: "pen", Price: 2},
		&product{ID: 2, Name: "book", Price: 12},
		&product{ID: 3, Name: "lamp", Price: 30},
	))
}

func TestServiceQueries(t *testing.T) {
	svc, dc := newService(t)
	ctx := context.Background()
	seed(t, svc)

	n, err := svc.Count(ctx, cheaperThan(20))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err := svc.Exists(ctx, cheaperThan(1))
	require.NoError(t, err)
	assert.False(t, ok)

	items, err := svc.List(ctx, specification.Desc[product]("Price"))
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "lamp", items[0].Name)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	item, err := svc.Get(ctx, cheaperThan(5))
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "pen", item.Name)

	_, err = svc.Get(ctx, cheaperThan(20))
	assert.ErrorIs(t, err, repository.ErrMultipleResults)

	paging, err := specification.NewPaging[product](1, 2)
	require.NoError(t, err)
	page, err := svc.Page(ctx, paging, specification.Asc[product]("Price"))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "lamp", page.Items[0].Name)

	raw, err := svc.Query(ctx, "SELECT * FROM products WHERE price > ?", 10)
	require.NoError(t, err)
	assert.Len(t, raw, 2)

	assert.Zero(t, dc.UnitOfWorkCount())
	assert.Zero(t, dc.RepositoryCount())
	assert.Equal(t, 8, dc.Stats().Commits)
	assert.Equal(t, 1, dc.Stats().Rollbacks)
}

func TestServiceMutations(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	seed(t, svc)

	pen, err := svc.Get(ctx, cheaperThan(5))
	require.NoError(t, err)
	pen.Name = "fountain pen"
	require.NoError(t, svc.Update(ctx, pen))

	require.NoError(t, svc.SaveOrUpdate(ctx, []string{"price"}, nil,
		&product{ID: 2, Name: "ignored", Price: 15},
		&product{ID: 4, Name: "desk", Price: 90},
	))

	items, err := svc.List(ctx, specification.Asc[product]("ID"))
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, "fountain pen", items[0].Name)
	assert.Equal(t, "book", items[1].Name)
	assert.Equal(t, 15, items[1].Price)
	assert.Equal(t, "desk", items[3].Name)

	require.NoError(t, svc.Delete(ctx, items[3]))
	removed, err := svc.DeleteWhere(ctx, cheaperThan(20))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.DeleteWhere(ctx, nil)
	assert.ErrorIs(t, err, specification.ErrNilSpecification)
}

func TestServiceJoinsOpenUnitOfWork(t *testing.T) {
	svc, dc := newService(t)
	ctx := context.Background()

	err := uow.Do(ctx, dc, uow.AutoCommit, types.NewAuditInfo("mhines", "import"), func(ctx context.Context, u *uow.UnitOfWork) error {
		require.NoError(t, svc.Save(ctx, &product{ID: 1, Name: "pen", Price: 2}))
		assert.Equal(t, 1, dc.UnitOfWorkCount())
		return errors.New("abort import")
	})
	require.EqualError(t, err, "abort import")

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestServiceRejectsNilEntity(t *testing.T) {
	svc, dc := newService(t)

	err := svc.Save(context.Background(), nil)
	assert.ErrorIs(t, err, repository.ErrNilEntity)
	assert.Zero(t, dc.UnitOfWorkCount())
	assert.Zero(t, dc.RepositoryCount())
	assert.Equal(t, 1, dc.Stats().Rollbacks)
}
