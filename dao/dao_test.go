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

package dao

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/gendao/meta"
	"github.com/tomoncle/gendao/query"
	"github.com/tomoncle/gendao/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type item struct {
	bun.BaseModel `bun:"table:items"`

	ID      int64   `bun:"id,pk,autoincrement"`
	Version int64   `bun:"version"`
	Code    string  `bun:"code"`
	Name    string  `bun:"name"`
	Qty     int     `bun:"qty"`
	Note    *string `bun:"note"`
}

type unregistered struct {
	ID int64 `bun:"id,pk"`
}

var (
	itemID      = meta.NewAttr[item, int64]("id")
	itemVersion = meta.NewAttr[item, int64]("version")
	itemCode    = meta.NewAttr[item, string]("code")
	itemName    = meta.NewAttr[item, string]("name")
	itemQty     = meta.NewAttr[item, int]("qty")
	itemNote    = meta.NewAttr[item, *string]("note")
)

type fixture struct {
	engine   *memoryEngine
	registry *meta.Registry
	dao      *DAO[item]
	logger   *recordingLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := meta.NewRegistry(sqlitedialect.New())
	_, err := meta.Register[item](r, meta.EntityConfig{ID: itemID, Version: itemVersion, NaturalKey: itemCode})
	require.NoError(t, err)
	require.NoError(t, r.RegisterNamed("item.restock", "UPDATE items SET qty = qty + :amount WHERE code = :code"))
	require.NoError(t, r.RegisterNamed("item.all", "SELECT * FROM items ORDER BY id"))

	engine := newMemoryEngine()
	logger := &recordingLogger{}
	d, err := New[item](engine, r, WithLogger(logger))
	require.NoError(t, err)
	return &fixture{engine: engine, registry: r, dao: d, logger: logger}
}

func (f *fixture) seed(items ...*item) {
	for _, it := range items {
		f.engine.seed(f.dao.Entity(), it)
	}
}

func seedItems(f *fixture, n int) {
	for i := 0; i < n; i++ {
		f.seed(&item{Code: string(rune('a' + i%26)), Name: "item", Qty: i})
	}
}

func TestNewRequiresRegisteredType(t *testing.T) {
	f := newFixture(t)
	_, err := New[unregistered](f.engine, f.registry)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	_, err = New[item](nil, f.registry)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestGetByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(&item{Code: "a"})

	got, err := f.dao.GetByID(ctx, int64(1))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.Code)

	got, err = f.dao.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = f.dao.GetByID(ctx, nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestGetByIDsEmptyMatchesNothing(t *testing.T) {
	f := newFixture(t)
	seedItems(f, 3)

	got, err := f.dao.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 0, f.engine.lists)

	got, err = f.dao.GetByIDs(context.Background(), IDs([]int64{1, 3, 9}))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGetByAttributes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note := "fragile"
	f.seed(&item{Code: "a", Name: "x", Qty: 3}, &item{Code: "b", Name: "x", Qty: 1, Note: &note}, &item{Code: "c", Name: "y"})

	got, err := f.dao.GetByAttribute(ctx, itemName, "x", query.OrderBy(itemQty, types.ASC))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Code)

	got, err = f.dao.GetByAttributes(ctx, query.Where(itemName, "x").And(itemNote, nil), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Code)

	got, err = f.dao.GetByAttribute(ctx, itemName, "none", nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	all, err := f.dao.GetAll(ctx, query.OrderBy(itemCode, types.DESC))
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Code)

	_, err = f.dao.GetByAttribute(ctx, meta.NewAttr[item, string]("bogus"), "x", nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	prefixed, err := f.dao.GetByAttributeStartsWith(ctx, itemCode, "b", nil)
	require.NoError(t, err)
	assert.Len(t, prefixed, 1)

	in, err := f.dao.GetByAttributeIn(ctx, itemCode, []interface{}{"a", "c"}, nil)
	require.NoError(t, err)
	assert.Len(t, in, 2)
}

func TestGetSingleResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(&item{Code: "A1", Name: "dup"}, &item{Code: "b", Name: "dup"})

	got, err := f.dao.GetSingleResult(ctx, query.Where(itemCode, "zzz"))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = f.dao.GetSingleResult(ctx, query.Where(itemCode, "a1"), query.WithFoldCase())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "A1", got.Code)

	_, err = f.dao.GetSingleResult(ctx, query.Where(itemName, "dup"))
	assert.ErrorIs(t, err, types.ErrAmbiguousResult)

	byKey, err := f.dao.GetByNaturalKey(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, byKey)

	first, err := f.dao.GetFirstResult(ctx, query.Where(itemName, "dup"), query.OrderBy(itemCode, types.DESC))
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "b", first.Code)
}

func TestExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(&item{Code: "Abc"})

	ok, err := f.dao.Exists(ctx, query.Where(itemCode, "abc"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.dao.Exists(ctx, query.Where(itemCode, "abc"), query.WithRelaxedEquality())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPersistPaths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fresh := &item{Code: "new"}
	got, err := f.dao.Persist(ctx, fresh)
	require.NoError(t, err)
	assert.Same(t, fresh, got)
	assert.NotZero(t, fresh.ID)
	assert.Equal(t, 1, f.engine.inserts)

	_, err = f.dao.Persist(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, 1, f.engine.inserts)
	assert.Equal(t, 0, f.engine.merges)
	assert.Len(t, f.engine.rows, 1)

	detached := &item{ID: fresh.ID, Code: "changed"}
	_, err = f.dao.Persist(ctx, detached)
	require.NoError(t, err)
	assert.Equal(t, 1, f.engine.merges)
	assert.Equal(t, 1, f.engine.inserts)

	_, err = f.dao.Persist(ctx, nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestPersistAllStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.dao.PersistAll(ctx, []*item{{Code: "a"}, {Code: "b"}})
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	boom := errors.New("boom")
	f.engine.failInsert = boom
	saved, err = f.dao.PersistAll(ctx, []*item{saved[0], {Code: "c"}, {Code: "d"}})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, saved, 1)
}

func TestDeleteByIDMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedItems(f, 2)

	err := f.dao.DeleteByID(ctx, 99)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, 0, f.engine.removes)
	assert.Len(t, f.engine.rows, 2)

	require.NoError(t, f.dao.DeleteByID(ctx, 1))
	assert.Equal(t, 1, f.engine.removes)
	assert.Len(t, f.engine.rows, 1)
}

func TestDeleteCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(&item{Code: "a", Name: "x"}, &item{Code: "b", Name: "x"}, &item{Code: "c", Name: "y"})

	n, err := f.dao.DeleteByAttribute(ctx, itemName, "x")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = f.dao.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dao.Refresh(ctx, &item{Code: "never"})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	stored := &item{Code: "a", Qty: 5}
	f.seed(stored)
	stale := &item{ID: stored.ID, Qty: 1}
	got, err := f.dao.Refresh(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Qty)

	_, err = f.dao.Refresh(ctx, &item{ID: 404})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestExecuteBulkUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedItems(f, 2)

	n, err := f.dao.ExecuteBulkUpdate(ctx, "item.restock", map[string]interface{}{"amount": 3, "code": "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "UPDATE items SET qty = qty + ? WHERE code = ?", f.engine.execs[0])
	assert.Equal(t, []interface{}{3, "a"}, f.engine.execArgs[0])

	_, err = f.dao.ExecuteBulkUpdate(ctx, "missing", nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	_, err = f.dao.ExecuteBulkUpdate(ctx, "item.restock", map[string]interface{}{"amount": 1})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestGetPaged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedItems(f, 25)

	page, err := f.dao.GetPaged(ctx, 2, 10, nil, query.OrderBy(itemQty, types.ASC))
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
	assert.Equal(t, 20, page.Items[0].Qty)
	assert.Equal(t, 25, page.Status.TotalRows())
	assert.Equal(t, 3, page.Status.TotalPages())
	require.Len(t, f.engine.cursors, 1)
	assert.True(t, f.engine.cursors[0].closed)
	assert.Empty(t, f.logger.warnings)

	page, err = f.dao.GetPaged(ctx, 7, 10, query.Where(itemName, "item"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Status.PageIndex())
	assert.Len(t, page.Items, 10)
	assert.Len(t, f.logger.warnings, 1)

	empty, err := f.dao.GetPaged(ctx, 0, 10, query.Where(itemName, "nothing"), nil)
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
	assert.Equal(t, 1, empty.Status.TotalPages())

	_, err = f.dao.GetPaged(ctx, 0, 0, nil, nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestGetPagedNamed(t *testing.T) {
	f := newFixture(t)
	seedItems(f, 12)

	page, err := f.dao.GetPagedNamed(context.Background(), "item.all", nil, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.Status.CurrentPage())

	named, err := f.dao.GetNamed(context.Background(), "item.all", nil, 5)
	require.NoError(t, err)
	assert.Len(t, named, 5)
}

func TestProjections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(&item{Code: "a", Name: "first", Qty: 1}, &item{Code: "b", Name: "second", Qty: 2}, &item{Code: "a", Name: "third", Qty: 3})

	name, ok, err := GetAttribute(ctx, f.dao, itemName, itemCode, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", name)

	_, ok, err = GetAttribute(ctx, f.dao, itemName, itemCode, "zz")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = GetAttribute(ctx, f.dao, itemName, itemCode, "a")
	assert.ErrorIs(t, err, types.ErrAmbiguousResult)

	names, err := GetAttributes(ctx, f.dao, itemName, itemCode, "a", query.OrderBy(itemQty, types.DESC))
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "first"}, names)

	codes, err := ListAttribute(ctx, f.dao, itemCode, query.OrderBy(itemCode, types.ASC))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a", "b"}, codes)

	none, err := GetAttributes(ctx, f.dao, itemName, itemCode, "zz", nil)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	byCode, err := GetAttributesAsMap(ctx, f.dao, itemCode, itemName)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "third", "b": "second"}, byCode)
}

func TestProcessVisitsRowsInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedItems(f, 4)

	var seen []int
	err := f.dao.Process(ctx, nil, query.OrderBy(itemQty, types.DESC), func(_ context.Context, it *item) error {
		seen = append(seen, it.Qty)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1, 0}, seen)
	assert.True(t, f.engine.cursors[0].closed)

	count := 0
	require.NoError(t, f.dao.ProcessAll(ctx, func(context.Context, *item) error { count++; return nil }))
	assert.Equal(t, 4, count)
}

func TestProcessClosesCursorOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedItems(f, 5)

	boom := errors.New("boom")
	calls := 0
	err := f.dao.ProcessAll(ctx, func(context.Context, *item) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
	assert.True(t, f.engine.cursors[0].closed)

	assert.Panics(t, func() {
		_ = f.dao.ProcessAll(ctx, func(context.Context, *item) error { panic("transform failed") })
	})
	assert.True(t, f.engine.cursors[1].closed)
}

func TestProcessSavePersistsEachRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedItems(f, 3)

	err := f.dao.ProcessAllSave(ctx, func(_ context.Context, it *item) error {
		it.Qty += 10
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, f.engine.merges)
	assert.Equal(t, 0, f.engine.inserts)

	err = f.dao.ProcessNamedSave(ctx, "item.all", nil, func(context.Context, *item) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 3, f.engine.merges, "rows attached by the first pass are not merged again")

	seen := 0
	require.NoError(t, f.dao.ProcessNamed(ctx, "item.all", nil, func(context.Context, *item) error { seen++; return nil }))
	assert.Equal(t, 3, seen)

	require.NoError(t, f.dao.ProcessSave(ctx, query.Where(itemQty, 10), nil, func(context.Context, *item) error { return nil }))
	for _, cur := range f.engine.cursors {
		assert.True(t, cur.closed)
	}
}

// txEngine is a memoryEngine whose save batches run in a unit of work.
type txEngine struct {
	*memoryEngine
	runs int
}

func (e *txEngine) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Engine) error) error {
	e.runs++
	return fn(ctx, e.memoryEngine)
}

func TestSaveBatchesRunInTx(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedItems(f, 3)
	engine := &txEngine{memoryEngine: f.engine}
	d, err := New[item](engine, f.registry)
	require.NoError(t, err)

	require.NoError(t, d.Process(ctx, nil, nil, func(context.Context, *item) error { return nil }))
	require.NoError(t, d.ProcessNamed(ctx, "item.all", nil, func(context.Context, *item) error { return nil }))
	assert.Equal(t, 0, engine.runs)

	require.NoError(t, d.ProcessAllSave(ctx, func(_ context.Context, it *item) error {
		it.Qty++
		return nil
	}))
	assert.Equal(t, 1, engine.runs)
	assert.Equal(t, 3, f.engine.merges)

	boom := errors.New("boom")
	err = d.ProcessNamedSave(ctx, "item.all", nil, func(context.Context, *item) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, engine.runs)
	for _, cur := range f.engine.cursors {
		assert.True(t, cur.closed)
	}
}
