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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tomoncle/gendao/dao"
	"github.com/tomoncle/gendao/database"
	"github.com/tomoncle/gendao/meta"
	"github.com/tomoncle/gendao/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID      int64     `bun:"id,pk,autoincrement"`
	Version int64     `bun:"version,notnull"`
	Code    string    `bun:"code,notnull,unique"`
	Name    string    `bun:"name"`
	Qty     int       `bun:"qty,notnull"`
	Note    *string   `bun:"note"`
	Created time.Time `bun:"created,notnull"`
}

type tag struct {
	bun.BaseModel `bun:"table:tags,alias:t"`

	ID    int64            `bun:"id,pk"`
	Label string           `bun:"label"`
	Attrs types.JsonObject `bun:"attrs,type:text"`
	Alias sql.NullString   `bun:"alias"`
}

var (
	itemID      = meta.NewAttr[item, int64]("id")
	itemVersion = meta.NewAttr[item, int64]("version")
	itemCode    = meta.NewAttr[item, string]("code")
	itemName    = meta.NewAttr[item, string]("name")
	itemQty     = meta.NewAttr[item, int]("qty")
	itemNote    = meta.NewAttr[item, *string]("note")
	itemCreated = meta.NewAttr[item, time.Time]("created")
	tagID       = meta.NewAttr[tag, int64]("id")
	tagLabel    = meta.NewAttr[tag, string]("label")
	tagAlias    = meta.NewAttr[tag, sql.NullString]("alias")
)

var day = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

// openDB returns an in-memory SQLite database private to the test, with
// the tables of item and tag created.
func openDB(t *testing.T) (*bun.DB, *meta.Registry) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	r := meta.NewRegistry(db.Dialect())
	meta.MustRegister[item](r, meta.EntityConfig{ID: itemID, Version: itemVersion, NaturalKey: itemCode})
	meta.MustRegister[tag](r, meta.EntityConfig{ID: tagID})
	require.NoError(t, r.RegisterNamed("item.restock", "UPDATE items SET qty = qty + :amount WHERE code = :code"))
	require.NoError(t, r.RegisterNamed("item.above", "SELECT * FROM items WHERE qty > :min ORDER BY id"))
	require.NoError(t, database.NewSchemaManager(db, r, nil).Migrate(context.Background()))
	return db, r
}

func storeDAO(t *testing.T, db *bun.DB, r *meta.Registry) *dao.DAO[item] {
	t.Helper()
	d, err := dao.New[item](NewStore(db), r)
	require.NoError(t, err)
	return d
}

// seed inserts items with codes a, b, c ... and qty 0, 1, 2 ...
func seed(t *testing.T, d *dao.DAO[item], n int) []*item {
	t.Helper()
	out := make([]*item, 0, n)
	for i := 0; i < n; i++ {
		it := &item{
			Code:    string(rune('a' + i)),
			Name:    "item",
			Qty:     i,
			Created: day.Add(time.Duration(i) * time.Hour),
		}
		_, err := d.Persist(context.Background(), it)
		require.NoError(t, err)
		out = append(out, it)
	}
	return out
}
