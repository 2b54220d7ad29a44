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
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/tomoncle/gendao/dao"
	"github.com/tomoncle/gendao/database"
	"github.com/tomoncle/gendao/meta"
	"github.com/tomoncle/gendao/query"
	"github.com/tomoncle/gendao/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/feature"
)

// base runs the statements shared by Store and UnitOfWork on idb, which is
// either db itself or a transaction on it.
type base struct {
	db     *bun.DB
	idb    bun.IDB
	logger database.Logger
	track  tracker
}

func (b *base) IDB() bun.IDB { return b.idb }

func (b *base) dialect() dialect.Name { return b.db.Dialect().Name() }

func (b *base) Find(ctx context.Context, e *meta.Entity, id interface{}) (interface{}, error) {
	if err := b.track.sync(ctx); err != nil {
		return nil, err
	}
	v := e.New()
	err := b.idb.NewSelect().
		Model(v).
		Where("?TableAlias.? = ?", bun.Ident(e.IDAttribute().Name()), id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Wrap("find "+e.Name(), err)
	}
	return b.track.attach(e, v)
}

func (b *base) List(ctx context.Context, q *query.Query, w dao.Window) ([]interface{}, error) {
	if err := b.track.sync(ctx); err != nil {
		return nil, err
	}
	slice := q.Entity.NewSlice()
	sel := applySelect(b.dialect(), b.idb.NewSelect().Model(slice), q)
	if err := window(sel, w).Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, database.Wrap("list "+q.Entity.Name(), err)
	}
	return b.attachAll(q.Entity, slice)
}

func (b *base) Exists(ctx context.Context, q *query.Query) (bool, error) {
	if err := b.track.sync(ctx); err != nil {
		return false, err
	}
	ok, err := applySelect(b.dialect(), b.idb.NewSelect().Model(q.Entity.New()), q).Exists(ctx)
	return ok, database.Wrap("exists "+q.Entity.Name(), err)
}

func (b *base) Project(ctx context.Context, q *query.Query, w dao.Window, dest ...interface{}) error {
	if len(dest) != len(q.Projection) {
		return fmt.Errorf("%w: %d projected attributes, %d destinations", types.ErrInvalidArgument, len(q.Projection), len(dest))
	}
	if err := b.track.sync(ctx); err != nil {
		return err
	}
	columns := make([]string, len(q.Projection))
	for i, attr := range q.Projection {
		columns[i] = attr.Name()
	}
	sel := b.idb.NewSelect().Model(q.Entity.New()).Column(columns...)
	sel = applySelect(b.dialect(), sel, q)
	if err := window(sel, w).Scan(ctx, dest...); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return database.Wrap("project "+q.Entity.Name(), err)
	}
	return nil
}

func (b *base) Delete(ctx context.Context, q *query.Query) (int64, error) {
	if err := b.track.sync(ctx); err != nil {
		return 0, err
	}
	res, err := applyDelete(b.dialect(), b.idb.NewDelete().Model(q.Entity.New()), q).Exec(ctx)
	if err != nil {
		return 0, database.Wrap("delete "+q.Entity.Name(), err)
	}
	b.track.evict(q.Entity)
	return res.RowsAffected()
}

func (b *base) Scroll(ctx context.Context, q *query.Query) (dao.Cursor, error) {
	if err := b.track.sync(ctx); err != nil {
		return nil, err
	}
	rows, err := applySelect(b.dialect(), b.idb.NewSelect().Model(q.Entity.New()), q).Rows(ctx)
	if err != nil {
		return nil, database.Wrap("scroll "+q.Entity.Name(), err)
	}
	return newCursor(ctx, b, q.Entity, rows), nil
}

func (b *base) ListNamed(ctx context.Context, e *meta.Entity, statement string, args []interface{}, w dao.Window) ([]interface{}, error) {
	if err := b.track.sync(ctx); err != nil {
		return nil, err
	}
	stmt, stmtArgs := paged(statement, args, w)
	slice := e.NewSlice()
	if err := b.idb.NewRaw(stmt, stmtArgs...).Scan(ctx, slice); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, database.Wrap("named select", err)
	}
	rows, err := b.attachAll(e, slice)
	if err != nil {
		return nil, err
	}
	if w.Limit <= 0 && w.Offset > 0 {
		if w.Offset >= len(rows) {
			return []interface{}{}, nil
		}
		rows = rows[w.Offset:]
	}
	return rows, nil
}

func (b *base) ScrollNamed(ctx context.Context, e *meta.Entity, statement string, args []interface{}) (dao.Cursor, error) {
	if err := b.track.sync(ctx); err != nil {
		return nil, err
	}
	rows, err := b.idb.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, database.Wrap("named scroll", err)
	}
	return newCursor(ctx, b, e, rows), nil
}

func (b *base) ExecNamed(ctx context.Context, statement string, args []interface{}) (int64, error) {
	if err := b.track.sync(ctx); err != nil {
		return 0, err
	}
	res, err := b.idb.ExecContext(ctx, statement, args...)
	if err != nil {
		return 0, database.Wrap("named statement", err)
	}
	b.track.evict(nil)
	return res.RowsAffected()
}

// Insert writes a new instance. A versioned entity starts at version 1.
func (b *base) Insert(ctx context.Context, e *meta.Entity, entity interface{}) error {
	if v, ok, err := e.Version(entity); err != nil {
		return err
	} else if ok && v == 0 {
		if err := e.SetVersion(entity, 1); err != nil {
			return err
		}
	}
	if _, err := b.idb.NewInsert().Model(entity).Exec(ctx); err != nil {
		return database.Wrap("insert "+e.Name(), err)
	}
	_, err := b.track.attach(e, entity)
	return err
}

// Remove deletes the row of entity. A versioned row must still carry the
// version of the instance.
func (b *base) Remove(ctx context.Context, e *meta.Entity, entity interface{}) error {
	del := b.idb.NewDelete().Model(entity).WherePK()
	v, versioned, err := e.Version(entity)
	if err != nil {
		return err
	}
	if versioned {
		del = del.Where("? = ?", bun.Ident(e.VersionAttribute().Name()), v)
	}
	res, err := del.Exec(ctx)
	if err != nil {
		return database.Wrap("remove "+e.Name(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if versioned {
			return conflict(e, entity)
		}
		return fmt.Errorf("%w: %s row already gone", types.ErrNotFound, e.Name())
	}
	return nil
}

func (b *base) Refresh(ctx context.Context, e *meta.Entity, entity interface{}) error {
	err := b.idb.NewSelect().Model(entity).WherePK().Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		id, _ := e.ID(entity)
		return fmt.Errorf("%w: %s with id %v", types.ErrNotFound, e.Name(), id)
	}
	return database.Wrap("refresh "+e.Name(), err)
}

// update writes every column of entity. A versioned update only matches
// the row still at the instance's version and bumps it; the instance keeps
// its old version when nothing matched.
func (b *base) update(ctx context.Context, e *meta.Entity, entity interface{}) (bool, error) {
	upd := b.idb.NewUpdate().Model(entity).WherePK()
	old, versioned, err := e.Version(entity)
	if err != nil {
		return false, err
	}
	if versioned {
		upd = upd.Where("? = ?", bun.Ident(e.VersionAttribute().Name()), old)
		if err := e.SetVersion(entity, old+1); err != nil {
			return false, err
		}
	}
	res, err := upd.Exec(ctx)
	if err != nil {
		_ = e.SetVersion(entity, old)
		return false, database.Wrap("update "+e.Name(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = e.SetVersion(entity, old)
		return false, nil
	}
	return true, nil
}

// exists reports whether the row with the identifier of entity is stored.
func (b *base) exists(ctx context.Context, e *meta.Entity, entity interface{}) (bool, error) {
	id, err := e.ID(entity)
	if err != nil {
		return false, err
	}
	ok, err := b.idb.NewSelect().
		Model(e.New()).
		Where("?TableAlias.? = ?", bun.Ident(e.IDAttribute().Name()), id).
		Exists(ctx)
	return ok, database.Wrap("exists "+e.Name(), err)
}

// upsert inserts entity or overwrites the row with its primary key, using
// the conflict clause the dialect supports.
func (b *base) upsert(ctx context.Context, e *meta.Entity, entity interface{}) error {
	if len(e.Table().DataFields) == 0 {
		return fmt.Errorf("%w: %s has no columns to update", types.ErrInvalidArgument, e.Name())
	}
	ins, ok := onConflict(b.db, e, b.idb.NewInsert().Model(entity))
	if ok {
		_, err := ins.Exec(ctx)
		return database.Wrap("upsert "+e.Name(), err)
	}

	var err error
	if _, insertErr := ins.Exec(ctx); insertErr != nil {
		if _, updateErr := b.idb.NewUpdate().Model(entity).WherePK().Exec(ctx); updateErr != nil {
			err = fmt.Errorf("upsert failed: insert error: %v, update error: %w", insertErr, updateErr)
		}
	}
	return database.Wrap("upsert "+e.Name(), err)
}

// onConflict adds the clause that turns ins into an overwrite of the row
// with the same primary key. It reports false when the dialect has none.
func onConflict(db *bun.DB, e *meta.Entity, ins *bun.InsertQuery) (*bun.InsertQuery, bool) {
	switch {
	case db.HasFeature(feature.InsertOnConflict):
		pks := e.Table().PKs
		marks := make([]string, len(pks))
		keys := make([]interface{}, len(pks))
		for i, f := range pks {
			marks[i] = "?"
			keys[i] = bun.Ident(f.Name)
		}
		ins = ins.On("CONFLICT ("+strings.Join(marks, ", ")+") DO UPDATE", keys...)
		for _, f := range e.Table().DataFields {
			ins = ins.Set("? = EXCLUDED.?", bun.Ident(f.Name), bun.Ident(f.Name))
		}
		return ins, true
	case db.HasFeature(feature.InsertOnDuplicateKey):
		ins = ins.On("DUPLICATE KEY UPDATE")
		for _, f := range e.Table().DataFields {
			ins = ins.Set("? = VALUES(?)", bun.Ident(f.Name), bun.Ident(f.Name))
		}
		return ins, true
	default:
		return ins, false
	}
}

func (b *base) attachAll(e *meta.Entity, slice interface{}) ([]interface{}, error) {
	rv := reflect.ValueOf(slice).Elem()
	out := make([]interface{}, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		v, err := b.track.attach(e, rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func window(sel *bun.SelectQuery, w dao.Window) *bun.SelectQuery {
	if w.Limit > 0 {
		sel = sel.Limit(w.Limit)
	}
	if w.Offset > 0 {
		sel = sel.Offset(w.Offset)
	}
	return sel
}

// paged limits a native select by wrapping it. An offset without a limit is
// left to the caller.
func paged(statement string, args []interface{}, w dao.Window) (string, []interface{}) {
	if w.Limit <= 0 {
		return statement, args
	}
	stmt := "SELECT * FROM (" + strings.TrimRight(strings.TrimSpace(statement), ";") + ") AS named_window LIMIT ?"
	out := append(append([]interface{}{}, args...), w.Limit)
	if w.Offset > 0 {
		stmt += " OFFSET ?"
		out = append(out, w.Offset)
	}
	return stmt, out
}

func conflict(e *meta.Entity, entity interface{}) error {
	id, _ := e.ID(entity)
	v, _, _ := e.Version(entity)
	return fmt.Errorf("%w: %s %v changed since version %d", types.ErrConcurrencyConflict, e.Name(), id, v)
}
