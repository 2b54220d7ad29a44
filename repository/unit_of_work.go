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
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/tomoncle/gendao/database"
	"github.com/tomoncle/gendao/meta"
	"github.com/tomoncle/gendao/types"
	"github.com/tomoncle/gendao/utils"
	"github.com/uptrace/bun"
)

// UnitOfWork is a transaction with a persistence context. Instances it
// loads or persists are attached: loading the same row twice yields the
// same pointer, and changes made to attached instances are written at the
// next flush. Version checks run at flush time.
//
// A UnitOfWork belongs to one goroutine.
type UnitOfWork struct {
	base
	id      string
	tx      bun.Tx
	started time.Time
	managed map[meta.Key]*managed
	order   []meta.Key
	done    bool
}

type managed struct {
	e        *meta.Entity
	entity   interface{}
	snapshot reflect.Value
}

// Begin opens a transaction on db.
func Begin(ctx context.Context, db *bun.DB, opts ...Option) (*UnitOfWork, error) {
	o := collect(opts)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, database.Wrap("begin", err)
	}
	u := &UnitOfWork{
		base:    base{db: db, idb: tx, logger: o.logger},
		id:      uuid.NewString(),
		tx:      tx,
		started: time.Now(),
		managed: make(map[meta.Key]*managed),
	}
	u.track = u
	u.logger.Debug("Unit of work started", "uow", u.id)
	return u, nil
}

// ID identifies the unit of work in log lines.
func (u *UnitOfWork) ID() string { return u.id }

func (u *UnitOfWork) Contains(e *meta.Entity, entity interface{}) bool {
	key, err := e.Key(entity)
	if err != nil {
		return false
	}
	m, ok := u.managed[key]
	return ok && m.entity == entity
}

// Find serves attached instances from the persistence context.
func (u *UnitOfWork) Find(ctx context.Context, e *meta.Entity, id interface{}) (interface{}, error) {
	if err := u.check(); err != nil {
		return nil, err
	}
	if m, ok := u.managed[e.KeyOf(id)]; ok {
		return m.entity, nil
	}
	return u.base.Find(ctx, e, id)
}

func (u *UnitOfWork) Insert(ctx context.Context, e *meta.Entity, entity interface{}) error {
	if err := u.check(); err != nil {
		return err
	}
	return u.base.Insert(ctx, e, entity)
}

// Merge copies a detached instance onto the attached instance of the same
// row, loading it first when needed, and returns the attached instance. A
// version differing from the attached one is a conflict. An instance
// whose row does not exist is inserted.
func (u *UnitOfWork) Merge(ctx context.Context, e *meta.Entity, entity interface{}) (interface{}, error) {
	if err := u.check(); err != nil {
		return nil, err
	}
	id, err := e.ID(entity)
	if err != nil {
		return nil, err
	}
	current, err := u.Find(ctx, e, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		if err := u.base.Insert(ctx, e, entity); err != nil {
			return nil, err
		}
		return entity, nil
	}
	if current == entity {
		return entity, nil
	}
	want, versioned, err := e.Version(current)
	if err != nil {
		return nil, err
	}
	if got, _, _ := e.Version(entity); versioned && got != want {
		return nil, conflict(e, entity)
	}
	reflect.ValueOf(current).Elem().Set(reflect.ValueOf(entity).Elem())
	return current, nil
}

func (u *UnitOfWork) Remove(ctx context.Context, e *meta.Entity, entity interface{}) error {
	if err := u.check(); err != nil {
		return err
	}
	if err := u.sync(ctx); err != nil {
		return err
	}
	if err := u.base.Remove(ctx, e, entity); err != nil {
		return err
	}
	if key, err := e.Key(entity); err == nil {
		u.forget(key)
	}
	return nil
}

// Refresh overwrites entity with its stored row and discards its pending
// changes.
func (u *UnitOfWork) Refresh(ctx context.Context, e *meta.Entity, entity interface{}) error {
	if err := u.check(); err != nil {
		return err
	}
	if err := u.base.Refresh(ctx, e, entity); err != nil {
		return err
	}
	key, err := e.Key(entity)
	if err != nil {
		return err
	}
	if m, ok := u.managed[key]; ok && m.entity == entity {
		m.snapshot = snapshot(entity)
	}
	return nil
}

// Flush writes the attached instances changed since they were loaded, in
// the order they were attached.
func (u *UnitOfWork) Flush(ctx context.Context) error {
	if err := u.check(); err != nil {
		return err
	}
	return u.sync(ctx)
}

// Commit flushes and commits. The unit of work is closed afterwards, also
// when it fails; a failed flush rolls the transaction back.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if err := u.check(); err != nil {
		return err
	}
	if err := u.sync(ctx); err != nil {
		u.close()
		if rbErr := u.tx.Rollback(); rbErr != nil {
			u.logger.Error("Rollback after failed flush", "uow", u.id, "error", rbErr)
		}
		u.logger.Warn("Unit of work rolled back", "uow", u.id, "error", err, "elapsed", utils.Since(u.started))
		return err
	}
	u.close()
	if err := u.tx.Commit(); err != nil {
		return database.Wrap("commit", err)
	}
	u.logger.Debug("Unit of work committed", "uow", u.id, "elapsed", utils.Since(u.started))
	return nil
}

// Rollback discards the transaction and every pending change. Rolling back
// a closed unit of work does nothing.
func (u *UnitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.close()
	u.logger.Debug("Unit of work rolled back", "uow", u.id, "elapsed", utils.Since(u.started))
	return database.Wrap("rollback", u.tx.Rollback())
}

func (u *UnitOfWork) close() {
	u.done = true
	u.managed = map[meta.Key]*managed{}
	u.order = nil
}

func (u *UnitOfWork) check() error {
	if u.done {
		return fmt.Errorf("%w: unit of work %s is closed", types.ErrInvalidArgument, u.id)
	}
	return nil
}

func (u *UnitOfWork) attach(e *meta.Entity, v interface{}) (interface{}, error) {
	key, err := e.Key(v)
	if err != nil {
		return nil, err
	}
	if m, ok := u.managed[key]; ok {
		return m.entity, nil
	}
	u.managed[key] = &managed{e: e, entity: v, snapshot: snapshot(v)}
	u.order = append(u.order, key)
	return v, nil
}

func (u *UnitOfWork) sync(ctx context.Context) error {
	if u.done {
		return u.check()
	}
	flushed := 0
	for _, key := range u.order {
		m := u.managed[key]
		if !m.dirty() {
			continue
		}
		ok, err := u.update(ctx, m.e, m.entity)
		if err != nil {
			return err
		}
		if !ok {
			if m.e.VersionAttribute() == nil {
				return fmt.Errorf("%w: %s %s no longer exists", types.ErrNotFound, m.e.Name(), key.ID)
			}
			return conflict(m.e, m.entity)
		}
		m.snapshot = snapshot(m.entity)
		flushed++
	}
	if flushed > 0 {
		u.logger.Debug("Flushed changes", "uow", u.id, "entities", flushed)
	}
	return nil
}

func (u *UnitOfWork) evict(e *meta.Entity) {
	kept := u.order[:0]
	for _, key := range u.order {
		if e == nil || u.managed[key].e == e {
			delete(u.managed, key)
			continue
		}
		kept = append(kept, key)
	}
	u.order = kept
}

func (u *UnitOfWork) forget(key meta.Key) {
	delete(u.managed, key)
	for i, k := range u.order {
		if k == key {
			u.order = append(u.order[:i], u.order[i+1:]...)
			return
		}
	}
}

func snapshot(v interface{}) reflect.Value {
	rv := reflect.ValueOf(v).Elem()
	copied := reflect.New(rv.Type()).Elem()
	copied.Set(rv)
	return copied
}

// dirty compares the mapped columns of the instance with its snapshot.
func (m *managed) dirty() bool {
	current := reflect.ValueOf(m.entity).Elem()
	for _, f := range m.e.Table().Fields {
		a := current.FieldByIndex(f.Index)
		b := m.snapshot.FieldByIndex(f.Index)
		if !reflect.DeepEqual(a.Interface(), b.Interface()) {
			return true
		}
	}
	return false
}
