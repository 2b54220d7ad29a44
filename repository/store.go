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

	"github.com/tomoncle/gendao/dao"
	"github.com/tomoncle/gendao/meta"
	"github.com/uptrace/bun"
)

// Store runs every statement in its own autocommit transaction. Nothing is
// ever attached, so persisting a detached instance always merges it.
type Store struct {
	base
}

// NewStore returns an autocommit engine over db.
func NewStore(db *bun.DB, opts ...Option) *Store {
	o := collect(opts)
	s := &Store{base: base{db: db, idb: db, logger: o.logger}}
	s.track = detached{}
	return s
}

func (s *Store) Contains(*meta.Entity, interface{}) bool { return false }

// Merge writes a detached instance. Versioned instances go through a
// guarded update and are inserted only when their row does not exist;
// unversioned ones are upserted.
func (s *Store) Merge(ctx context.Context, e *meta.Entity, entity interface{}) (interface{}, error) {
	if e.VersionAttribute() == nil {
		if err := s.upsert(ctx, e, entity); err != nil {
			return nil, err
		}
		return entity, nil
	}
	updated, err := s.update(ctx, e, entity)
	if err != nil {
		return nil, err
	}
	if updated {
		return entity, nil
	}
	found, err := s.exists(ctx, e, entity)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, conflict(e, entity)
	}
	if err := s.Insert(ctx, e, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// RunInTx runs fn against a unit of work opened on the store's database and
// commits it when fn succeeds. Batches that save while scrolling use it:
// the cursor and the writes share the transaction's connection, which a
// pool limited to one connection would otherwise deadlock on.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx dao.Engine) error) error {
	uow, err := Begin(ctx, s.db, WithLogger(s.logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := uow.Rollback(); err != nil {
			s.logger.Error("Rollback failed", "uow", uow.ID(), "error", err)
		}
	}()
	if err := fn(ctx, uow); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

// detached is the tracker of an engine without a persistence context.
type detached struct{}

func (detached) attach(_ *meta.Entity, v interface{}) (interface{}, error) { return v, nil }

func (detached) sync(context.Context) error { return nil }

func (detached) evict(*meta.Entity) {}
