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

package gendao

import (
	"context"
	"sync"

	"github.com/tomoncle/gendao/dao"
	"github.com/tomoncle/gendao/database"
	"github.com/tomoncle/gendao/meta"
	"github.com/tomoncle/gendao/paging"
	"github.com/tomoncle/gendao/query"
	"github.com/tomoncle/gendao/repository"
	"github.com/uptrace/bun"
)

type Service[T any] interface {
	// Get returns the entity with the given identifier, nil when absent.
	Get(ctx context.Context, id any) (*T, error)

	// All returns every entity.
	All(ctx context.Context) ([]*T, error)

	// List returns the entities matching c in the given order.
	List(ctx context.Context, c *query.Constraints, order *query.OrderSpec) ([]*T, error)

	// Page returns the 0-based page of the entities matching c.
	Page(ctx context.Context, page, pageSize int, c *query.Constraints, order *query.OrderSpec) (*paging.Page[T], error)

	// Save persists the entities in one unit of work and returns the
	// attached instances.
	Save(ctx context.Context, model ...*T) ([]*T, error)

	// Delete removes the entity with the given identifier.
	Delete(ctx context.Context, id any) error

	// InTx runs fn against a DAO bound to a new unit of work. The work is
	// committed when fn returns nil and rolled back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, d *dao.DAO[T]) error) error

	// DAO returns the autocommit DAO used by the read methods.
	DAO() (*dao.DAO[T], error)
}

type baseServiceImpl[T any] struct {
	db       *bun.DB
	registry *meta.Registry
	opts     []dao.Option
	logger   database.Logger

	once sync.Once
	dao  *dao.DAO[T]
	err  error
}

// NewService returns a default Service implementation on db. T must be
// registered in registry.
func NewService[T any](db *bun.DB, registry *meta.Registry, opts ...dao.Option) Service[T] {
	return newBaseServiceImpl[T](db, registry, opts...)
}

func newBaseServiceImpl[T any](db *bun.DB, registry *meta.Registry, opts ...dao.Option) *baseServiceImpl[T] {
	return &baseServiceImpl[T]{db: db, registry: registry, opts: opts, logger: database.GetLogger()}
}

func (s *baseServiceImpl[T]) DAO() (*dao.DAO[T], error) {
	s.once.Do(func() { s.dao, s.err = dao.New[T](repository.NewStore(s.db), s.registry, s.opts...) })
	return s.dao, s.err
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	d, err := s.DAO()
	if err != nil {
		return nil, err
	}
	return d.GetByID(ctx, id)
}

func (s *baseServiceImpl[T]) All(ctx context.Context) ([]*T, error) {
	d, err := s.DAO()
	if err != nil {
		return nil, err
	}
	return d.GetAll(ctx, nil)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, c *query.Constraints, order *query.OrderSpec) ([]*T, error) {
	d, err := s.DAO()
	if err != nil {
		return nil, err
	}
	return d.GetByAttributes(ctx, c, order)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page, pageSize int, c *query.Constraints, order *query.OrderSpec) (*paging.Page[T], error) {
	d, err := s.DAO()
	if err != nil {
		return nil, err
	}
	return d.GetPaged(ctx, page, pageSize, c, order)
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model ...*T) ([]*T, error) {
	var saved []*T
	err := s.InTx(ctx, func(ctx context.Context, d *dao.DAO[T]) error {
		var err error
		saved, err = d.PersistAll(ctx, model)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) error {
	return s.InTx(ctx, func(ctx context.Context, d *dao.DAO[T]) error {
		return d.DeleteByID(ctx, id)
	})
}

func (s *baseServiceImpl[T]) InTx(ctx context.Context, fn func(ctx context.Context, d *dao.DAO[T]) error) error {
	uow, err := repository.Begin(ctx, s.db, repository.WithLogger(s.logger))
	if err != nil {
		return err
	}
	defer func() {
		if rbErr := uow.Rollback(); rbErr != nil {
			s.logger.Error("Rollback failed", "uow", uow.ID(), "error", rbErr)
		}
	}()

	d, err := dao.New[T](uow, s.registry, s.opts...)
	if err != nil {
		return err
	}
	if err := fn(ctx, d); err != nil {
		return err
	}
	return uow.Commit(ctx)
}
