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
	"fmt"

	"github.com/tomoncle/gendao/database"
	"github.com/tomoncle/gendao/meta"
	"github.com/tomoncle/gendao/paging"
	"github.com/tomoncle/gendao/query"
	"github.com/tomoncle/gendao/types"
)

// DAO is the data access facade of entity type T.
type DAO[T any] struct {
	engine   Engine
	registry *meta.Registry
	entity   *meta.Entity
	logger   database.Logger
}

// Option configures a DAO.
type Option func(*options)

type options struct {
	logger database.Logger
}

// WithLogger replaces the package logger.
func WithLogger(logger database.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New returns the DAO of T. T must be registered in registry.
func New[T any](engine Engine, registry *meta.Registry, opts ...Option) (*DAO[T], error) {
	if engine == nil || registry == nil {
		return nil, fmt.Errorf("%w: dao needs an engine and a registry", types.ErrInvalidArgument)
	}
	e, err := meta.EntityOf[T](registry)
	if err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = database.GetLogger()
	}
	return &DAO[T]{engine: engine, registry: registry, entity: e, logger: o.logger}, nil
}

// Entity returns the metadata of T.
func (d *DAO[T]) Entity() *meta.Entity { return d.entity }

// GetByID returns the instance with the given identifier, or nil.
func (d *DAO[T]) GetByID(ctx context.Context, id interface{}) (*T, error) {
	if query.IsNull(id) {
		return nil, fmt.Errorf("%w: nil identifier for %s", types.ErrInvalidArgument, d.entity.Name())
	}
	v, err := d.engine.Find(ctx, d.entity, id)
	if err != nil || v == nil {
		return nil, err
	}
	return d.typed(v)
}

// GetByIDs returns the instances whose identifier is in ids. No ids match
// nothing.
func (d *DAO[T]) GetByIDs(ctx context.Context, ids []interface{}) ([]*T, error) {
	return d.GetByAttributeIn(ctx, d.entity.IDAttribute(), ids, nil)
}

func (d *DAO[T]) GetByAttribute(ctx context.Context, attr meta.Attribute, value interface{}, order *query.OrderSpec) ([]*T, error) {
	return d.GetByAttributes(ctx, query.Where(attr, value), order)
}

func (d *DAO[T]) GetByAttributes(ctx context.Context, c *query.Constraints, order *query.OrderSpec) ([]*T, error) {
	q, err := query.Select(d.entity, c, order)
	if err != nil {
		return nil, err
	}
	return d.list(ctx, q, Window{})
}

// GetAll returns every instance of T.
func (d *DAO[T]) GetAll(ctx context.Context, order *query.OrderSpec) ([]*T, error) {
	return d.GetByAttributes(ctx, nil, order)
}

// GetSingleResult returns the only instance matching c, nil when none
// does, and ErrAmbiguousResult when several do.
func (d *DAO[T]) GetSingleResult(ctx context.Context, c *query.Constraints, opts ...query.Option) (*T, error) {
	q, err := query.Select(d.entity, c, nil, opts...)
	if err != nil {
		return nil, err
	}
	items, err := d.list(ctx, q, Window{Limit: 2})
	if err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, nil
	case 1:
		return items[0], nil
	default:
		return nil, fmt.Errorf("%w: %s matched more than one %s", types.ErrAmbiguousResult, q, d.entity.Name())
	}
}

// GetFirstResult returns the first instance matching c in the given order.
func (d *DAO[T]) GetFirstResult(ctx context.Context, c *query.Constraints, order *query.OrderSpec) (*T, error) {
	q, err := query.Select(d.entity, c, order)
	if err != nil {
		return nil, err
	}
	items, err := d.list(ctx, q, Window{Limit: 1})
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

// GetByNaturalKey looks T up by its configured natural key.
func (d *DAO[T]) GetByNaturalKey(ctx context.Context, value interface{}) (*T, error) {
	attr := d.entity.NaturalKeyAttribute()
	if attr == nil {
		return nil, fmt.Errorf("%w: %s has no natural key", types.ErrInvalidArgument, d.entity.Name())
	}
	return d.GetSingleResult(ctx, query.Where(attr, value))
}

// GetByAttributeIn returns the instances whose attr is one of values.
func (d *DAO[T]) GetByAttributeIn(ctx context.Context, attr meta.Attribute, values []interface{}, order *query.OrderSpec) ([]*T, error) {
	if len(values) == 0 {
		return make([]*T, 0), nil
	}
	q, err := query.In(d.entity, attr, values, order)
	if err != nil {
		return nil, err
	}
	return d.list(ctx, q, Window{})
}

// GetByAttributeStartsWith returns the instances whose attr starts with
// prefix.
func (d *DAO[T]) GetByAttributeStartsWith(ctx context.Context, attr meta.Attribute, prefix string, order *query.OrderSpec) ([]*T, error) {
	q, err := query.StartsWith(d.entity, attr, prefix, order)
	if err != nil {
		return nil, err
	}
	return d.list(ctx, q, Window{})
}

// GetNamed runs the named select and returns at most maxResults rows; zero
// returns all of them.
func (d *DAO[T]) GetNamed(ctx context.Context, name string, params map[string]interface{}, maxResults int) ([]*T, error) {
	stmt, args, err := d.named(name, params)
	if err != nil {
		return nil, err
	}
	rows, err := d.engine.ListNamed(ctx, d.entity, stmt, args, Window{Limit: maxResults})
	if err != nil {
		return nil, err
	}
	return d.typedList(rows)
}

// Exists reports whether any instance matches c.
func (d *DAO[T]) Exists(ctx context.Context, c *query.Constraints, opts ...query.Option) (bool, error) {
	q, err := query.Exists(d.entity, c, opts...)
	if err != nil {
		return false, err
	}
	d.trace(q)
	return d.engine.Exists(ctx, q)
}

// DeleteAll removes every row of T and returns how many were removed.
func (d *DAO[T]) DeleteAll(ctx context.Context) (int64, error) {
	return d.deleteWhere(ctx, nil)
}

func (d *DAO[T]) DeleteByAttribute(ctx context.Context, attr meta.Attribute, value interface{}) (int64, error) {
	return d.deleteWhere(ctx, query.Where(attr, value))
}

func (d *DAO[T]) deleteWhere(ctx context.Context, c *query.Constraints) (int64, error) {
	q, err := query.Delete(d.entity, c)
	if err != nil {
		return 0, err
	}
	d.trace(q)
	return d.engine.Delete(ctx, q)
}

// DeleteByID loads the instance and removes it. ErrNotFound is returned,
// and nothing is changed, when no row has that identifier.
func (d *DAO[T]) DeleteByID(ctx context.Context, id interface{}) error {
	entity, err := d.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if entity == nil {
		return fmt.Errorf("%w: %s with id %v", types.ErrNotFound, d.entity.Name(), id)
	}
	return d.engine.Remove(ctx, d.entity, entity)
}

// ExecuteBulkUpdate runs the named update or delete statement.
func (d *DAO[T]) ExecuteBulkUpdate(ctx context.Context, name string, params map[string]interface{}) (int64, error) {
	stmt, args, err := d.named(name, params)
	if err != nil {
		return 0, err
	}
	return d.engine.ExecNamed(ctx, stmt, args)
}

// Persist inserts a new instance, leaves an attached one to the unit of
// work and merges a detached one. The attached instance is returned.
func (d *DAO[T]) Persist(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, fmt.Errorf("%w: persist of nil %s", types.ErrInvalidArgument, d.entity.Name())
	}
	isNew, err := d.entity.IsNew(entity)
	if err != nil {
		return nil, err
	}
	switch {
	case isNew:
		if err := d.engine.Insert(ctx, d.entity, entity); err != nil {
			return nil, err
		}
		return entity, nil
	case d.engine.Contains(d.entity, entity):
		return entity, nil
	default:
		merged, err := d.engine.Merge(ctx, d.entity, entity)
		if err != nil {
			return nil, err
		}
		return d.typed(merged)
	}
}

// PersistAll persists each entity in order. It stops at the first failure
// and returns the instances persisted so far.
func (d *DAO[T]) PersistAll(ctx context.Context, entities []*T) ([]*T, error) {
	result := make([]*T, 0, len(entities))
	for _, entity := range entities {
		persisted, err := d.Persist(ctx, entity)
		if err != nil {
			return result, err
		}
		result = append(result, persisted)
	}
	return result, nil
}

// Refresh reloads entity from the store. Refreshing an instance that was
// never persisted is an error.
func (d *DAO[T]) Refresh(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, fmt.Errorf("%w: refresh of nil %s", types.ErrInvalidArgument, d.entity.Name())
	}
	isNew, err := d.entity.IsNew(entity)
	if err != nil {
		return nil, err
	}
	if isNew {
		return nil, fmt.Errorf("%w: refresh of a %s that was never persisted", types.ErrInvalidArgument, d.entity.Name())
	}
	if err := d.engine.Refresh(ctx, d.entity, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// GetPaged returns the 0-based page of the instances matching c. The total
// is counted by scrolling the same query to its end.
func (d *DAO[T]) GetPaged(ctx context.Context, page, pageSize int, c *query.Constraints, order *query.OrderSpec) (*paging.Page[T], error) {
	q, err := query.Select(d.entity, c, order)
	if err != nil {
		return nil, err
	}
	d.trace(q)
	cur, err := d.engine.Scroll(ctx, q)
	if err != nil {
		return nil, err
	}
	status, err := d.status(cur, page, pageSize)
	if err != nil {
		return nil, err
	}
	if status.TotalRows() == 0 {
		return paging.Empty[T](status), nil
	}
	items, err := d.list(ctx, q, Window{Offset: status.Offset(), Limit: pageSize})
	if err != nil {
		return nil, err
	}
	return &paging.Page[T]{Items: items, Status: status}, nil
}

// GetPagedNamed pages through the rows of a named select.
func (d *DAO[T]) GetPagedNamed(ctx context.Context, name string, params map[string]interface{}, page, pageSize int) (*paging.Page[T], error) {
	stmt, args, err := d.named(name, params)
	if err != nil {
		return nil, err
	}
	cur, err := d.engine.ScrollNamed(ctx, d.entity, stmt, args)
	if err != nil {
		return nil, err
	}
	status, err := d.status(cur, page, pageSize)
	if err != nil {
		return nil, err
	}
	if status.TotalRows() == 0 {
		return paging.Empty[T](status), nil
	}
	rows, err := d.engine.ListNamed(ctx, d.entity, stmt, args, Window{Offset: status.Offset(), Limit: pageSize})
	if err != nil {
		return nil, err
	}
	items, err := d.typedList(rows)
	if err != nil {
		return nil, err
	}
	return &paging.Page[T]{Items: items, Status: status}, nil
}

// status counts the rows of cur, closes it and computes the page window.
func (d *DAO[T]) status(cur Cursor, page, pageSize int) (*paging.Status, error) {
	total, err := countRows(cur)
	if err != nil {
		return nil, err
	}
	status, err := paging.NewStatus(page, pageSize, total)
	if err != nil {
		return nil, err
	}
	if status.Clamped() {
		d.logger.Warn("Requested page out of range, serving first page",
			"entity", d.entity.Name(), "page", page, "last_page", status.LastPageIndex())
	}
	return status, nil
}

func countRows(cur Cursor) (n int, err error) {
	defer func() {
		if cerr := cur.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return cur.Last()
}

func (d *DAO[T]) named(name string, params map[string]interface{}) (string, []interface{}, error) {
	stmt, err := d.registry.Named(name)
	if err != nil {
		return "", nil, err
	}
	d.logger.Debug("Named operation", "name", name, "statement", stmt)
	return query.Positional(stmt, params)
}

func (d *DAO[T]) list(ctx context.Context, q *query.Query, w Window) ([]*T, error) {
	d.trace(q)
	rows, err := d.engine.List(ctx, q, w)
	if err != nil {
		return nil, err
	}
	return d.typedList(rows)
}

func (d *DAO[T]) trace(q *query.Query) {
	d.logger.Debug("Entity query", "entity", d.entity.Name(), "query", q.String())
}

func (d *DAO[T]) typed(v interface{}) (*T, error) {
	t, ok := v.(*T)
	if !ok {
		return nil, fmt.Errorf("%w: engine returned %T for %s", types.ErrBackendFailure, v, d.entity.Name())
	}
	return t, nil
}

func (d *DAO[T]) typedList(rows []interface{}) ([]*T, error) {
	result := make([]*T, 0, len(rows))
	for _, row := range rows {
		t, err := d.typed(row)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, nil
}

// IDs converts typed identifiers for GetByIDs.
func IDs[K any](ids []K) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
