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

	"github.com/tomoncle/gendao/meta"
	"github.com/tomoncle/gendao/query"
	"github.com/tomoncle/gendao/types"
)

// GetAttribute returns ret of the single instance whose search attribute
// equals value. ok is false when no instance matches.
func GetAttribute[T, V any](ctx context.Context, d *DAO[T], ret meta.Attr[T, V], search meta.Attribute, value interface{}) (v V, ok bool, err error) {
	q, err := query.Project(d.entity, []meta.Attribute{ret}, query.Where(search, value), nil)
	if err != nil {
		return v, false, err
	}
	d.trace(q)
	var values []V
	if err := d.engine.Project(ctx, q, Window{Limit: 2}, &values); err != nil {
		return v, false, err
	}
	switch len(values) {
	case 0:
		return v, false, nil
	case 1:
		return values[0], true, nil
	default:
		return v, false, fmt.Errorf("%w: %s matched more than one row", types.ErrAmbiguousResult, q)
	}
}

// GetAttributes returns ret of every instance whose search attribute equals
// value.
func GetAttributes[T, V any](ctx context.Context, d *DAO[T], ret meta.Attr[T, V], search meta.Attribute, value interface{}, order *query.OrderSpec) ([]V, error) {
	return project(ctx, d, ret, query.Where(search, value), order)
}

// ListAttribute returns ret of every instance of T.
func ListAttribute[T, V any](ctx context.Context, d *DAO[T], ret meta.Attr[T, V], order *query.OrderSpec) ([]V, error) {
	return project(ctx, d, ret, nil, order)
}

func project[T, V any](ctx context.Context, d *DAO[T], ret meta.Attr[T, V], c *query.Constraints, order *query.OrderSpec) ([]V, error) {
	q, err := query.Project(d.entity, []meta.Attribute{ret}, c, order)
	if err != nil {
		return nil, err
	}
	d.trace(q)
	values := make([]V, 0)
	if err := d.engine.Project(ctx, q, Window{}, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// GetAttributesAsMap maps key to value over every instance of T. When two
// rows share a key the later row wins.
func GetAttributesAsMap[T any, K comparable, V any](ctx context.Context, d *DAO[T], key meta.Attr[T, K], value meta.Attr[T, V]) (map[K]V, error) {
	q, err := query.Project(d.entity, []meta.Attribute{key, value}, nil, nil)
	if err != nil {
		return nil, err
	}
	d.trace(q)
	var (
		keys   []K
		values []V
	)
	if err := d.engine.Project(ctx, q, Window{}, &keys, &values); err != nil {
		return nil, err
	}
	if len(keys) != len(values) {
		return nil, fmt.Errorf("%w: projection returned %d keys and %d values", types.ErrBackendFailure, len(keys), len(values))
	}
	result := make(map[K]V, len(keys))
	for i, k := range keys {
		result[k] = values[i]
	}
	return result, nil
}
