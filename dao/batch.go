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

	"github.com/tomoncle/gendao/query"
)

// Processor transforms one row of a batch.
type Processor[T any] func(ctx context.Context, entity *T) error

// ProcessAll calls fn for every instance of T.
func (d *DAO[T]) ProcessAll(ctx context.Context, fn Processor[T]) error {
	return d.Process(ctx, nil, nil, fn)
}

// ProcessAllSave calls fn for every instance of T and persists each one
// after fn returns.
func (d *DAO[T]) ProcessAllSave(ctx context.Context, fn Processor[T]) error {
	return d.ProcessSave(ctx, nil, nil, fn)
}

// Process calls fn for every instance matching c, in order.
func (d *DAO[T]) Process(ctx context.Context, c *query.Constraints, order *query.OrderSpec, fn Processor[T]) error {
	return d.scroll(ctx, c, order, fn, false)
}

// ProcessSave is Process followed by Persist of each row. On an engine that
// implements TxRunner the whole batch is one transaction: an error from fn
// rolls back every row already processed.
func (d *DAO[T]) ProcessSave(ctx context.Context, c *query.Constraints, order *query.OrderSpec, fn Processor[T]) error {
	return d.scroll(ctx, c, order, fn, true)
}

// ProcessNamed calls fn for every row of a named select.
func (d *DAO[T]) ProcessNamed(ctx context.Context, name string, params map[string]interface{}, fn Processor[T]) error {
	return d.scrollNamed(ctx, name, params, fn, false)
}

// ProcessNamedSave is ProcessNamed followed by Persist of each row.
func (d *DAO[T]) ProcessNamedSave(ctx context.Context, name string, params map[string]interface{}, fn Processor[T]) error {
	return d.scrollNamed(ctx, name, params, fn, true)
}

func (d *DAO[T]) scroll(ctx context.Context, c *query.Constraints, order *query.OrderSpec, fn Processor[T], save bool) error {
	if tx, ok := d.engine.(TxRunner); ok && save {
		return tx.RunInTx(ctx, func(ctx context.Context, e Engine) error {
			return d.on(e).scroll(ctx, c, order, fn, save)
		})
	}
	q, err := query.Select(d.entity, c, order)
	if err != nil {
		return err
	}
	d.trace(q)
	cur, err := d.engine.Scroll(ctx, q)
	if err != nil {
		return err
	}
	return d.drive(ctx, cur, fn, save)
}

func (d *DAO[T]) scrollNamed(ctx context.Context, name string, params map[string]interface{}, fn Processor[T], save bool) error {
	if tx, ok := d.engine.(TxRunner); ok && save {
		return tx.RunInTx(ctx, func(ctx context.Context, e Engine) error {
			return d.on(e).scrollNamed(ctx, name, params, fn, save)
		})
	}
	stmt, args, err := d.named(name, params)
	if err != nil {
		return err
	}
	cur, err := d.engine.ScrollNamed(ctx, d.entity, stmt, args)
	if err != nil {
		return err
	}
	return d.drive(ctx, cur, fn, save)
}

// on returns a copy of d bound to engine e.
func (d *DAO[T]) on(e Engine) *DAO[T] {
	bound := *d
	bound.engine = e
	return &bound
}

// drive feeds the rows of cur to fn one at a time. The cursor is closed on
// every return, including a panic raised by fn.
func (d *DAO[T]) drive(ctx context.Context, cur Cursor, fn Processor[T], save bool) (err error) {
	processed := 0
	defer func() {
		if cerr := cur.Close(); cerr != nil && err == nil {
			err = cerr
		}
		d.logger.Debug("Batch finished", "entity", d.entity.Name(), "rows", processed, "save", save)
	}()

	for cur.Next() {
		raw, err := cur.Entity()
		if err != nil {
			return err
		}
		entity, err := d.typed(raw)
		if err != nil {
			return err
		}
		if err := fn(ctx, entity); err != nil {
			return err
		}
		if save {
			if _, err := d.Persist(ctx, entity); err != nil {
				return err
			}
		}
		processed++
	}
	return cur.Err()
}
