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

	"github.com/tomoncle/gendao/database"
	"github.com/tomoncle/gendao/meta"
)

// cursor streams entity rows from an open *sql.Rows.
type cursor struct {
	ctx    context.Context
	b      *base
	e      *meta.Entity
	rows   *sql.Rows
	seen   int
	closed bool
}

func newCursor(ctx context.Context, b *base, e *meta.Entity, rows *sql.Rows) *cursor {
	return &cursor{ctx: ctx, b: b, e: e, rows: rows}
}

func (c *cursor) Next() bool {
	if c.closed || !c.rows.Next() {
		return false
	}
	c.seen++
	return true
}

func (c *cursor) Entity() (interface{}, error) {
	v := c.e.New()
	if err := c.b.db.ScanRow(c.ctx, c.rows, v); err != nil {
		return nil, database.Wrap("scan "+c.e.Name(), err)
	}
	return c.b.track.attach(c.e, v)
}

// Last drains the remaining rows without decoding them.
func (c *cursor) Last() (int, error) {
	for c.Next() {
	}
	return c.seen, c.Err()
}

func (c *cursor) Err() error {
	return database.Wrap("cursor "+c.e.Name(), c.rows.Err())
}

func (c *cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return database.Wrap("close cursor", c.rows.Close())
}
