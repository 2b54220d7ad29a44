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

	"github.com/tomoncle/gendao/meta"
	"github.com/tomoncle/gendao/query"
)

// Window restricts a result to Limit rows starting at Offset. A zero Limit
// means no limit.
type Window struct {
	Offset int
	Limit  int
}

// Engine executes built queries against a backing store on behalf of a DAO.
// Entities travel as pointers to the registered struct type. An Engine is
// bound to one unit of work and is not safe for concurrent use.
type Engine interface {
	// Find loads the instance identified by id, or returns nil.
	Find(ctx context.Context, e *meta.Entity, id interface{}) (interface{}, error)
	List(ctx context.Context, q *query.Query, w Window) ([]interface{}, error)
	Exists(ctx context.Context, q *query.Query) (bool, error)
	// Project scans the projected columns of q into one slice per column.
	Project(ctx context.Context, q *query.Query, w Window, dest ...interface{}) error
	// Delete runs a delete query and returns the affected row count.
	Delete(ctx context.Context, q *query.Query) (int64, error)
	Scroll(ctx context.Context, q *query.Query) (Cursor, error)

	// ListNamed, ScrollNamed and ExecNamed run native statements with
	// positional arguments.
	ListNamed(ctx context.Context, e *meta.Entity, statement string, args []interface{}, w Window) ([]interface{}, error)
	ScrollNamed(ctx context.Context, e *meta.Entity, statement string, args []interface{}) (Cursor, error)
	ExecNamed(ctx context.Context, statement string, args []interface{}) (int64, error)

	// Contains reports whether entity is attached to the unit of work.
	Contains(e *meta.Entity, entity interface{}) bool
	Insert(ctx context.Context, e *meta.Entity, entity interface{}) error
	// Merge copies a detached instance into the unit of work and returns
	// the attached instance.
	Merge(ctx context.Context, e *meta.Entity, entity interface{}) (interface{}, error)
	Remove(ctx context.Context, e *meta.Entity, entity interface{}) error
	Refresh(ctx context.Context, e *meta.Entity, entity interface{}) error
}

// Cursor is a forward-only, single-pass iterator over entity rows. It must
// be closed on every path.
type Cursor interface {
	Next() bool
	// Entity decodes the current row.
	Entity() (interface{}, error)
	// Last advances to the end and returns the number of rows the cursor
	// produced in total.
	Last() (int, error)
	Err() error
	Close() error
}

// TxRunner is implemented by autocommit engines that can open a unit of
// work. Save-mode batches run inside RunInTx so the open cursor and the
// writes it triggers share one connection and commit together.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Engine) error) error
}
