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
	"github.com/tomoncle/gendao/database"
	"github.com/tomoncle/gendao/meta"
	"github.com/uptrace/bun"
)

// Engine is a dao.Engine executing through Bun. Store and UnitOfWork
// implement it.
type Engine interface {
	dao.Engine
	// IDB is the handle statements run on: the database or the open
	// transaction.
	IDB() bun.IDB
}

var (
	_ Engine = (*Store)(nil)
	_ Engine = (*UnitOfWork)(nil)
)

// tracker is the persistence-context side of an engine.
type tracker interface {
	// attach registers a loaded instance and returns the instance callers
	// must use in its place.
	attach(e *meta.Entity, v interface{}) (interface{}, error)
	// sync writes pending changes so the next statement sees them.
	sync(ctx context.Context) error
	// evict forgets the instances of e, or every instance when e is nil.
	evict(e *meta.Entity)
}

// Option configures a Store or a UnitOfWork.
type Option func(*options)

type options struct {
	logger database.Logger
}

func WithLogger(logger database.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func collect(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = database.GetLogger()
	}
	return o
}
