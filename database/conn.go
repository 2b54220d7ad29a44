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

package database

import (
	"context"
	"fmt"

	"github.com/tomoncle/gendao/meta"
	"github.com/tomoncle/gendao/types"
	"github.com/tomoncle/gendao/utils"
	"github.com/uptrace/bun"
)

// Connection is an open database together with its pool manager.
type Connection struct {
	manager AbstractDatabaseManager
	logger  Logger
}

// Open connects with cfg, registers the models of registry and, when the
// schema config asks for it, creates their tables. The caller owns the
// returned connection and must Close it.
func Open(ctx context.Context, cfg *Config, registry *meta.Registry) (*Connection, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: database configuration cannot be empty", types.ErrInvalidArgument)
	}
	if cfg.Log.Level != "" {
		utils.ConfigureLogLevel(cfg.Log.Level)
	}
	if cfg.Log.Format != "" {
		utils.ConfigureConsoleLogFormat(cfg.Log.Format)
	}

	logger := GetLogger()
	m, err := NewManager(&cfg.Connection, logger)
	if err != nil {
		return nil, err
	}
	if err := m.Connect(ctx); err != nil {
		return nil, err
	}
	conn := &Connection{manager: m, logger: logger}
	if registry == nil {
		return conn, nil
	}

	db := conn.DB()
	if got, want := db.Dialect().Name(), registry.Dialect().Name(); got != want {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: registry built for %s, connection speaks %s", types.ErrInvalidArgument, want, got)
	}
	db.RegisterModel(registry.Models()...)

	if cfg.Schema.MigrateOnStartup {
		if err := NewSchemaManager(db, registry, logger).Migrate(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// DB returns the bun handle, or nil once the connection is closed.
func (c *Connection) DB() *bun.DB {
	return c.manager.GetDB()
}

// Ping checks that the database answers.
func (c *Connection) Ping(ctx context.Context) error {
	return c.manager.Ping(ctx)
}

// Health pings the database and reports the pool state.
func (c *Connection) Health(ctx context.Context) *HealthStatus {
	return c.manager.HealthCheck(ctx)
}

// Stats returns the pool statistics.
func (c *Connection) Stats() *DBStats {
	return c.manager.GetStats()
}

// Close closes the pool. Closing twice does nothing.
func (c *Connection) Close() error {
	return c.manager.Disconnect()
}
