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
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tomoncle/gendao/types"
	"github.com/tomoncle/gendao/utils"
)

var errNotConnected = errors.New("database not connected")

// envOverride applies one DB_* environment variable to a connection config.
type envOverride struct {
	key   string
	apply func(cfg *ConnectionConfig, v string) error
}

var envOverrides = []envOverride{
	{"DB_TYPE", text(func(c *ConnectionConfig) *string { return &c.Type })},
	{"DB_HOST", text(func(c *ConnectionConfig) *string { return &c.Host })},
	{"DB_PORT", number(func(c *ConnectionConfig) *int { return &c.Port })},
	{"DB_USERNAME", text(func(c *ConnectionConfig) *string { return &c.Username })},
	{"DB_PASSWORD", text(func(c *ConnectionConfig) *string { return &c.Password })},
	{"DB_NAME", text(func(c *ConnectionConfig) *string { return &c.DBName })},
	{"DB_SSLMODE", text(func(c *ConnectionConfig) *string { return &c.SSLMode })},
	{"DB_MAX_IDLE_CONNS", number(func(c *ConnectionConfig) *int { return &c.MaxIdleConns })},
	{"DB_MAX_OPEN_CONNS", number(func(c *ConnectionConfig) *int { return &c.MaxOpenConns })},
	{"DB_CONN_MAX_LIFETIME", duration(func(c *ConnectionConfig) *time.Duration { return &c.ConnMaxLifetime })},
	{"DB_CONNECT_TIMEOUT", duration(func(c *ConnectionConfig) *time.Duration { return &c.ConnectTimeout })},
	{"DB_CONNECT_RETRIES", number(func(c *ConnectionConfig) *int { return &c.ConnectRetries })},
	{"DB_CONNECT_RETRY_INTERVAL", duration(func(c *ConnectionConfig) *time.Duration { return &c.ConnectRetryInterval })},
	{"DB_ENABLE_QUERY_LOG", flag(func(c *ConnectionConfig) *bool { return &c.EnableQueryLog })},
	{"DB_SLOW_QUERY_TIME", duration(func(c *ConnectionConfig) *time.Duration { return &c.SlowQueryTime })},
}

func text(field func(*ConnectionConfig) *string) func(*ConnectionConfig, string) error {
	return func(c *ConnectionConfig, v string) error {
		*field(c) = v
		return nil
	}
}

func number(field func(*ConnectionConfig) *int) func(*ConnectionConfig, string) error {
	return func(c *ConnectionConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

// duration accepts a Go duration such as 250ms, or a bare number of seconds.
func duration(field func(*ConnectionConfig) *time.Duration) func(*ConnectionConfig, string) error {
	return func(c *ConnectionConfig, v string) error {
		if n, err := strconv.Atoi(v); err == nil {
			*field(c) = time.Duration(n) * time.Second
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func flag(field func(*ConnectionConfig) *bool) func(*ConnectionConfig, string) error {
	return func(c *ConnectionConfig, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

// OverrideFromEnv overrides configuration values from DB_* environment
// variables. A value that does not parse is logged and ignored.
func OverrideFromEnv(cfg *ConnectionConfig) {
	for _, o := range envOverrides {
		v := utils.EnvDefaultString(o.key, "")
		if v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			GetLogger().Warn("Ignoring environment override", "key", o.key, "value", v, "error", err)
		}
	}
}

// NewManager applies the environment overrides to cfg, validates it and
// returns a manager that has not connected yet. A nil logger means the
// package logger.
func NewManager(cfg *ConnectionConfig, logger Logger) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: database configuration cannot be empty", types.ErrInvalidArgument)
	}
	OverrideFromEnv(cfg)

	d, ok := lookupDialer(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported database type: %s, supported types: %v", types.ErrInvalidArgument, cfg.Type, SupportedTypes())
	}
	if d.network && cfg.Host == "" {
		return nil, fmt.Errorf("%w: %s needs a host", types.ErrInvalidArgument, cfg.Type)
	}
	if cfg.ConnectRetries < 0 || cfg.ConnectRetryInterval < 0 {
		return nil, fmt.Errorf("%w: connect retries and their interval cannot be negative", types.ErrInvalidArgument)
	}
	if logger == nil {
		logger = GetLogger()
	}
	return &manager{config: cfg, dialer: d, logger: logger}, nil
}
