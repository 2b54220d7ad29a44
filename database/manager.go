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
	"database/sql"
	"net"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

// dialer opens one kind of database: the database/sql driver, the DSN a
// config turns into and the dialect bun speaks over the connection.
type dialer struct {
	driver  string
	dsn     func(cfg *ConnectionConfig) string
	dialect func() schema.Dialect
	network bool
}

var dialers = map[string]dialer{
	"mysql": {
		driver:  "mysql",
		dsn:     mysqlDSN,
		dialect: func() schema.Dialect { return mysqldialect.New() },
		network: true,
	},
	"postgres": {
		driver:  "postgres",
		dsn:     postgresDSN,
		dialect: func() schema.Dialect { return pgdialect.New() },
		network: true,
	},
	"sqlite": {
		driver:  sqliteshim.ShimName,
		dsn:     sqliteDSN,
		dialect: func() schema.Dialect { return sqlitedialect.New() },
	},
}

var aliases = map[string]string{"postgresql": "postgres", "sqlite3": "sqlite"}

func lookupDialer(typ string) (dialer, bool) {
	if canonical, ok := aliases[typ]; ok {
		typ = canonical
	}
	d, ok := dialers[typ]
	return d, ok
}

// SupportedTypes lists the accepted values of ConnectionConfig.Type.
func SupportedTypes() []string {
	out := make([]string, 0, len(dialers)+len(aliases))
	for name := range dialers {
		out = append(out, name)
	}
	for name := range aliases {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func hostPort(cfg *ConnectionConfig) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

func mysqlDSN(cfg *ConnectionConfig) string {
	c := mysql.NewConfig()
	c.User = cfg.Username
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = hostPort(cfg)
	c.DBName = cfg.DBName
	c.ParseTime = true
	c.Loc = time.Local
	c.Timeout = cfg.ConnectTimeout
	c.ReadTimeout = cfg.ReadTimeout
	c.WriteTimeout = cfg.WriteTimeout
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

func postgresDSN(cfg *ConnectionConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout/time.Second)))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     hostPort(cfg),
		Path:     "/" + cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func inMemory(cfg *ConnectionConfig) bool {
	return cfg.DBName == "" || cfg.DBName == ":memory:"
}

func sqliteDSN(cfg *ConnectionConfig) string {
	if inMemory(cfg) {
		return "file::memory:?cache=shared"
	}
	return cfg.DBName + ".db"
}

// manager owns the pool of one configured database. It keeps no
// background goroutines: database/sql re-dials broken connections on its
// own, and every Store and UnitOfWork holds the *bun.DB it was given, so
// the handle is never swapped.
type manager struct {
	config *ConnectionConfig
	dialer dialer
	logger Logger

	mu sync.RWMutex
	db *bun.DB
}

// Connect opens the pool and waits until the database answers a ping.
// Connecting an open manager does nothing.
func (m *manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		return nil
	}
	if m.config.ConnectTimeout <= 0 {
		m.config.ConnectTimeout = 30 * time.Second
	}

	sqldb, err := sql.Open(m.dialer.driver, m.dialer.dsn(m.config))
	if err != nil {
		return Wrap("open "+m.config.Type, err)
	}
	m.tune(sqldb)
	db := bun.NewDB(sqldb, m.dialer.dialect())
	if err := m.ready(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	if m.config.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if m.config.SlowQueryTime > 0 {
		db.AddQueryHook(NewSlowQueryHook(m.config.SlowQueryTime, m.logger))
	}
	m.db = db
	m.logger.Info("Database connected", "type", m.config.Type, "dialect", db.Dialect().Name(), "host", m.config.Host)
	return nil
}

// tune applies the pool limits. An in-memory SQLite database lives as long
// as its one connection.
func (m *manager) tune(sqldb *sql.DB) {
	if m.dialer.driver == sqliteshim.ShimName && inMemory(m.config) {
		m.config.MaxOpenConns = 1
		m.config.ConnMaxLifetime = 0
		m.config.ConnMaxIdleTime = 0
	}
	sqldb.SetMaxIdleConns(m.config.MaxIdleConns)
	sqldb.SetMaxOpenConns(m.config.MaxOpenConns)
	sqldb.SetConnMaxLifetime(m.config.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(m.config.ConnMaxIdleTime)
}

// ready pings db until it answers. A database that is still starting gets
// ConnectRetries more attempts, ConnectRetryInterval apart.
func (m *manager) ready(ctx context.Context, db *bun.DB) error {
	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt > m.config.ConnectRetries {
			return Wrap("connect "+m.config.Type, err)
		}
		m.logger.Warn("Database not ready", "type", m.config.Type, "attempt", attempt, "retry_in", m.config.ConnectRetryInterval, "error", err)

		timer := time.NewTimer(m.config.ConnectRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Wrap("connect "+m.config.Type, ctx.Err())
		case <-timer.C:
		}
	}
}

func (m *manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	if err != nil {
		m.logger.Error("Failed to close database connection", "error", err)
		return Wrap("disconnect", err)
	}
	m.logger.Info("Database connection closed")
	return nil
}

func (m *manager) Ping(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return Wrap("ping", errNotConnected)
	}
	return Wrap("ping", db.PingContext(ctx))
}

func (m *manager) GetDB() *bun.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

// HealthCheck pings with a five second budget and reports the pool state.
func (m *manager) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}
	db := m.GetDB()
	if db == nil {
		status.LastError = errNotConnected.Error()
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := db.PingContext(ctx)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.LastError = err.Error()
	} else {
		status.Healthy = true
		status.Connected = true
	}

	stats := db.DB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections
	return status
}

func (m *manager) GetStats() *DBStats {
	db := m.GetDB()
	if db == nil {
		return &DBStats{}
	}
	stats := db.DB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (m *manager) SetLogger(logger Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}
