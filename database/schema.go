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
	"os"
	"sort"
	"time"

	"github.com/tomoncle/gendao/meta"
	"github.com/uptrace/bun"
)

// Migration is an applied migration record.
type Migration struct {
	bun.BaseModel `bun:"table:gendao_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

// SchemaManager creates the tables of registered entities and runs further
// migrations, each at most once.
type SchemaManager struct {
	db       *bun.DB
	registry *meta.Registry
	logger   Logger
	extra    []MigrationItem
}

func NewSchemaManager(db *bun.DB, registry *meta.Registry, logger Logger) *SchemaManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &SchemaManager{db: db, registry: registry, logger: logger}
}

// Add queues a migration to run after the entity tables are created.
func (sm *SchemaManager) Add(item MigrationItem) *SchemaManager {
	sm.extra = append(sm.extra, item)
	return sm
}

// Migrate runs the pending migrations in version order.
func (sm *SchemaManager) Migrate(ctx context.Context) error {
	if _, ok := os.LookupEnv("GENDAO_SQL_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}
	if sm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := sm.db.NewCreateTable().Model((*Migration)(nil)).IfNotExists().Exec(ctx); err != nil {
		return Wrap("create migrations table", err)
	}

	migrations := sm.migrations()
	sort.SliceStable(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	for _, m := range migrations {
		if err := sm.run(ctx, m); err != nil {
			return Wrap("migration "+m.Version, err)
		}
	}
	sm.logger.Info("Database migrations completed!", "count", len(migrations))
	return nil
}

func (sm *SchemaManager) migrations() []MigrationItem {
	items := []MigrationItem{{
		Version:     "001",
		Name:        "create_entity_tables",
		Description: "Create the tables of registered entities",
		Up:          sm.CreateTables,
	}}
	return append(items, sm.extra...)
}

func (sm *SchemaManager) run(ctx context.Context, m MigrationItem) error {
	applied, err := sm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", m.Version).
		Exists(ctx)
	if err != nil || applied {
		return err
	}

	return sm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := m.Up(ctx, tx); err != nil {
			return err
		}
		record := &Migration{
			Version:     m.Version,
			Name:        m.Name,
			AppliedAt:   time.Now(),
			Description: m.Description,
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}
		sm.logger.Info("Migration executed successfully", "version", m.Version, "name", m.Name)
		return nil
	})
}

// CreateTables creates a table for every registered entity that lacks one.
func (sm *SchemaManager) CreateTables(ctx context.Context, db bun.IDB) error {
	for _, model := range sm.registry.Models() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %T: %w", model, err)
		}
	}
	return nil
}

// DropTables drops the tables of every registered entity, in reverse
// registration order.
func (sm *SchemaManager) DropTables(ctx context.Context) error {
	models := sm.registry.Models()
	for i := len(models) - 1; i >= 0; i-- {
		if _, err := sm.db.NewDropTable().Model(models[i]).IfExists().Exec(ctx); err != nil {
			return Wrap(fmt.Sprintf("drop table %T", models[i]), err)
		}
	}
	_, err := sm.db.NewDropTable().Model((*Migration)(nil)).IfExists().Exec(ctx)
	return Wrap("drop migrations table", err)
}
