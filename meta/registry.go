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

package meta

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/tomoncle/gendao/types"
	"github.com/uptrace/bun/schema"
)

// Registry holds the metadata of every entity type and named operation the
// application uses. Build it once at startup and share it by reference.
type Registry struct {
	mu       sync.RWMutex
	dialect  schema.Dialect
	entities map[reflect.Type]*Entity
	byName   map[string]*Entity
	order    []*Entity
	named    map[string]string
}

// NewRegistry returns an empty registry resolving tables with dialect.
func NewRegistry(dialect schema.Dialect) *Registry {
	return &Registry{
		dialect:  dialect,
		entities: make(map[reflect.Type]*Entity),
		byName:   make(map[string]*Entity),
		named:    make(map[string]string),
	}
}

// Register resolves E against the registry dialect and records cfg for it.
func Register[E any](r *Registry, cfg EntityConfig) (*Entity, error) {
	return r.register(reflect.TypeOf((*E)(nil)).Elem(), cfg)
}

// MustRegister is Register for package initialization; it panics on error.
func MustRegister[E any](r *Registry, cfg EntityConfig) *Entity {
	e, err := Register[E](r, cfg)
	if err != nil {
		panic(err)
	}
	return e
}

func (r *Registry) register(typ reflect.Type, cfg EntityConfig) (*Entity, error) {
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: entity %s must be a struct type", types.ErrInvalidArgument, typ)
	}
	table := r.dialect.Tables().Get(typ)
	e, err := newEntity(typ, table, cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[typ]; ok {
		return nil, fmt.Errorf("%w: entity %s registered twice", types.ErrInvalidArgument, typ)
	}
	if other, ok := r.byName[e.name]; ok {
		return nil, fmt.Errorf("%w: entity name %s used by %s and %s", types.ErrInvalidArgument, e.name, other.typ, typ)
	}
	r.entities[typ] = e
	r.byName[e.name] = e
	r.order = append(r.order, e)
	return e, nil
}

// Lookup returns the metadata registered for typ.
func (r *Registry) Lookup(typ reflect.Type) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entities[typ]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: entity %s is not registered", types.ErrInvalidArgument, typ)
}

// EntityOf returns the metadata registered for E.
func EntityOf[E any](r *Registry) (*Entity, error) {
	return r.Lookup(reflect.TypeOf((*E)(nil)).Elem())
}

// ByName returns the entity registered under its query name.
func (r *Registry) ByName(name string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e, ok
}

// Entities returns the registered entities in registration order.
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Entity, len(r.order))
	copy(result, r.order)
	return result
}

// Models returns a typed nil pointer per entity, in registration order,
// suitable for bun's RegisterModel and CreateTable.
func (r *Registry) Models() []interface{} {
	entities := r.Entities()
	models := make([]interface{}, len(entities))
	for i, e := range entities {
		models[i] = reflect.Zero(reflect.PointerTo(e.typ)).Interface()
	}
	return models
}

// RegisterNamed stores a native statement under name. Parameters are
// written as :param.
func (r *Registry) RegisterNamed(name, statement string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(statement) == "" {
		return fmt.Errorf("%w: named operation needs a name and a statement", types.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.named[name]; ok {
		return fmt.Errorf("%w: named operation %q registered twice", types.ErrInvalidArgument, name)
	}
	r.named[name] = statement
	return nil
}

// Named returns the statement registered under name.
func (r *Registry) Named(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.named[name]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown named operation %q", types.ErrInvalidArgument, name)
}

// NamedOperations lists registered operation names, sorted.
func (r *Registry) NamedOperations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.named))
	for name := range r.named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dialect returns the dialect tables are resolved with.
func (r *Registry) Dialect() schema.Dialect { return r.dialect }
