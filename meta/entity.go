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

	"github.com/tomoncle/gendao/types"
	"github.com/uptrace/bun/schema"
)

// EntityConfig names the identifier, optimistic-lock version and natural
// key fields of an entity. Version and NaturalKey are optional.
type EntityConfig struct {
	ID         Attribute
	Version    Attribute
	NaturalKey Attribute
}

// Key identifies one persistent instance across the identity map.
type Key struct {
	Entity string
	ID     string
}

// Entity is the resolved metadata of one registered entity type.
type Entity struct {
	name    string
	typ     reflect.Type
	table   *schema.Table
	columns map[string]*schema.Field
	config  EntityConfig
}

func newEntity(typ reflect.Type, table *schema.Table, cfg EntityConfig) (*Entity, error) {
	e := &Entity{
		name:    typ.Name(),
		typ:     typ,
		table:   table,
		columns: make(map[string]*schema.Field, len(table.Fields)),
		config:  cfg,
	}
	for _, f := range table.Fields {
		e.columns[f.Name] = f
	}
	if cfg.ID == nil {
		return nil, fmt.Errorf("%w: entity %s has no identifier attribute", types.ErrInvalidArgument, e.name)
	}
	for _, attr := range []Attribute{cfg.ID, cfg.Version, cfg.NaturalKey} {
		if attr == nil {
			continue
		}
		if err := e.Check(attr); err != nil {
			return nil, err
		}
	}
	if cfg.Version != nil {
		switch cfg.Version.DeclaredType().Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		default:
			return nil, fmt.Errorf("%w: version attribute %s must be an integer", types.ErrInvalidArgument, cfg.Version)
		}
	}
	return e, nil
}

// Name is the entity name used in generated query text.
func (e *Entity) Name() string { return e.name }

func (e *Entity) Type() reflect.Type { return e.typ }

// Table is the bun table the entity maps to.
func (e *Entity) Table() *schema.Table { return e.table }

func (e *Entity) Config() EntityConfig { return e.config }

func (e *Entity) IDAttribute() Attribute { return e.config.ID }

func (e *Entity) VersionAttribute() Attribute { return e.config.Version }

func (e *Entity) NaturalKeyAttribute() Attribute { return e.config.NaturalKey }

// Column returns the bun field mapped to name.
func (e *Entity) Column(name string) (*schema.Field, bool) {
	f, ok := e.columns[name]
	return f, ok
}

// Check fails with ErrInvalidArgument unless attr is declared on e.
func (e *Entity) Check(attr Attribute) error {
	if attr == nil {
		return fmt.Errorf("%w: nil attribute on %s", types.ErrInvalidArgument, e.name)
	}
	if attr.Owner() != e.typ {
		return fmt.Errorf("%w: attribute %s does not belong to %s", types.ErrInvalidArgument, attr, e.name)
	}
	if _, ok := e.columns[attr.Name()]; !ok {
		return fmt.Errorf("%w: %s has no attribute %q", types.ErrInvalidArgument, e.name, attr.Name())
	}
	return nil
}

// New allocates a zero instance and returns a pointer to it.
func (e *Entity) New() interface{} {
	return reflect.New(e.typ).Interface()
}

// NewSlice allocates an empty []*E and returns a pointer to it.
func (e *Entity) NewSlice() interface{} {
	return reflect.New(reflect.SliceOf(reflect.PointerTo(e.typ))).Interface()
}

// Value reads attr from the entity pointed to by v.
func (e *Entity) Value(v interface{}, attr Attribute) (interface{}, error) {
	fv, err := e.field(v, attr)
	if err != nil {
		return nil, err
	}
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil, nil
		}
		fv = fv.Elem()
	}
	return fv.Interface(), nil
}

// ID returns the identifier of v, or nil when v was never persisted.
func (e *Entity) ID(v interface{}) (interface{}, error) {
	fv, err := e.field(v, e.config.ID)
	if err != nil {
		return nil, err
	}
	if fv.IsZero() {
		return nil, nil
	}
	if fv.Kind() == reflect.Pointer {
		fv = fv.Elem()
	}
	return fv.Interface(), nil
}

// IsNew reports whether v carries no identifier.
func (e *Entity) IsNew(v interface{}) (bool, error) {
	id, err := e.ID(v)
	if err != nil {
		return false, err
	}
	return id == nil, nil
}

// Key returns the identity-map key of v. It fails for new instances.
func (e *Entity) Key(v interface{}) (Key, error) {
	id, err := e.ID(v)
	if err != nil {
		return Key{}, err
	}
	if id == nil {
		return Key{}, fmt.Errorf("%w: %s instance has no identifier", types.ErrInvalidArgument, e.name)
	}
	return e.KeyOf(id), nil
}

// KeyOf builds the identity-map key of a raw identifier value.
func (e *Entity) KeyOf(id interface{}) Key {
	return Key{Entity: e.name, ID: fmt.Sprint(id)}
}

// Version returns the optimistic-lock counter of v. ok is false when the
// entity has no version attribute.
func (e *Entity) Version(v interface{}) (n int64, ok bool, err error) {
	if e.config.Version == nil {
		return 0, false, nil
	}
	fv, err := e.field(v, e.config.Version)
	if err != nil {
		return 0, false, err
	}
	if fv.CanInt() {
		return fv.Int(), true, nil
	}
	return int64(fv.Uint()), true, nil
}

// SetVersion overwrites the optimistic-lock counter of v.
func (e *Entity) SetVersion(v interface{}, n int64) error {
	if e.config.Version == nil {
		return nil
	}
	fv, err := e.field(v, e.config.Version)
	if err != nil {
		return err
	}
	if fv.CanInt() {
		fv.SetInt(n)
	} else {
		fv.SetUint(uint64(n))
	}
	return nil
}

func (e *Entity) field(v interface{}, attr Attribute) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != e.typ {
		return reflect.Value{}, fmt.Errorf("%w: expected *%s, got %T", types.ErrInvalidArgument, e.name, v)
	}
	f, ok := e.columns[attr.Name()]
	if !ok {
		return reflect.Value{}, fmt.Errorf("%w: %s has no attribute %q", types.ErrInvalidArgument, e.name, attr.Name())
	}
	fv, err := rv.Elem().FieldByIndexErr(f.Index)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %v", types.ErrInvalidArgument, err)
	}
	return fv, nil
}
