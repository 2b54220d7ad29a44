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

package query

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/tomoncle/gendao/meta"
	"github.com/tomoncle/gendao/types"
)

// Kind is the statement form of a built Query.
type Kind int

const (
	KindSelect Kind = iota
	KindExists
	KindDelete
	KindProject
)

// Operator is the comparison a Predicate applies.
type Operator int

const (
	OpEqual Operator = iota
	OpIsNull
	OpIn
	OpLike
)

// Transform is applied to both sides of an equality.
type Transform int

const (
	TransformNone Transform = iota
	// TransformLower folds character data to lower case.
	TransformLower
	// TransformTrunc drops the time of day from temporal data.
	TransformTrunc
)

// Predicate is one term of the WHERE clause. Param is empty for IS NULL.
type Predicate struct {
	Attribute meta.Attribute
	Operator  Operator
	Transform Transform
	Param     string
	Value     interface{}
}

// Query is a built statement. It is rendered to text by String and
// translated by execution engines from its structured fields.
type Query struct {
	Kind       Kind
	Entity     *meta.Entity
	Projection []meta.Attribute
	Where      []Predicate
	Order      []OrderTerm
	NullsFirst bool
	Bindings   Bindings
}

type options struct {
	nullsFirst   bool
	foldCase     bool
	truncateTime bool
}

// Option tunes how a query is built.
type Option func(*options)

// WithNullsFirst appends NULLS FIRST to every ORDER BY term.
func WithNullsFirst() Option { return func(o *options) { o.nullsFirst = true } }

// WithFoldCase compares character attributes through LOWER on both sides.
func WithFoldCase() Option { return func(o *options) { o.foldCase = true } }

// WithTruncateTime compares temporal attributes on their date only.
func WithTruncateTime() Option { return func(o *options) { o.truncateTime = true } }

// WithRelaxedEquality enables both WithFoldCase and WithTruncateTime; the
// transform used for each attribute follows its declared type.
func WithRelaxedEquality() Option {
	return func(o *options) {
		o.foldCase = true
		o.truncateTime = true
	}
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Select builds FROM <Type> e [WHERE ...] [ORDER BY ...].
func Select(e *meta.Entity, c *Constraints, order *OrderSpec, opts ...Option) (*Query, error) {
	return build(KindSelect, e, nil, c, order, collect(opts))
}

// Exists builds a boolean COUNT query over the constraints. Ordering is
// irrelevant to existence and is not accepted.
func Exists(e *meta.Entity, c *Constraints, opts ...Option) (*Query, error) {
	return build(KindExists, e, nil, c, nil, collect(opts))
}

// Delete builds DELETE FROM <Type> [WHERE ...].
func Delete(e *meta.Entity, c *Constraints) (*Query, error) {
	return build(KindDelete, e, nil, c, nil, options{})
}

// Project builds SELECT e.<attr>, ... FROM <Type> e [WHERE ...] [ORDER BY ...].
func Project(e *meta.Entity, attrs []meta.Attribute, c *Constraints, order *OrderSpec, opts ...Option) (*Query, error) {
	if len(attrs) == 0 {
		return nil, fmt.Errorf("%w: projection of %s needs at least one attribute", types.ErrInvalidArgument, e.Name())
	}
	return build(KindProject, e, attrs, c, order, collect(opts))
}

// In builds a select matching attr against any of values.
func In(e *meta.Entity, attr meta.Attribute, values []interface{}, order *OrderSpec, opts ...Option) (*Query, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: IN predicate on %s needs at least one value", types.ErrInvalidArgument, attr)
	}
	q, err := build(KindSelect, e, nil, nil, order, collect(opts))
	if err != nil {
		return nil, err
	}
	if err := e.Check(attr); err != nil {
		return nil, err
	}
	list := make([]interface{}, len(values))
	copy(list, values)
	q.Where = append(q.Where, Predicate{
		Attribute: attr,
		Operator:  OpIn,
		Param:     q.Bindings.bind(meta.ParamName(attr), list),
		Value:     list,
	})
	return q, nil
}

// StartsWith builds a select matching attr LIKE prefix%. The prefix is used
// as a raw LIKE pattern: % and _ inside it are wildcards, not escaped.
func StartsWith(e *meta.Entity, attr meta.Attribute, prefix string, order *OrderSpec, opts ...Option) (*Query, error) {
	q, err := build(KindSelect, e, nil, nil, order, collect(opts))
	if err != nil {
		return nil, err
	}
	if err := e.Check(attr); err != nil {
		return nil, err
	}
	pattern := prefix + "%"
	q.Where = append(q.Where, Predicate{
		Attribute: attr,
		Operator:  OpLike,
		Param:     q.Bindings.bind(meta.ParamName(attr), pattern),
		Value:     pattern,
	})
	return q, nil
}

func build(kind Kind, e *meta.Entity, attrs []meta.Attribute, c *Constraints, order *OrderSpec, o options) (*Query, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: query without entity", types.ErrInvalidArgument)
	}
	q := &Query{Kind: kind, Entity: e, NullsFirst: o.nullsFirst}

	for _, attr := range attrs {
		if err := e.Check(attr); err != nil {
			return nil, err
		}
	}
	q.Projection = append(q.Projection, attrs...)

	var err error
	c.Each(func(attr meta.Attribute, value interface{}) {
		if err != nil {
			return
		}
		if err = e.Check(attr); err != nil {
			return
		}
		if IsNull(value) {
			q.Where = append(q.Where, Predicate{Attribute: attr, Operator: OpIsNull})
			return
		}
		q.Where = append(q.Where, Predicate{
			Attribute: attr,
			Operator:  OpEqual,
			Transform: transformFor(attr.DeclaredType(), o),
			Param:     q.Bindings.bind(meta.ParamName(attr), value),
			Value:     value,
		})
	})
	if err != nil {
		return nil, err
	}

	for _, term := range order.Terms() {
		if err := e.Check(term.Attribute); err != nil {
			return nil, err
		}
		if !term.Direction.IsValid() {
			return nil, fmt.Errorf("%w: invalid sort order on %s", types.ErrInvalidArgument, term.Attribute)
		}
		q.Order = append(q.Order, term)
	}
	return q, nil
}

var (
	timeType       = reflect.TypeOf((*time.Time)(nil)).Elem()
	nullTimeType   = reflect.TypeOf((*sql.NullTime)(nil)).Elem()
	nullStringType = reflect.TypeOf((*sql.NullString)(nil)).Elem()
)

// transformFor picks the equality transform from the declared type alone.
func transformFor(t reflect.Type, o options) Transform {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch {
	case o.foldCase && (t.Kind() == reflect.String || t == nullStringType):
		return TransformLower
	case o.truncateTime && (t == timeType || t == nullTimeType):
		return TransformTrunc
	default:
		return TransformNone
	}
}

// Recover returns the attribute to value mapping the WHERE clause encodes:
// IS NULL predicates map to nil and every other predicate to its binding.
func (q *Query) Recover() *Constraints {
	c := NewConstraints()
	for _, p := range q.Where {
		if p.Operator == OpIsNull {
			c.And(p.Attribute, nil)
			continue
		}
		v, _ := q.Bindings.Get(p.Param)
		c.And(p.Attribute, v)
	}
	return c
}

// Bindings is the ordered parameter table of a Query.
type Bindings struct {
	names  []string
	values map[string]interface{}
}

// bind records value under name, suffixing the name if it is taken.
func (b *Bindings) bind(name string, value interface{}) string {
	if b.values == nil {
		b.values = make(map[string]interface{})
	}
	unique := name
	for i := 2; ; i++ {
		if _, taken := b.values[unique]; !taken {
			break
		}
		unique = name + "_" + strconv.Itoa(i)
	}
	b.names = append(b.names, unique)
	b.values[unique] = value
	return unique
}

func (b Bindings) Len() int { return len(b.names) }

// Names returns parameter names in binding order.
func (b Bindings) Names() []string {
	names := make([]string, len(b.names))
	copy(names, b.names)
	return names
}

func (b Bindings) Get(name string) (interface{}, bool) {
	v, ok := b.values[name]
	return v, ok
}

// Map returns a copy of the table.
func (b Bindings) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(b.values))
	for k, v := range b.values {
		m[k] = v
	}
	return m
}
