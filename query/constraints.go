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
	"database/sql/driver"
	"reflect"

	"github.com/tomoncle/gendao/meta"
	"github.com/tomoncle/gendao/types"
)

type constraint struct {
	attr  meta.Attribute
	value interface{}
}

// Constraints is an ordered attribute to value mapping combined with AND.
// A nil value (or a nil pointer, or a Valuer yielding nil) means IS NULL.
// Setting an attribute twice keeps its first position and the last value.
// The nil *Constraints is the empty set.
type Constraints struct {
	entries []constraint
}

// NewConstraints returns an empty constraint set.
func NewConstraints() *Constraints {
	return &Constraints{}
}

// Where starts a constraint set with a single entry.
func Where(attr meta.Attribute, value interface{}) *Constraints {
	return NewConstraints().And(attr, value)
}

// And adds or replaces the constraint on attr.
func (c *Constraints) And(attr meta.Attribute, value interface{}) *Constraints {
	for i := range c.entries {
		if meta.SameAttribute(c.entries[i].attr, attr) {
			c.entries[i].value = value
			return c
		}
	}
	c.entries = append(c.entries, constraint{attr: attr, value: value})
	return c
}

// Len returns the number of constrained attributes.
func (c *Constraints) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Get returns the value constrained on attr.
func (c *Constraints) Get(attr meta.Attribute) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	for _, e := range c.entries {
		if meta.SameAttribute(e.attr, attr) {
			return e.value, true
		}
	}
	return nil, false
}

// Each calls fn for every entry in insertion order.
func (c *Constraints) Each(fn func(attr meta.Attribute, value interface{})) {
	if c == nil {
		return
	}
	for _, e := range c.entries {
		fn(e.attr, e.value)
	}
}

// Attributes returns the constrained attributes in insertion order.
func (c *Constraints) Attributes() []meta.Attribute {
	attrs := make([]meta.Attribute, 0, c.Len())
	c.Each(func(attr meta.Attribute, _ interface{}) {
		attrs = append(attrs, attr)
	})
	return attrs
}

// IsNull reports whether v stands for SQL NULL.
func IsNull(v interface{}) bool {
	if v == nil {
		return true
	}
	if valuer, ok := v.(driver.Valuer); ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return true
		}
		dv, err := valuer.Value()
		return err == nil && dv == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// OrderTerm is one ORDER BY entry.
type OrderTerm struct {
	Attribute  meta.Attribute
	Direction  types.SortOrder
	IgnoreCase bool
}

// OrderSpec is an ordered list of sort terms; insertion order is the
// ORDER BY order. The nil *OrderSpec sorts nothing.
type OrderSpec struct {
	terms []OrderTerm
}

// OrderBy starts an order specification.
func OrderBy(attr meta.Attribute, dir types.SortOrder) *OrderSpec {
	return (&OrderSpec{}).Then(attr, dir)
}

// OrderByIgnoreCase starts an order specification comparing LOWER(attr).
func OrderByIgnoreCase(attr meta.Attribute, dir types.SortOrder) *OrderSpec {
	return (&OrderSpec{}).ThenIgnoreCase(attr, dir)
}

func (o *OrderSpec) Then(attr meta.Attribute, dir types.SortOrder) *OrderSpec {
	return o.add(OrderTerm{Attribute: attr, Direction: dir})
}

func (o *OrderSpec) ThenIgnoreCase(attr meta.Attribute, dir types.SortOrder) *OrderSpec {
	return o.add(OrderTerm{Attribute: attr, Direction: dir, IgnoreCase: true})
}

func (o *OrderSpec) add(term OrderTerm) *OrderSpec {
	for i := range o.terms {
		if meta.SameAttribute(o.terms[i].Attribute, term.Attribute) {
			o.terms[i] = term
			return o
		}
	}
	o.terms = append(o.terms, term)
	return o
}

func (o *OrderSpec) Len() int {
	if o == nil {
		return 0
	}
	return len(o.terms)
}

// Terms returns a copy of the sort terms.
func (o *OrderSpec) Terms() []OrderTerm {
	if o == nil {
		return nil
	}
	terms := make([]OrderTerm, len(o.terms))
	copy(terms, o.terms)
	return terms
}
