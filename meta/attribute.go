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
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Attribute references a named, typed field of an entity type. Values are
// immutable and safe to share between goroutines.
type Attribute interface {
	// Name is the column name of the field as mapped by bun.
	Name() string
	DeclaredType() reflect.Type
	Owner() reflect.Type
	// Hash is stable across processes and identifies the descriptor, not
	// any value bound to it.
	Hash() uint64
	fmt.Stringer
}

// Attr is the typed Attribute of a field of E holding values of V. Declare
// it once per field, usually as a package level variable:
//
//	var NoteName = meta.NewAttr[Note, string]("name")
type Attr[E any, V any] struct {
	name string
}

var _ Attribute = Attr[struct{}, int]{}

// NewAttr returns the descriptor of field name on E.
func NewAttr[E any, V any](name string) Attr[E, V] {
	return Attr[E, V]{name: name}
}

func (a Attr[E, V]) Name() string { return a.name }

func (a Attr[E, V]) DeclaredType() reflect.Type { return reflect.TypeOf((*V)(nil)).Elem() }

func (a Attr[E, V]) Owner() reflect.Type { return reflect.TypeOf((*E)(nil)).Elem() }

func (a Attr[E, V]) Hash() uint64 { return attributeHash(a) }

func (a Attr[E, V]) String() string {
	return a.Owner().Name() + "." + a.name
}

var hashCache sync.Map // Attribute -> uint64

func attributeHash(a Attribute) uint64 {
	if h, ok := hashCache.Load(a); ok {
		return h.(uint64)
	}
	d := xxhash.New()
	_, _ = d.WriteString(a.Owner().PkgPath())
	_, _ = d.WriteString(".")
	_, _ = d.WriteString(a.Owner().Name())
	_, _ = d.WriteString("/")
	_, _ = d.WriteString(a.Name())
	_, _ = d.WriteString(":")
	_, _ = d.WriteString(a.DeclaredType().String())
	h := d.Sum64()
	hashCache.Store(a, h)
	return h
}

// ParamName derives the bind parameter name of a. Two distinct descriptors
// never share a name even when their field names match.
func ParamName(a Attribute) string {
	return a.Name() + "_" + strconv.FormatUint(a.Hash(), 36)
}

// SameAttribute reports whether a and b reference the same field.
func SameAttribute(a, b Attribute) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Owner() == b.Owner() && a.Name() == b.Name()
}
