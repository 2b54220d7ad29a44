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
	"strings"
)

const alias = "e"

// String renders q in the entity query dialect:
//
//	FROM <Type> e [WHERE <pred> (AND <pred>)*] [ORDER BY <expr> ASC|DESC [NULLS FIRST], ...]
//
// Parameters are written as :name and resolved through q.Bindings.
func (q *Query) String() string {
	var b strings.Builder
	switch q.Kind {
	case KindExists:
		b.WriteString("SELECT CASE WHEN (COUNT(*) > 0) THEN true ELSE false END ")
	case KindDelete:
		b.WriteString("DELETE ")
	case KindProject:
		b.WriteString("SELECT ")
		for i, attr := range q.Projection {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(column(attr.Name()))
		}
		b.WriteString(" ")
	}

	b.WriteString("FROM ")
	b.WriteString(q.Entity.Name())
	if q.Kind == KindDelete && len(q.Where) == 0 {
		return b.String()
	}
	b.WriteString(" ")
	b.WriteString(alias)

	if len(q.Where) > 0 {
		b.WriteString(" WHERE ")
		for i, p := range q.Where {
			if i > 0 {
				b.WriteString(" AND ")
			}
			writePredicate(&b, p)
		}
	}

	if len(q.Order) > 0 {
		b.WriteString(" ORDER BY ")
		for i, term := range q.Order {
			if i > 0 {
				b.WriteString(", ")
			}
			if term.IgnoreCase {
				b.WriteString("LOWER(" + column(term.Attribute.Name()) + ")")
			} else {
				b.WriteString(column(term.Attribute.Name()))
			}
			b.WriteString(" ")
			b.WriteString(term.Direction.Name())
			if q.NullsFirst {
				b.WriteString(" NULLS FIRST")
			}
		}
	}
	return b.String()
}

func writePredicate(b *strings.Builder, p Predicate) {
	col := column(p.Attribute.Name())
	param := ":" + p.Param
	switch p.Operator {
	case OpIsNull:
		b.WriteString(col + " IS NULL")
	case OpIn:
		b.WriteString(col + " IN (" + param + ")")
	case OpLike:
		b.WriteString(col + " LIKE " + param)
	default:
		switch p.Transform {
		case TransformLower:
			b.WriteString("LOWER(" + col + ") = LOWER(" + param + ")")
		case TransformTrunc:
			b.WriteString("TRUNC(" + col + ") = TRUNC(" + param + ")")
		default:
			b.WriteString(col + " = " + param)
		}
	}
}

func column(name string) string { return alias + "." + name }
