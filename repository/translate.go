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

package repository

import (
	"database/sql"
	"sync"

	"github.com/tomoncle/gendao/meta"
	"github.com/tomoncle/gendao/query"
	"github.com/tomoncle/gendao/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// clause is one SQL fragment with its bun arguments.
type clause struct {
	expr string
	args []interface{}
}

// column renders a column reference. Selects qualify it with the table
// alias; updates and deletes use the bare name.
func column(attr meta.Attribute, qualified bool) clause {
	if qualified {
		return clause{expr: "?TableAlias.?", args: []interface{}{bun.Ident(attr.Name())}}
	}
	return clause{expr: "?", args: []interface{}{bun.Ident(attr.Name())}}
}

// dayOf truncates expr to its calendar day.
func dayOf(name dialect.Name, expr string) string {
	switch name {
	case dialect.SQLite:
		return "date(" + expr + ")"
	case dialect.MySQL:
		return "DATE(" + expr + ")"
	default:
		return "CAST(" + expr + " AS DATE)"
	}
}

// predicate translates p into a WHERE fragment for dialect name.
func predicate(name dialect.Name, p query.Predicate, qualified bool) clause {
	col := column(p.Attribute, qualified)
	switch p.Operator {
	case query.OpIsNull:
		return clause{expr: col.expr + " IS NULL", args: col.args}
	case query.OpIn:
		return clause{expr: col.expr + " IN (?)", args: append(col.args, bun.In(p.Value))}
	case query.OpLike:
		return clause{expr: col.expr + " LIKE ?", args: append(col.args, p.Value)}
	}

	switch p.Transform {
	case query.TransformLower:
		return clause{expr: "LOWER(" + col.expr + ") = LOWER(?)", args: append(col.args, lowered(p.Value))}
	case query.TransformTrunc:
		return clause{expr: dayOf(name, col.expr) + " = " + dayOf(name, "?"), args: append(col.args, p.Value)}
	default:
		return clause{expr: col.expr + " = ?", args: append(col.args, p.Value)}
	}
}

// casers hands out lower-case folders. A cases.Caser keeps state while it
// transforms, so one must not be shared between goroutines.
var casers = sync.Pool{New: func() interface{} {
	c := cases.Lower(language.Und)
	return &c
}}

func fold(s string) string {
	c := casers.Get().(*cases.Caser)
	defer casers.Put(c)
	return c.String(s)
}

// lowered pre-lowers string values so the database compares two lowered
// operands even where LOWER on the bound side is a no-op. A null
// sql.NullString binds as NULL.
func lowered(v interface{}) interface{} {
	switch s := v.(type) {
	case string:
		return fold(s)
	case *string:
		if s == nil {
			return nil
		}
		return fold(*s)
	case sql.NullString:
		if !s.Valid {
			return nil
		}
		return fold(s.String)
	case *sql.NullString:
		if s == nil || !s.Valid {
			return nil
		}
		return fold(s.String)
	default:
		return v
	}
}

// order translates t into ORDER BY fragments. MySQL has no NULLS FIRST, so
// it sorts on an IS NULL term first.
func order(name dialect.Name, t query.OrderTerm, nullsFirst bool) []clause {
	col := column(t.Attribute, true)
	expr := col.expr
	if t.IgnoreCase {
		expr = "LOWER(" + expr + ")"
	}
	dir := " ASC"
	if t.Direction == types.DESC {
		dir = " DESC"
	}
	if !nullsFirst {
		return []clause{{expr: expr + dir, args: col.args}}
	}
	if name == dialect.MySQL {
		return []clause{
			{expr: col.expr + " IS NULL DESC", args: col.args},
			{expr: expr + dir, args: col.args},
		}
	}
	return []clause{{expr: expr + dir + " NULLS FIRST", args: col.args}}
}

func applySelect(name dialect.Name, sel *bun.SelectQuery, q *query.Query) *bun.SelectQuery {
	for _, p := range q.Where {
		c := predicate(name, p, true)
		sel = sel.Where(c.expr, c.args...)
	}
	for _, t := range q.Order {
		for _, c := range order(name, t, q.NullsFirst) {
			sel = sel.OrderExpr(c.expr, c.args...)
		}
	}
	return sel
}

func applyDelete(name dialect.Name, del *bun.DeleteQuery, q *query.Query) *bun.DeleteQuery {
	if len(q.Where) == 0 {
		return del.Where("1 = 1")
	}
	for _, p := range q.Where {
		c := predicate(name, p, false)
		del = del.Where(c.expr, c.args...)
	}
	return del
}
