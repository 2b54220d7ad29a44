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

package dao

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/tomoncle/gendao/database"
	"github.com/tomoncle/gendao/meta"
	"github.com/tomoncle/gendao/query"
	"github.com/tomoncle/gendao/types"
)

// memoryEngine is an Engine over a slice, enough to exercise the facade.
type memoryEngine struct {
	rows     []interface{}
	attached map[meta.Key]interface{}
	nextID   int64

	inserts, merges, removes, lists int
	cursors                         []*memoryCursor
	execs                           []string
	execArgs                        [][]interface{}
	failInsert                      error
}

func newMemoryEngine() *memoryEngine {
	return &memoryEngine{attached: map[meta.Key]interface{}{}, nextID: 1}
}

// seed stores entities as detached rows, assigning identifiers.
func (m *memoryEngine) seed(e *meta.Entity, entities ...interface{}) {
	for _, entity := range entities {
		m.assignID(e, entity)
		m.rows = append(m.rows, entity)
	}
}

func (m *memoryEngine) assignID(e *meta.Entity, entity interface{}) {
	rv := reflect.ValueOf(entity).Elem()
	f, _ := e.Column(e.IDAttribute().Name())
	rv.FieldByIndex(f.Index).SetInt(m.nextID)
	m.nextID++
}

func (m *memoryEngine) Find(_ context.Context, e *meta.Entity, id interface{}) (interface{}, error) {
	for _, row := range m.rows {
		rowID, _ := e.ID(row)
		if fmt.Sprint(rowID) == fmt.Sprint(id) {
			return row, nil
		}
	}
	return nil, nil
}

func (m *memoryEngine) match(q *query.Query) ([]interface{}, error) {
	var out []interface{}
	for _, row := range m.rows {
		ok := true
		for _, p := range q.Where {
			v, err := q.Entity.Value(row, p.Attribute)
			if err != nil {
				return nil, err
			}
			if !holds(p, v) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, term := range q.Order {
			a, _ := q.Entity.Value(out[i], term.Attribute)
			b, _ := q.Entity.Value(out[j], term.Attribute)
			c := compare(a, b, term.IgnoreCase)
			if c == 0 {
				continue
			}
			if term.Direction == types.DESC {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out, nil
}

func holds(p query.Predicate, v interface{}) bool {
	switch p.Operator {
	case query.OpIsNull:
		return v == nil
	case query.OpIn:
		for _, candidate := range p.Value.([]interface{}) {
			if fmt.Sprint(candidate) == fmt.Sprint(v) {
				return true
			}
		}
		return false
	case query.OpLike:
		return strings.HasPrefix(fmt.Sprint(v), strings.TrimSuffix(p.Value.(string), "%"))
	default:
		if v == nil {
			return false
		}
		if p.Transform == query.TransformLower {
			return strings.EqualFold(fmt.Sprint(v), fmt.Sprint(p.Value))
		}
		return fmt.Sprint(v) == fmt.Sprint(p.Value)
	}
}

func compare(a, b interface{}, fold bool) int {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.IsValid() && rb.IsValid() && ra.CanInt() && rb.CanInt() {
		switch {
		case ra.Int() < rb.Int():
			return -1
		case ra.Int() > rb.Int():
			return 1
		}
		return 0
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	if fold {
		sa, sb = strings.ToLower(sa), strings.ToLower(sb)
	}
	return strings.Compare(sa, sb)
}

func window(rows []interface{}, w Window) []interface{} {
	if w.Offset >= len(rows) {
		return []interface{}{}
	}
	rows = rows[w.Offset:]
	if w.Limit > 0 && w.Limit < len(rows) {
		rows = rows[:w.Limit]
	}
	return rows
}

func (m *memoryEngine) List(_ context.Context, q *query.Query, w Window) ([]interface{}, error) {
	m.lists++
	rows, err := m.match(q)
	if err != nil {
		return nil, err
	}
	return window(rows, w), nil
}

func (m *memoryEngine) Exists(_ context.Context, q *query.Query) (bool, error) {
	rows, err := m.match(q)
	return len(rows) > 0, err
}

func (m *memoryEngine) Project(_ context.Context, q *query.Query, w Window, dest ...interface{}) error {
	rows, err := m.match(q)
	if err != nil {
		return err
	}
	rows = window(rows, w)
	for i, attr := range q.Projection {
		slice := reflect.ValueOf(dest[i]).Elem()
		for _, row := range rows {
			v, err := q.Entity.Value(row, attr)
			if err != nil {
				return err
			}
			slice = reflect.Append(slice, reflect.ValueOf(v))
		}
		reflect.ValueOf(dest[i]).Elem().Set(slice)
	}
	return nil
}

func (m *memoryEngine) Delete(_ context.Context, q *query.Query) (int64, error) {
	rows, err := m.match(q)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		m.drop(row)
	}
	return int64(len(rows)), nil
}

func (m *memoryEngine) drop(row interface{}) {
	for i, r := range m.rows {
		if r == row {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return
		}
	}
}

func (m *memoryEngine) Scroll(_ context.Context, q *query.Query) (Cursor, error) {
	rows, err := m.match(q)
	if err != nil {
		return nil, err
	}
	cur := &memoryCursor{rows: rows, pos: -1}
	m.cursors = append(m.cursors, cur)
	return cur, nil
}

func (m *memoryEngine) ListNamed(_ context.Context, _ *meta.Entity, statement string, args []interface{}, w Window) ([]interface{}, error) {
	m.execs = append(m.execs, statement)
	m.execArgs = append(m.execArgs, args)
	return window(m.rows, w), nil
}

func (m *memoryEngine) ScrollNamed(_ context.Context, _ *meta.Entity, statement string, args []interface{}) (Cursor, error) {
	m.execs = append(m.execs, statement)
	m.execArgs = append(m.execArgs, args)
	cur := &memoryCursor{rows: append([]interface{}{}, m.rows...), pos: -1}
	m.cursors = append(m.cursors, cur)
	return cur, nil
}

func (m *memoryEngine) ExecNamed(_ context.Context, statement string, args []interface{}) (int64, error) {
	m.execs = append(m.execs, statement)
	m.execArgs = append(m.execArgs, args)
	return int64(len(m.rows)), nil
}

func (m *memoryEngine) Contains(e *meta.Entity, entity interface{}) bool {
	key, err := e.Key(entity)
	if err != nil {
		return false
	}
	return m.attached[key] == entity
}

func (m *memoryEngine) Insert(_ context.Context, e *meta.Entity, entity interface{}) error {
	if m.failInsert != nil {
		return m.failInsert
	}
	m.inserts++
	m.assignID(e, entity)
	m.rows = append(m.rows, entity)
	key, _ := e.Key(entity)
	m.attached[key] = entity
	return nil
}

func (m *memoryEngine) Merge(_ context.Context, e *meta.Entity, entity interface{}) (interface{}, error) {
	m.merges++
	key, err := e.Key(entity)
	if err != nil {
		return nil, err
	}
	m.attached[key] = entity
	return entity, nil
}

func (m *memoryEngine) Remove(_ context.Context, e *meta.Entity, entity interface{}) error {
	m.removes++
	m.drop(entity)
	return nil
}

func (m *memoryEngine) Refresh(ctx context.Context, e *meta.Entity, entity interface{}) error {
	id, _ := e.ID(entity)
	found, _ := m.Find(ctx, e, id)
	if found == nil {
		return fmt.Errorf("%w: %v", types.ErrNotFound, id)
	}
	reflect.ValueOf(entity).Elem().Set(reflect.ValueOf(found).Elem())
	return nil
}

type memoryCursor struct {
	rows   []interface{}
	pos    int
	closed bool
}

func (c *memoryCursor) Next() bool {
	if c.pos+1 >= len(c.rows) {
		c.pos = len(c.rows)
		return false
	}
	c.pos++
	return true
}

func (c *memoryCursor) Entity() (interface{}, error) { return c.rows[c.pos], nil }

func (c *memoryCursor) Last() (int, error) {
	for c.Next() {
	}
	return len(c.rows), nil
}

func (c *memoryCursor) Err() error { return nil }

func (c *memoryCursor) Close() error {
	c.closed = true
	return nil
}

// recordingLogger keeps warnings for assertions.
type recordingLogger struct {
	warnings []string
}

var _ database.Logger = (*recordingLogger)(nil)

func (l *recordingLogger) SetLevel(database.LogLevel)        {}
func (l *recordingLogger) Debug(string, ...interface{})      {}
func (l *recordingLogger) Info(string, ...interface{})       {}
func (l *recordingLogger) Error(string, ...interface{})      {}
func (l *recordingLogger) Warn(msg string, _ ...interface{}) { l.warnings = append(l.warnings, msg) }
