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
	"fmt"
	"reflect"
	"strings"

	"github.com/tomoncle/gendao/types"
	"github.com/uptrace/bun"
)

// Positional rewrites the :name placeholders of a named statement into
// bun's positional ? placeholders and returns the arguments in order. Quoted
// literals and :: casts are copied unchanged. Slice arguments are expanded
// with bun.In so that "IN (:ids)" works.
func Positional(statement string, params map[string]interface{}) (string, []interface{}, error) {
	var (
		b    strings.Builder
		args []interface{}
	)
	b.Grow(len(statement))
	for i := 0; i < len(statement); i++ {
		ch := statement[i]
		switch {
		case ch == '\'' || ch == '"':
			end := closingQuote(statement, i)
			b.WriteString(statement[i:end])
			i = end - 1
		case ch == ':' && i+1 < len(statement) && statement[i+1] == ':':
			b.WriteString("::")
			i++
		case ch == ':' && i+1 < len(statement) && isIdentStart(statement[i+1]):
			j := i + 1
			for j < len(statement) && isIdentPart(statement[j]) {
				j++
			}
			name := statement[i+1 : j]
			value, ok := params[name]
			if !ok {
				return "", nil, fmt.Errorf("%w: missing parameter %q", types.ErrInvalidArgument, name)
			}
			b.WriteByte('?')
			args = append(args, expand(value))
			i = j - 1
		default:
			b.WriteByte(ch)
		}
	}
	return b.String(), args, nil
}

// closingQuote returns the index just past the literal opened at start.
// Doubled quotes inside the literal are escapes.
func closingQuote(s string, start int) int {
	q := s[start]
	for i := start + 1; i < len(s); i++ {
		if s[i] != q {
			continue
		}
		if i+1 < len(s) && s[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func expand(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		return bun.In(v)
	}
	return v
}
