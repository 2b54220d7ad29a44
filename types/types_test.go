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

package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	wrapped := fmt.Errorf("%w: item 7", ErrNotFound)
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsBackendFailure(wrapped))
	assert.True(t, IsInvalidArgument(fmt.Errorf("%w: page size", ErrInvalidArgument)))
	assert.True(t, IsAmbiguousResult(ErrAmbiguousResult))
	assert.True(t, IsConcurrencyConflict(fmt.Errorf("flush: %w", ErrConcurrencyConflict)))
	assert.True(t, IsBackendFailure(ErrBackendFailure))
}

func TestSortOrder(t *testing.T) {
	assert.Equal(t, "ASC", ASC.String())
	assert.Equal(t, "descending", DESC.Desc())
	assert.Equal(t, 1, DESC.Number())

	bad := SortOrder(5)
	assert.False(t, bad.IsValid())
	assert.Equal(t, IllegalValue, bad.Number())
	assert.Equal(t, IllegalName, bad.Name())
	assert.Equal(t, IllegalDesc, bad.Desc())

	tests := []struct {
		in   string
		want SortOrder
		ok   bool
	}{
		{"asc", ASC, true},
		{" Desc ", DESC, true},
		{"down", SortOrder(IllegalValue), false},
	}
	for _, tt := range tests {
		got, ok := ParseSortOrder(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestJsonColumns(t *testing.T) {
	v, err := JsonObject{"a": 1}.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	v, err = JsonObject(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	var obj JsonObject
	require.NoError(t, obj.Scan([]byte(`{"k":"v"}`)))
	assert.Equal(t, "v", obj["k"])
	require.NoError(t, obj.Scan(nil))
	assert.Empty(t, obj)
	assert.NotNil(t, obj)
	assert.ErrorIs(t, obj.Scan(42), ErrInvalidArgument)

	var arr JsonArray
	require.NoError(t, arr.Scan(`[{"n":1},{"n":2}]`))
	require.Len(t, arr, 2)
	assert.Equal(t, float64(2), arr[1]["n"])
	require.NoError(t, arr.Scan(""))
	assert.Empty(t, arr)
}
