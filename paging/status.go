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

package paging

import (
	"fmt"
	"strconv"

	"github.com/tomoncle/gendao/types"
)

// Status is the position of one requested page inside a counted result.
// It is computed once from (page, pageSize, totalRows) and never changes.
type Status struct {
	totalRows int
	pageSize  int
	page      int
	lastPage  int
	offset    int
	clamped   bool
}

// NewStatus computes the page window. page is 0-based; a page outside
// [0, lastPage] silently falls back to 0. pageSize must be positive.
func NewStatus(page, pageSize, totalRows int) (*Status, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: page size must be positive, got %d", types.ErrInvalidArgument, pageSize)
	}
	if totalRows < 0 {
		return nil, fmt.Errorf("%w: negative row count %d", types.ErrInvalidArgument, totalRows)
	}
	s := &Status{totalRows: totalRows, pageSize: pageSize}

	s.lastPage = totalRows / pageSize
	if totalRows%pageSize == 0 && s.lastPage > 0 {
		s.lastPage--
	}

	if page < 0 || page > s.lastPage {
		s.clamped = true
		page = 0
	}
	s.page = page
	s.offset = page * pageSize
	return s, nil
}

// First is page 0, present once the current page is past it.
func (s *Status) First() (int, bool) {
	if s.page > 0 {
		return 0, true
	}
	return 0, false
}

func (s *Status) Previous() (int, bool) {
	if s.page > 0 {
		return s.page - 1, true
	}
	return 0, false
}

func (s *Status) Next() (int, bool) {
	if s.page < s.lastPage {
		return s.page + 1, true
	}
	return 0, false
}

func (s *Status) Last() (int, bool) {
	if s.page < s.lastPage {
		return s.lastPage, true
	}
	return 0, false
}

func (s *Status) TotalRows() int { return s.totalRows }

func (s *Status) PageSize() int { return s.pageSize }

// PageIndex is the 0-based page actually served.
func (s *Status) PageIndex() int { return s.page }

// CurrentPage is the 1-based page number for display.
func (s *Status) CurrentPage() int { return s.page + 1 }

func (s *Status) LastPageIndex() int { return s.lastPage }

func (s *Status) TotalPages() int { return s.lastPage + 1 }

func (s *Status) Offset() int { return s.offset }

// Clamped reports whether the requested page was out of range.
func (s *Status) Clamped() bool { return s.clamped }

// Payload is the serialized form of a Status. Absent navigation pointers
// are null.
type Payload struct {
	TotalRows   int  `json:"totalRows" yaml:"totalRows"`
	PageSize    int  `json:"pageSize" yaml:"pageSize"`
	CurrentPage int  `json:"currentPage" yaml:"currentPage"`
	TotalPages  int  `json:"totalPages" yaml:"totalPages"`
	Offset      int  `json:"offset" yaml:"offset"`
	First       *int `json:"first" yaml:"first"`
	Previous    *int `json:"previous" yaml:"previous"`
	Next        *int `json:"next" yaml:"next"`
	Last        *int `json:"last" yaml:"last"`
}

func (s *Status) Payload() Payload {
	return Payload{
		TotalRows:   s.totalRows,
		PageSize:    s.pageSize,
		CurrentPage: s.CurrentPage(),
		TotalPages:  s.TotalPages(),
		Offset:      s.offset,
		First:       optional(s.First()),
		Previous:    optional(s.Previous()),
		Next:        optional(s.Next()),
		Last:        optional(s.Last()),
	}
}

func optional(v int, ok bool) *int {
	if !ok {
		return nil
	}
	return &v
}

func (s *Status) String() string {
	return fmt.Sprintf("Total pages: %d, current page: %d [%s, %s, %s, %s]",
		s.TotalPages(), s.CurrentPage(),
		show(s.First()), show(s.Previous()), show(s.Next()), show(s.Last()))
}

func show(v int, ok bool) string {
	if !ok {
		return "none"
	}
	return strconv.Itoa(v)
}

// Page is one window of a paged query together with its Status.
type Page[T any] struct {
	Items  []*T
	Status *Status
}

// Empty returns a page without items, used when the query matched nothing.
func Empty[T any](status *Status) *Page[T] {
	return &Page[T]{Items: make([]*T, 0), Status: status}
}
