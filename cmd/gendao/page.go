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

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tomoncle/gendao/paging"
)

type pageOptions struct {
	total int
	size  int
	page  int
}

func newPageCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &pageOptions{}
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Compute the window and navigation of one page",
		Long: `Compute the pagination status of a result of --total rows cut in
pages of --size rows, for the 0-based page --page. A page outside the
result falls back to page 0.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPage(rootOpts, opts, cmd)
		},
	}
	cmd.Flags().IntVar(&opts.total, "total", 0, "total number of rows")
	cmd.Flags().IntVar(&opts.size, "size", 10, "rows per page")
	cmd.Flags().IntVarP(&opts.page, "page", "p", 0, "0-based page index")
	return cmd
}

func runPage(rootOpts *rootOptions, opts *pageOptions, cmd *cobra.Command) error {
	status, err := paging.NewStatus(opts.page, opts.size, opts.total)
	if err != nil {
		return err
	}
	return newPrinter(rootOpts, cmd).print(status.Payload(), func(w io.Writer) {
		fmt.Fprintln(w, status.String())
		row(w, "offset", status.Offset())
		if status.Clamped() {
			row(w, "note", fmt.Sprintf("page %d is out of range, showing page 0", opts.page))
		}
	})
}
