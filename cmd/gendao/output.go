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
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// printer writes command results in the selected format. Text output goes
// through render; json and yaml encode v.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(opts *rootOptions, cmd *cobra.Command) *printer {
	return &printer{format: opts.format, w: cmd.OutOrStdout()}
}

func (p *printer) print(v interface{}, render func(w io.Writer)) error {
	switch p.format {
	case "json":
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		render(p.w)
		return nil
	}
}

var (
	labelColor = color.New(color.FgCyan)
	okColor    = color.New(color.FgGreen, color.Bold)
	failColor  = color.New(color.FgRed, color.Bold)
)

// row prints one "label: value" line of text output.
func row(w io.Writer, label string, value interface{}) {
	fmt.Fprintf(w, "%s %v\n", labelColor.Sprintf("%-14s", label+":"), value)
}
