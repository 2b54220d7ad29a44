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
	"slices"

	"github.com/spf13/cobra"
	"github.com/tomoncle/gendao/types"
	"github.com/tomoncle/gendao/utils"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	verbose bool
	format  string
}

var validFormats = []string{"text", "json", "yaml"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "gendao",
		Short: "gendao - generic data access toolkit",
		Long:  "Utilities around the gendao data access layer: page arithmetic and database health checks.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.format) {
				return fmt.Errorf("%w: invalid format %q, must be one of %v", types.ErrInvalidArgument, opts.format, validFormats)
			}
			if opts.verbose {
				utils.ConfigureLogLevel("debug")
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "output format (text|json|yaml)")

	cmd.AddCommand(newPageCommand(opts))
	cmd.AddCommand(newPingCommand(opts))
	return cmd
}
