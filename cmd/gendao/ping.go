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
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/tomoncle/gendao/database"
)

type pingOptions struct {
	config  string
	timeout time.Duration
	retries int
}

// pingResult is the serialized outcome of a ping.
type pingResult struct {
	Type   string                 `json:"type" yaml:"type"`
	Health *database.HealthStatus `json:"health" yaml:"health"`
	Stats  *database.DBStats      `json:"stats" yaml:"stats"`
}

func newPingCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &pingOptions{}
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Connect to the configured database and report its health",
		Long: `Load the database configuration (an in-memory SQLite database when
--config is not given), apply DB_* environment overrides, connect and print
the health check and pool statistics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPing(rootOpts, opts, cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "path to a YAML config file")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "connect timeout")
	cmd.Flags().IntVar(&opts.retries, "retries", -1, "pings to retry while the database is starting (-1 keeps the configured value)")
	return cmd
}

func runPing(rootOpts *rootOptions, opts *pingOptions, cmd *cobra.Command) error {
	cfg := database.DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = database.LoadConfig(opts.config); err != nil {
			return err
		}
	}
	cfg.Schema.MigrateOnStartup = false
	if opts.retries >= 0 {
		cfg.Connection.ConnectRetries = opts.retries
	}
	if rootOpts.verbose {
		cfg.Log.Level = "debug"
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	conn, err := database.Open(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	res := pingResult{
		Type:   cfg.Connection.Type,
		Health: conn.Health(ctx),
		Stats:  conn.Stats(),
	}
	err = newPrinter(rootOpts, cmd).print(res, func(w io.Writer) {
		state := okColor.Sprint("healthy")
		if !res.Health.Healthy {
			state = failColor.Sprint("unhealthy")
		}
		row(w, "database", res.Type)
		row(w, "status", state)
		row(w, "response time", res.Health.ResponseTime)
		row(w, "connections", fmt.Sprintf("%d open, %d in use, %d idle (max %d)",
			res.Stats.OpenConns, res.Stats.InUse, res.Stats.Idle, res.Stats.MaxOpenConns))
		if res.Health.LastError != "" {
			row(w, "last error", res.Health.LastError)
		}
	})
	if err != nil {
		return err
	}
	if !res.Health.Healthy {
		return fmt.Errorf("database is unhealthy: %s", res.Health.LastError)
	}
	return nil
}
