//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoETL.
//
// GoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoETL. If not, see https://www.gnu.org/licenses/.

package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/config"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/log"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/metrics"
)

type runFlags struct {
	configPath  string
	metricsAddr string
}

func init() {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the job described by a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
	}
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "ingest.yml", "path to the job config")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, overrides metrics.addr")
	Command.AddCommand(cmd)
}

func run(ctx context.Context, flags *runFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	logOptions, err := cfg.Log.Options()
	if err != nil {
		return err
	}
	log.Setup(logOptions)
	logger := log.Global()
	defer func() { _ = logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reporter := metrics.NewPrometheus(cfg.Metrics.Prefix, cfg.Metrics.Interval)
	defer reporter.Close()

	addr := cfg.Metrics.Addr
	if flags.metricsAddr != "" {
		addr = flags.metricsAddr
	}
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reporter.Handler())
		server := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorw("metrics server failed", "addr", addr, "err", err)
			}
		}()
		defer server.Close()
		logger.Infow("serving metrics", "addr", addr)
	}

	pipeline, err := buildPipeline(ctx, cfg, metrics.NewTallySink(reporter.Scope), logger)
	if err != nil {
		return errors.WithMessagef(err, "job %s", cfg.Job.Name)
	}
	if err := pipeline.Execute(ctx); err != nil {
		return errors.WithMessagef(err, "job %s", cfg.Job.Name)
	}
	return nil
}
