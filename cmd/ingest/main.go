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
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Command ingest runs one ingestion job described by a YAML file: it reads
// from the configured protocol, parses, maps and validates the records and
// saves them to the configured sink.

const Version = "0.1.0"

var Command = &cobra.Command{
	Use:           "ingest",
	Short:         "streaming record ingestion",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	Command.AddCommand(&cobra.Command{ // versionCmd represents the version command
		Use:   "version",
		Short: "print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	})
}

func main() {
	if err := Command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
