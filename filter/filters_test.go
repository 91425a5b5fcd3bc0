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

package filter

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
)

func TestFilters(t *testing.T) {
	record := core.Record{
		"id":       int64(7),
		"name":     "Praha hl.n.",
		"empty":    "",
		"missing":  nil,
		"capacity": 42.5,
		"kind":     "bike",
	}

	tests := []struct {
		name     string
		filter   core.Filter
		expected bool
	}{
		{"not null present", NotNull("name"), true},
		{"not null empty string", NotNull("empty"), false},
		{"not null nil", NotNull("missing"), false},
		{"not null absent", NotNull("nope"), false},
		{"equals", Equals("id", int64(7)), true},
		{"equals type mismatch", Equals("id", 7), false},
		{"in", In("kind", "car", "bike"), true},
		{"not in", In("kind", "car"), false},
		{"contains", Contains("name", "hl."), true},
		{"starts with", StartsWith("name", "Brno"), false},
		{"regex", MatchesRegex("name", regexp.MustCompile(`^Praha`)), true},
		{"greater than", GreaterThan("capacity", 40), true},
		{"less than int64", LessThan("id", 5), false},
		{"between inclusive", Between("id", 7, 7), true},
		{"numeric on string", GreaterThan("name", 0), false},
		{"and", And(NotNull("name"), Equals("kind", "bike")), true},
		{"and short circuit", And(NotNull("empty"), Equals("kind", "bike")), false},
		{"or", Or(NotNull("empty"), Equals("kind", "bike")), true},
		{"not", Not(NotNull("empty")), true},
		{"custom", Custom(func(r core.Record) bool { return len(r) == 6 }), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			include, err := tt.filter.ShouldInclude(context.Background(), record)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, include)
		})
	}
}

func TestCombinatorsPropagateErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		return false, boom
	})

	for _, f := range []core.Filter{And(failing), Or(failing), Not(failing)} {
		_, err := f.ShouldInclude(context.Background(), core.Record{})
		assert.ErrorIs(t, err, boom)
	}
}
