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

package transform

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/filter"
)

// MappingConfig describes a declarative field mapping.
// Steps run in this order: not_null filter, trim, convert, rename, remove, set, select.
type MappingConfig struct {
	NotNull []string               `mapstructure:"not_null"`
	Trim    []string               `mapstructure:"trim"`
	Convert map[string]string      `mapstructure:"convert"`
	Rename  map[string]string      `mapstructure:"rename"`
	Remove  []string               `mapstructure:"remove"`
	Set     map[string]interface{} `mapstructure:"set"`
	Select  []string               `mapstructure:"select"`
}

// IsZero reports whether the config defines no step.
func (c MappingConfig) IsZero() bool {
	return len(c.NotNull) == 0 && len(c.Trim) == 0 && len(c.Convert) == 0 &&
		len(c.Rename) == 0 && len(c.Remove) == 0 && len(c.Set) == 0 && len(c.Select) == 0
}

// Mapping decorates a data type strategy: every parsed record is filtered and
// then passed through the transformers in order.
type Mapping struct {
	parser       core.DataTypeStrategy
	filters      []core.Filter
	transformers []core.Transformer
}

type MappingOption func(*Mapping)

func WithFilters(filters ...core.Filter) MappingOption {
	return func(m *Mapping) { m.filters = append(m.filters, filters...) }
}

func WithTransformers(transformers ...core.Transformer) MappingOption {
	return func(m *Mapping) { m.transformers = append(m.transformers, transformers...) }
}

// NewMapping wraps parser. A nil parser maps the raw content directly.
func NewMapping(parser core.DataTypeStrategy, options ...MappingOption) *Mapping {
	m := &Mapping{parser: parser}
	for _, option := range options {
		option(m)
	}
	return m
}

// FromConfig builds a Mapping from its declarative form.
func FromConfig(parser core.DataTypeStrategy, cfg MappingConfig) (*Mapping, error) {
	var options []MappingOption
	for _, field := range cfg.NotNull {
		options = append(options, WithFilters(filter.NotNull(field)))
	}
	if len(cfg.Trim) > 0 {
		options = append(options, WithTransformers(TrimSpace(cfg.Trim...)))
	}
	for _, field := range sortedKeys(cfg.Convert) {
		conv, err := Convert(field, cfg.Convert[field])
		if err != nil {
			return nil, err
		}
		options = append(options, WithTransformers(conv))
	}
	if len(cfg.Rename) > 0 {
		options = append(options, WithTransformers(Rename(cfg.Rename)))
	}
	if len(cfg.Remove) > 0 {
		options = append(options, WithTransformers(RemoveFields(cfg.Remove...)))
	}
	for _, field := range sortedKeys(cfg.Set) {
		options = append(options, WithTransformers(SetConstant(field, cfg.Set[field])))
	}
	if len(cfg.Select) > 0 {
		options = append(options, WithTransformers(Select(cfg.Select...)))
	}
	return NewMapping(parser, options...), nil
}

// ParseData implements core.DataTypeStrategy.
func (m *Mapping) ParseData(raw interface{}) (interface{}, error) {
	content := raw
	if m.parser != nil {
		parsed, err := m.parser.ParseData(raw)
		if err != nil {
			return nil, err
		}
		content = parsed
	}
	return m.mapContent(context.Background(), content)
}

func (m *Mapping) mapContent(ctx context.Context, content interface{}) (interface{}, error) {
	switch v := content.(type) {
	case core.Record:
		out, keep, err := m.Apply(ctx, v)
		if err != nil || !keep {
			return nil, err
		}
		return out, nil
	case map[string]interface{}:
		return m.mapContent(ctx, core.Record(v))
	case []core.Record:
		out := make([]core.Record, 0, len(v))
		for i, record := range v {
			mapped, keep, err := m.Apply(ctx, record)
			if err != nil {
				return nil, errors.WithMessagef(err, "record %d", i)
			}
			if keep {
				out = append(out, mapped)
			}
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, 0, len(v))
		for i, item := range v {
			mapped, err := m.mapContent(ctx, item)
			if err != nil {
				return nil, errors.WithMessagef(err, "item %d", i)
			}
			if mapped != nil {
				out = append(out, mapped)
			}
		}
		return out, nil
	}
	return content, nil
}

// Apply runs the filters and transformers on one record. keep is false when a
// filter drops the record.
func (m *Mapping) Apply(ctx context.Context, record core.Record) (out core.Record, keep bool, err error) {
	for _, f := range m.filters {
		include, err := f.ShouldInclude(ctx, record)
		if err != nil {
			return nil, false, errors.WithMessage(err, "filter")
		}
		if !include {
			return nil, false, nil
		}
	}
	out = record
	for _, t := range m.transformers {
		out, err = t.Transform(ctx, out)
		if err != nil {
			return nil, false, err
		}
	}
	return out, true, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
