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

package validators

import (
	"fmt"
	"regexp"
)

// Config is the declarative form of a SchemaValidator.
type Config struct {
	Required    []string               `mapstructure:"required"`
	Forbidden   []string               `mapstructure:"forbidden"`
	MaxNullRate float64                `mapstructure:"max_null_rate"`
	Fields      map[string]FieldConfig `mapstructure:"fields"`
}

// FieldConfig is the declarative form of a FieldRule.
type FieldConfig struct {
	Type    string        `mapstructure:"type"`
	Pattern string        `mapstructure:"pattern"`
	Min     *float64      `mapstructure:"min"`
	Max     *float64      `mapstructure:"max"`
	Allowed []interface{} `mapstructure:"allowed"`
}

// IsZero reports whether the config defines no check.
func (c Config) IsZero() bool {
	return len(c.Required) == 0 && len(c.Forbidden) == 0 && c.MaxNullRate == 0 && len(c.Fields) == 0
}

// FromConfig compiles cfg into a SchemaValidator.
func FromConfig(cfg Config) (*SchemaValidator, error) {
	options := []SchemaOption{
		WithRequiredFields(cfg.Required...),
		WithForbiddenFields(cfg.Forbidden...),
		WithMaxNullRate(cfg.MaxNullRate),
	}

	for field, fc := range cfg.Fields {
		rule := FieldRule{Type: FieldType(fc.Type), AllowedValues: fc.Allowed}
		if !knownType(rule.Type) {
			return nil, fmt.Errorf("field %s: unknown type %q", field, fc.Type)
		}
		if fc.Pattern != "" {
			re, err := regexp.Compile(fc.Pattern)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field, err)
			}
			rule.Pattern = re
		}
		if fc.Min != nil {
			rule.Min = *fc.Min
		}
		if fc.Max != nil {
			rule.Max = *fc.Max
		}
		options = append(options, WithFieldRule(field, rule))
	}

	return NewSchemaValidator(options...), nil
}

func knownType(t FieldType) bool {
	switch t {
	case "", FieldTypeAny, FieldTypeString, FieldTypeInt, FieldTypeFloat, FieldTypeNumber, FieldTypeBool,
		FieldTypeDate, FieldTypeEmail, FieldTypeURL, FieldTypeUUID, FieldTypeObject, FieldTypeArray:
		return true
	}
	return false
}
