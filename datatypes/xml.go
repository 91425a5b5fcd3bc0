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

package datatypes

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/stdio-cz/mhmp-mapk-integration-engine-sub002/core"
)

// XML turns every element named ItemElement into a core.Record. Attributes
// and leaf children become string fields; nested children become maps, and
// repeated children become slices.
type XML struct {
	ItemElement string
}

func NewXML(itemElement string) *XML {
	return &XML{ItemElement: itemElement}
}

type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

// ParseData implements core.DataTypeStrategy.
func (x *XML) ParseData(raw interface{}) (interface{}, error) {
	if batch, ok := raw.([]interface{}); ok {
		return parseBatch(batch, x.parseOne)
	}
	return x.parseOne(raw)
}

func (x *XML) parseOne(raw interface{}) (interface{}, error) {
	if x.ItemElement == "" {
		return nil, &DataTypeError{Format: "xml", Err: fmt.Errorf("item element is required")}
	}
	data, err := payloadBytes(raw)
	if err != nil {
		return nil, &DataTypeError{Format: "xml", Err: err}
	}

	decoder := xml.NewDecoder(bytes.NewReader(data))
	records := []core.Record{}
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DataTypeError{Format: "xml", Err: err}
		}

		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != x.ItemElement {
			continue
		}
		var node xmlNode
		if err := decoder.DecodeElement(&node, &start); err != nil {
			return nil, &DataTypeError{Format: "xml", Err: err}
		}
		records = append(records, nodeToRecord(node))
	}
	return records, nil
}

func nodeToRecord(node xmlNode) core.Record {
	record := make(core.Record, len(node.Attrs)+len(node.Nodes))
	for _, attr := range node.Attrs {
		record[attr.Name.Local] = attr.Value
	}
	for _, child := range node.Nodes {
		key := child.XMLName.Local
		value := nodeValue(child)
		switch existing := record[key].(type) {
		case nil:
			record[key] = value
		case []interface{}:
			record[key] = append(existing, value)
		default:
			record[key] = []interface{}{existing, value}
		}
	}
	if len(node.Nodes) == 0 {
		if text := strings.TrimSpace(node.Content); text != "" {
			record["value"] = text
		}
	}
	return record
}

func nodeValue(node xmlNode) interface{} {
	if len(node.Attrs) == 0 && len(node.Nodes) == 0 {
		text := strings.TrimSpace(node.Content)
		if text == "" {
			return nil
		}
		return text
	}
	return map[string]interface{}(nodeToRecord(node))
}
