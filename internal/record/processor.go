package record

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformedInput indicates structurally invalid JSON or CSV. Fatal for
// the whole generation request: there is nothing to render.
var ErrMalformedInput = errors.New("malformed input")

// A table block needs at least one numeric column and this many rows to be
// chart-eligible.
const minChartRows = 2

// Processor normalizes raw JSON/CSV payloads into canonical records.
type Processor struct{}

// NewProcessor returns a Processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// ParseJSON normalizes a JSON object into a canonical record. Lists whose
// elements share a compatible field set become table blocks.
func (p *Processor) ParseJSON(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level JSON value must be an object", ErrMalformedInput)
	}
	return convertObject(obj), nil
}

func convertObject(obj map[string]any) Record {
	rec := make(Record, len(obj))
	for k, v := range obj {
		rec[k] = convertValue(v)
	}
	return rec
}

func convertValue(v any) Value {
	switch t := v.(type) {
	case nil:
		return NullValue()
	case bool:
		return BoolValue(t)
	case string:
		return StringValue(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return StringValue(t.String())
		}
		return NumberValue(f)
	case map[string]any:
		return RecordValue(convertObject(t))
	case []any:
		return TableValue(convertList(t))
	default:
		return StringValue(fmt.Sprintf("%v", t))
	}
}

// convertList turns a JSON array into a table block. A list of objects uses
// the union of their keys as columns; anything else collapses into a single
// "value" column. JSON decoding does not preserve object key order, so
// object-list columns are sorted by name for determinism.
func convertList(list []any) *Table {
	t := &Table{}
	if len(list) == 0 {
		return t
	}

	allObjects := true
	for _, el := range list {
		if _, ok := el.(map[string]any); !ok {
			allObjects = false
			break
		}
	}

	if allObjects {
		keySet := map[string]struct{}{}
		for _, el := range list {
			for k := range el.(map[string]any) {
				keySet[k] = struct{}{}
			}
		}
		keys := make([]string, 0, len(keySet))
		for k := range keySet {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, el := range list {
			row := make(Record, len(keys))
			obj := el.(map[string]any)
			for _, k := range keys {
				if raw, ok := obj[k]; ok {
					row[k] = convertValue(raw)
				} else {
					row[k] = NullValue()
				}
			}
			t.Rows = append(t.Rows, row)
		}
		for _, k := range keys {
			t.Columns = append(t.Columns, Column{Name: k, Numeric: columnNumeric(t.Rows, k)})
		}
	} else {
		for _, el := range list {
			cell := convertValue(el)
			if cell.Kind == KindRecord || cell.Kind == KindTable {
				cell = NullValue()
			}
			t.Rows = append(t.Rows, Record{"value": cell})
		}
		t.Columns = []Column{{Name: "value", Numeric: columnNumeric(t.Rows, "value")}}
	}

	t.ChartEligible = len(t.Rows) >= minChartRows && len(t.NumericColumns()) > 0
	return t
}

// columnNumeric reports whether every non-empty cell in the column is a
// number. Columns with no non-empty cells are not numeric.
func columnNumeric(rows []Record, name string) bool {
	seen := false
	for _, row := range rows {
		cell, ok := row[name]
		if !ok || cell.Kind == KindNull {
			continue
		}
		switch cell.Kind {
		case KindNumber:
			seen = true
		case KindString:
			if cell.Str == "" {
				continue
			}
			if _, err := strconv.ParseFloat(strings.TrimSpace(cell.Str), 64); err != nil {
				return false
			}
			seen = true
		default:
			return false
		}
	}
	return seen
}

// ParseCSV normalizes CSV bytes into a canonical record holding one table
// block under "data" and the dataset name under "title". Column types are
// decided by scanning every row: a column is numeric only when each
// non-empty cell parses as a number. Files that parse to a single column
// under a comma are retried with a semicolon separator.
func (p *Processor) ParseCSV(name string, data []byte) (Record, error) {
	rows, err := readCSV(data, ',')
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && len(rows[0]) == 1 && strings.Contains(rows[0][0], ";") {
		rows, err = readCSV(data, ';')
		if err != nil {
			return nil, err
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty CSV", ErrMalformedInput)
	}

	header := rows[0]
	body := rows[1:]

	numeric := make([]bool, len(header))
	for i := range header {
		numeric[i] = csvColumnNumeric(body, i)
	}

	t := &Table{}
	for i, name := range header {
		t.Columns = append(t.Columns, Column{Name: strings.TrimSpace(name), Numeric: numeric[i]})
	}
	for _, raw := range body {
		row := make(Record, len(header))
		for i, col := range t.Columns {
			cell := strings.TrimSpace(raw[i])
			switch {
			case cell == "":
				row[col.Name] = NullValue()
			case numeric[i]:
				f, _ := strconv.ParseFloat(cell, 64)
				row[col.Name] = NumberValue(f)
			default:
				row[col.Name] = StringValue(cell)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	t.ChartEligible = len(t.Rows) >= minChartRows && len(t.NumericColumns()) > 0

	rec := Record{"data": TableValue(t)}
	if name = strings.TrimSpace(name); name != "" {
		rec["title"] = StringValue(name)
	}
	return rec, nil
}

func readCSV(data []byte, sep rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sep
	// FieldsPerRecord defaults to the first record's width; inconsistent
	// column counts surface as csv.ErrFieldCount.
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return rows, nil
}

func csvColumnNumeric(rows [][]string, idx int) bool {
	seen := false
	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[idx])
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}
