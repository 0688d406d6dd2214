package record

import (
	"strconv"
	"strings"
)

// Kind discriminates the closed set of value shapes a canonical record holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindRecord
	KindTable
)

// Value is one field of a canonical record: a scalar, a nested record, or a
// table block. Exactly one payload field is meaningful per Kind.
type Value struct {
	Kind  Kind
	Str   string
	Num   float64
	Bool  bool
	Rec   Record
	Table *Table
}

// Record is the canonical, format-agnostic representation of an input
// dataset. Depth is unbounded.
type Record map[string]Value

// Column describes one table-block column. Numeric means every non-empty
// cell in the column parses as a number.
type Column struct {
	Name    string
	Numeric bool
}

// Table is an ordered list of structurally homogeneous rows recognized for
// tabular and chart rendering.
type Table struct {
	Columns       []Column
	Rows          []Record
	ChartEligible bool
}

// NumericColumns returns the names of numeric columns in order.
func (t *Table) NumericColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if c.Numeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// FirstTextColumn returns the first non-numeric column name, used as the
// chart X axis. ok is false when every column is numeric.
func (t *Table) FirstTextColumn() (string, bool) {
	for _, c := range t.Columns {
		if !c.Numeric {
			return c.Name, true
		}
	}
	return "", false
}

// String renders a scalar value for substitution. Nulls render empty; nested
// records and tables render empty, they have dedicated directives.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Float reads a value as a chart data point. Numeric strings parse, CSV
// columns keep cells as strings; anything non-numeric reads as zero.
func (v Value) Float() float64 {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0
		}
		return f
	case KindBool:
		if v.Bool {
			return 1
		}
	}
	return 0
}

// Truthy reports whether a conditional block over this value renders.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindString:
		return v.Str != ""
	case KindNumber:
		return v.Num != 0
	case KindBool:
		return v.Bool
	case KindRecord:
		return len(v.Rec) > 0
	case KindTable:
		return v.Table != nil && len(v.Table.Rows) > 0
	default:
		return false
	}
}

// Clone deep-copies the record. Pipeline stages never mutate their input.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v.clone()
	}
	return out
}

func (v Value) clone() Value {
	switch v.Kind {
	case KindRecord:
		v.Rec = v.Rec.Clone()
	case KindTable:
		if v.Table != nil {
			t := &Table{
				Columns:       append([]Column(nil), v.Table.Columns...),
				ChartEligible: v.Table.ChartEligible,
			}
			t.Rows = make([]Record, len(v.Table.Rows))
			for i, row := range v.Table.Rows {
				t.Rows[i] = row.Clone()
			}
			v.Table = t
		}
	}
	return v
}

// Lookup resolves a dotted path ("customer.address.city") against the
// record. Table rows are not addressable by path; loops handle those.
func (r Record) Lookup(path string) (Value, bool) {
	cur := r
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := cur[part]
		if !ok {
			return Value{}, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		if v.Kind != KindRecord {
			return Value{}, false
		}
		cur = v.Rec
	}
	return Value{}, false
}

// Title extracts a document title the way the processor recognizes one:
// document.title first, then common top-level fields.
func (r Record) Title() (string, bool) {
	if doc, ok := r["document"]; ok && doc.Kind == KindRecord {
		if t, ok := doc.Rec["title"]; ok && t.Kind == KindString && t.Str != "" {
			return t.Str, true
		}
	}
	for _, field := range []string{"title", "name", "store", "company", "organization"} {
		v, ok := r[field]
		if !ok {
			continue
		}
		if v.Kind == KindString && v.Str != "" {
			return v.Str, true
		}
		if v.Kind == KindRecord {
			if n, ok := v.Rec["name"]; ok && n.Kind == KindString && n.Str != "" {
				return n.Str, true
			}
		}
	}
	return "", false
}

// Scalar constructors used by parsers and tests.

func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func NumberValue(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func NullValue() Value            { return Value{Kind: KindNull} }
func RecordValue(r Record) Value  { return Value{Kind: KindRecord, Rec: r} }
func TableValue(t *Table) Value   { return Value{Kind: KindTable, Table: t} }
