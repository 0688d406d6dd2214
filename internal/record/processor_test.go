package record

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONScalarsAndNesting(t *testing.T) {
	p := NewProcessor()
	rec, err := p.ParseJSON([]byte(`{
		"title": "Q3 report",
		"count": 42,
		"active": true,
		"customer": {"name": "Acme", "address": {"city": "Berlin"}}
	}`))
	require.NoError(t, err)

	assert.Equal(t, StringValue("Q3 report"), rec["title"])
	assert.Equal(t, NumberValue(42), rec["count"])
	assert.Equal(t, BoolValue(true), rec["active"])

	city, ok := rec.Lookup("customer.address.city")
	require.True(t, ok)
	assert.Equal(t, "Berlin", city.Str)
}

func TestParseJSONTableBlock(t *testing.T) {
	p := NewProcessor()
	rec, err := p.ParseJSON([]byte(`{
		"sales": [
			{"month": "Jan", "amount": 100},
			{"month": "Feb", "amount": 200},
			{"month": "Mar", "amount": 150}
		]
	}`))
	require.NoError(t, err)

	v, ok := rec["sales"]
	require.True(t, ok)
	require.Equal(t, KindTable, v.Kind)

	tbl := v.Table
	require.Len(t, tbl.Rows, 3)
	assert.True(t, tbl.ChartEligible)
	assert.Equal(t, []string{"amount"}, tbl.NumericColumns())

	x, ok := tbl.FirstTextColumn()
	require.True(t, ok)
	assert.Equal(t, "month", x)
}

func TestParseJSONRaggedObjectsUseKeyUnion(t *testing.T) {
	p := NewProcessor()
	rec, err := p.ParseJSON([]byte(`{
		"rows": [
			{"a": 1, "b": "x"},
			{"a": 2, "c": "y"}
		]
	}`))
	require.NoError(t, err)

	tbl := rec["rows"].Table
	require.Len(t, tbl.Columns, 3)
	assert.Equal(t, KindNull, tbl.Rows[0]["c"].Kind)
	assert.Equal(t, KindNull, tbl.Rows[1]["b"].Kind)
	assert.Equal(t, []string{"a"}, tbl.NumericColumns())
}

func TestParseJSONScalarList(t *testing.T) {
	p := NewProcessor()
	rec, err := p.ParseJSON([]byte(`{"tags": ["red", "green"]}`))
	require.NoError(t, err)

	tbl := rec["tags"].Table
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "red", tbl.Rows[0]["value"].Str)
	assert.False(t, tbl.ChartEligible)
}

func TestParseJSONMalformed(t *testing.T) {
	p := NewProcessor()
	_, err := p.ParseJSON([]byte(`{"broken":`))
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = p.ParseJSON([]byte(`[1,2,3]`))
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestParseCSVTypesColumnsByScanningAllRows(t *testing.T) {
	p := NewProcessor()
	rec, err := p.ParseCSV("sales", []byte("month,amount\nJan,100\nFeb,\nMar,abc\n"))
	require.NoError(t, err)

	tbl := rec["data"].Table
	// "abc" in row 3 disqualifies the column even though earlier cells parse.
	assert.Empty(t, tbl.NumericColumns())
	assert.False(t, tbl.ChartEligible)
}

func TestParseCSVChartEligibility(t *testing.T) {
	p := NewProcessor()
	rec, err := p.ParseCSV("sales", []byte("month,amount\nJan,100\nFeb,200\nMar,150\n"))
	require.NoError(t, err)

	tbl := rec["data"].Table
	require.Len(t, tbl.Rows, 3)
	assert.True(t, tbl.ChartEligible)
	assert.Equal(t, NumberValue(100), tbl.Rows[0]["amount"])
	assert.Equal(t, "sales", rec["title"].Str)
}

func TestParseCSVEmptyCellStaysNull(t *testing.T) {
	p := NewProcessor()
	rec, err := p.ParseCSV("x", []byte("a,b\n1,\n2,3\n"))
	require.NoError(t, err)

	tbl := rec["data"].Table
	assert.Equal(t, KindNull, tbl.Rows[0]["b"].Kind)
	// b is still numeric: empty cells do not disqualify a column.
	assert.Contains(t, tbl.NumericColumns(), "b")
}

func TestParseCSVSemicolonSniffing(t *testing.T) {
	p := NewProcessor()
	rec, err := p.ParseCSV("eu", []byte("month;amount\nJan;100\nFeb;200\n"))
	require.NoError(t, err)

	tbl := rec["data"].Table
	require.Len(t, tbl.Columns, 2)
	assert.Equal(t, []string{"amount"}, tbl.NumericColumns())
}

func TestParseCSVInconsistentColumns(t *testing.T) {
	p := NewProcessor()
	_, err := p.ParseCSV("bad", []byte("a,b\n1,2,3\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedInput))
}

func TestTitleExtraction(t *testing.T) {
	p := NewProcessor()

	rec, err := p.ParseJSON([]byte(`{"document": {"title": "Contract 7"}}`))
	require.NoError(t, err)
	title, ok := rec.Title()
	require.True(t, ok)
	assert.Equal(t, "Contract 7", title)

	rec, err = p.ParseJSON([]byte(`{"company": {"name": "Acme"}}`))
	require.NoError(t, err)
	title, ok = rec.Title()
	require.True(t, ok)
	assert.Equal(t, "Acme", title)

	rec, err = p.ParseJSON([]byte(`{"x": 1}`))
	require.NoError(t, err)
	_, ok = rec.Title()
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	p := NewProcessor()
	rec, err := p.ParseJSON([]byte(`{"customer": {"name": "Acme"}, "rows": [{"a": 1}, {"a": 2}]}`))
	require.NoError(t, err)

	cp := rec.Clone()
	cp["customer"].Rec["name"] = StringValue("Changed")
	cp["rows"].Table.Rows[0]["a"] = NumberValue(99)

	name, _ := rec.Lookup("customer.name")
	assert.Equal(t, "Acme", name.Str)
	assert.Equal(t, NumberValue(1), rec["rows"].Table.Rows[0]["a"])
}
