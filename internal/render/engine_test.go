package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docforge.org/internal/record"
)

// 1x1 transparent PNG.
const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

func testRecord() record.Record {
	return record.Record{
		"title":    record.StringValue("Monthly Report"),
		"customer": record.RecordValue(record.Record{"name": record.StringValue("Acme & Co")}),
		"vip":      record.BoolValue(true),
		"sales": record.TableValue(&record.Table{
			Columns: []record.Column{
				{Name: "month", Numeric: false},
				{Name: "amount", Numeric: true},
			},
			Rows: []record.Record{
				{"month": record.StringValue("Jan"), "amount": record.NumberValue(120)},
				{"month": record.StringValue("Feb"), "amount": record.NumberValue(95)},
			},
			ChartEligible: true,
		}),
	}
}

func TestRenderTreeSubstitutionAndHeadings(t *testing.T) {
	e := NewEngine()
	doc, warns, err := e.RenderTree(context.Background(),
		[]byte("# Report\nCustomer: {{customer.name}}\n"), testRecord())
	require.NoError(t, err)
	assert.Empty(t, warns)

	assert.Equal(t, "Monthly Report", doc.Title)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, Heading{Text: "Report", Level: 1}, doc.Blocks[0])
	assert.Equal(t, Paragraph{Text: "Customer: Acme & Co"}, doc.Blocks[1])
}

func TestRenderMissingPathWarnsAndRendersEmpty(t *testing.T) {
	e := NewEngine()
	doc, warns, err := e.RenderTree(context.Background(),
		[]byte("Ref: {{order.missing}}!"), testRecord())
	require.NoError(t, err)

	require.Len(t, warns, 1)
	assert.Equal(t, "order.missing", warns[0].Path)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, Paragraph{Text: "Ref: !"}, doc.Blocks[0])
}

func TestRenderConditional(t *testing.T) {
	e := NewEngine()
	rec := testRecord()

	out, warns, err := e.RenderHTML(context.Background(),
		[]byte("{{#if vip}}gold{{/if}}{{#if absent}}never{{/if}}"), rec)
	require.NoError(t, err)
	assert.Equal(t, "gold", out)
	require.Len(t, warns, 1)
	assert.Equal(t, "absent", warns[0].Path)

	rec["vip"] = record.BoolValue(false)
	out, _, err = e.RenderHTML(context.Background(), []byte("{{#if vip}}gold{{/if}}"), rec)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRenderEachOverTableWithRootFallback(t *testing.T) {
	e := NewEngine()
	out, warns, err := e.RenderHTML(context.Background(),
		[]byte("{{#each sales}}{{month}}:{{amount}} for {{customer.name}};{{/each}}"), testRecord())
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.Equal(t, "Jan:120 for Acme &amp; Co;Feb:95 for Acme &amp; Co;", out)
}

func TestRenderTableBlock(t *testing.T) {
	e := NewEngine()
	doc, _, err := e.RenderTree(context.Background(), []byte("{{table sales}}"), testRecord())
	require.NoError(t, err)

	require.Len(t, doc.Blocks, 1)
	tbl := doc.Blocks[0].(Table)
	assert.Equal(t, "sales", tbl.Ref)
	assert.Equal(t, []string{"month", "amount"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"Jan", "120"}, tbl.Rows[0])
}

func TestRenderHTMLEscapesValuesNotTemplate(t *testing.T) {
	e := NewEngine()
	rec := record.Record{"note": record.StringValue(`<script>alert("x")</script>`)}
	out, _, err := e.RenderHTML(context.Background(), []byte("<p>{{note}}</p>"), rec)
	require.NoError(t, err)
	assert.Equal(t, "<p>&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;</p>", out)
}

func TestRenderChartProducesPNG(t *testing.T) {
	e := NewEngine()
	doc, warns, err := e.RenderTree(context.Background(), []byte("{{chart sales}}"), testRecord())
	require.NoError(t, err)
	assert.Empty(t, warns)

	require.Len(t, doc.Blocks, 1)
	img := doc.Blocks[0].(Image)
	assert.Equal(t, "sales", img.Ref)
	assert.Equal(t, "image/png", img.MIME)
	assert.True(t, len(img.Data) > 8)
	assert.Equal(t, "\x89PNG", string(img.Data[:4]))
}

func TestRenderChartIneligibleWarns(t *testing.T) {
	e := NewEngine()
	rec := record.Record{
		"names": record.TableValue(&record.Table{
			Columns: []record.Column{{Name: "who", Numeric: false}},
			Rows: []record.Record{
				{"who": record.StringValue("a")},
				{"who": record.StringValue("b")},
			},
		}),
	}
	doc, warns, err := e.RenderTree(context.Background(), []byte("{{chart names}}"), rec)
	require.NoError(t, err)
	assert.Empty(t, doc.Blocks)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Detail, "chart-eligible")
}

func TestRenderSyntaxErrorIsFatal(t *testing.T) {
	e := NewEngine()
	_, _, err := e.RenderTree(context.Background(), []byte("{{#if a}}x"), testRecord())
	require.ErrorIs(t, err, ErrSyntax)
}

func TestImageInlineBase64(t *testing.T) {
	e := NewEngine()
	rec := record.Record{"logo": record.StringValue(tinyPNG)}
	doc, warns, err := e.RenderTree(context.Background(), []byte("{{image logo}}"), rec)
	require.NoError(t, err)
	assert.Empty(t, warns)

	img := doc.Blocks[0].(Image)
	assert.Equal(t, "image/png", img.MIME)
	assert.Equal(t, 1, img.Width)
	assert.Equal(t, 1, img.Height)
}

func TestImageDataURI(t *testing.T) {
	e := NewEngine()
	rec := record.Record{"logo": record.StringValue("data:image/png;base64," + tinyPNG)}
	doc, warns, err := e.RenderTree(context.Background(), []byte("{{image logo}}"), rec)
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.Equal(t, "image/png", doc.Blocks[0].(Image).MIME)
}

type stubImages map[string][]byte

func (s stubImages) Resolve(_ context.Context, id string) ([]byte, error) {
	data, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("image %s not found", id)
	}
	return data, nil
}

func TestImageStoreLookup(t *testing.T) {
	raw, err := base64.StdEncoding.DecodeString(tinyPNG)
	require.NoError(t, err)

	e := NewEngine(WithImageStore(stubImages{"42": raw}))
	rec := record.Record{
		"logo":    record.StringValue("image_id:42"),
		"missing": record.StringValue("image_id:7"),
	}

	doc, warns, err := e.RenderTree(context.Background(),
		[]byte("{{image logo}}{{image missing}}"), rec)
	require.NoError(t, err)

	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "logo", doc.Blocks[0].(Image).Ref)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Detail, "image unavailable")
}

func TestImageURLFetch(t *testing.T) {
	raw, err := base64.StdEncoding.DecodeString(tinyPNG)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "gone.png") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	e := NewEngine(WithHTTPClient(srv.Client()))
	rec := record.Record{
		"logo": record.StringValue(srv.URL + "/logo.png"),
		"gone": record.StringValue(srv.URL + "/gone.png"),
	}

	doc, warns, err := e.RenderTree(context.Background(),
		[]byte("{{image logo}}{{image gone}}"), rec)
	require.NoError(t, err)

	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "image/png", doc.Blocks[0].(Image).MIME)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Detail, "status 404")
}

func TestHTMLTableMarkup(t *testing.T) {
	e := NewEngine()
	out, _, err := e.RenderHTML(context.Background(), []byte("{{table sales}}"), testRecord())
	require.NoError(t, err)
	assert.Contains(t, out, "<th>month</th>")
	assert.Contains(t, out, "<td>Jan</td>")
	assert.Contains(t, out, "<td>120</td>")
}
