package render

import (
	"encoding/base64"
	"fmt"
	"html"
	"strings"
)

// writeHTMLBlock emits the HTML form of a structural block. Cell text is
// escaped; image bytes embed as a data URI so the output stays a single
// self-contained document.
func writeHTMLBlock(b *strings.Builder, blk Block) {
	switch t := blk.(type) {
	case Table:
		b.WriteString("<table>\n<thead><tr>")
		for _, col := range t.Columns {
			fmt.Fprintf(b, "<th>%s</th>", html.EscapeString(col))
		}
		b.WriteString("</tr></thead>\n<tbody>\n")
		for _, row := range t.Rows {
			b.WriteString("<tr>")
			for _, cell := range row {
				fmt.Fprintf(b, "<td>%s</td>", html.EscapeString(cell))
			}
			b.WriteString("</tr>\n")
		}
		b.WriteString("</tbody>\n</table>")

	case Image:
		fmt.Fprintf(b, `<img src="data:%s;base64,%s" alt=%q/>`,
			t.MIME, base64.StdEncoding.EncodeToString(t.Data), t.Ref)

	case Heading:
		fmt.Fprintf(b, "<h%d>%s</h%d>", t.Level, html.EscapeString(t.Text), t.Level)

	case Paragraph:
		fmt.Fprintf(b, "<p>%s</p>", html.EscapeString(t.Text))
	}
}
