package secure

import (
	"fmt"
	"html"
	"strings"
)

// watermarkHTML injects a fixed-position overlay ahead of the closing
// body tag. Protection has no HTML equivalent and is rejected upstream.
func watermarkHTML(artifact []byte, wm Watermark) ([]byte, error) {
	if wm.Text == "" {
		return nil, fmt.Errorf("html watermark requires text")
	}
	overlay := fmt.Sprintf(
		`<div class="watermark" style="position:fixed;top:50%%;left:50%%;`+
			`transform:translate(-50%%,-50%%) rotate(-45deg);font-size:6em;color:#888;`+
			`opacity:%.2f;pointer-events:none;white-space:nowrap;z-index:9999">%s</div>`,
		wm.opacity(), html.EscapeString(wm.Text))

	body := string(artifact)
	if i := strings.LastIndex(body, "</body>"); i >= 0 {
		return []byte(body[:i] + overlay + "\n" + body[i:]), nil
	}
	return []byte(body + overlay), nil
}
