package export

import (
	"fmt"
	"html"
	"strings"
)

const htmlStyle = `body{font-family:sans-serif;margin:2em auto;max-width:60em;line-height:1.5}
table{border-collapse:collapse;margin:1em 0}
th,td{border:1px solid #999;padding:.3em .6em}
th{background:#eee}
img{max-width:100%}`

// HTML wraps the rendered body in a self-contained document. The body is
// produced by the render engine and is already escaped where it must be.
func HTML(body, title string) []byte {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	if title != "" {
		fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	}
	fmt.Fprintf(&b, "<style>\n%s\n</style>\n</head>\n<body>\n", htmlStyle)
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>\n")
	return []byte(b.String())
}
