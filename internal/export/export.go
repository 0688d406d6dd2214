package export

import (
	"fmt"

	"docforge.org/internal/template"
)

// Error reports a failure while producing one output element. Ref names
// the element (record path of a table, chart or image, or "document" for
// whole-file failures) so the caller can report which part broke.
type Error struct {
	Format template.Format
	Ref    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export %s: element %s: %v", e.Format, e.Ref, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func exportErr(format template.Format, ref string, err error) error {
	return &Error{Format: format, Ref: ref, Err: err}
}

// MIMEType returns the content type of a finished artifact.
func MIMEType(f template.Format) string {
	switch f {
	case template.FormatWord:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case template.FormatPDF:
		return "application/pdf"
	case template.FormatHTML:
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}

// FileExt returns the artifact filename extension, dot included.
func FileExt(f template.Format) string {
	switch f {
	case template.FormatWord:
		return ".docx"
	case template.FormatPDF:
		return ".pdf"
	case template.FormatHTML:
		return ".html"
	}
	return ".bin"
}
