package template

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Format identifies an output/template format.
type Format string

const (
	FormatWord Format = "word"
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// ParseFormat normalizes a format string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatWord:
		return FormatWord, nil
	case FormatPDF:
		return FormatPDF, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unknown format: %q", s)
	}
}

// Version is one entry in a template's append-only version chain. Exactly
// one version per (name, format) carries IsLatest; numbers are strictly
// increasing and history is never deleted or mutated.
type Version struct {
	TemplateName string    `json:"template_name"`
	Format       Format    `json:"format"`
	Number       int       `json:"number"`
	ContentRef   string    `json:"content_ref"`
	CreatedAt    time.Time `json:"created_at"`
	ChangeLog    string    `json:"change_log"`
	IsLatest     bool      `json:"is_latest"`
}

var (
	// ErrTemplateNotFound means no chain exists for the name/format.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrVersionNotFound means the chain exists but the requested version
	// does not.
	ErrVersionNotFound = errors.New("template version not found")
	// ErrNotWritable means a concurrent writer won the head update; the
	// caller may retry.
	ErrNotWritable = errors.New("template not writable")
)
