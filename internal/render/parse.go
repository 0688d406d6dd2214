package render

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax indicates malformed directive syntax. Fatal for the format
// being rendered; sibling formats are unaffected.
var ErrSyntax = errors.New("template syntax error")

// Directive grammar, shared by every template format:
//
//	{{path.to.field}}          scalar substitution
//	{{#if path}}...{{/if}}     conditional block
//	{{#each path}}...{{/each}} repeated block over a table or nested record
//	{{table path}}             native table expansion
//	{{chart path}}             chart rasterized from a chart-eligible table
//	{{image path}}             image from base64 / image_id:N / URL source
type node any

type textNode string

type substNode string

type ifNode struct {
	path     string
	children []node
}

type eachNode struct {
	path     string
	children []node
}

type tableNode string

type chartNode string

type imageNode string

func parse(content string) ([]node, error) {
	nodes, _, err := parseUntil(content, "")
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// parseUntil consumes nodes until the given closing tag ("/if", "/each") or
// end of input. It returns the unconsumed remainder so nested blocks can
// hand control back.
func parseUntil(s, until string) ([]node, string, error) {
	var nodes []node
	for s != "" {
		open := strings.Index(s, "{{")
		if open < 0 {
			nodes = append(nodes, textNode(s))
			s = ""
			break
		}
		if open > 0 {
			nodes = append(nodes, textNode(s[:open]))
		}
		s = s[open+2:]
		close := strings.Index(s, "}}")
		if close < 0 {
			return nil, "", fmt.Errorf("%w: unterminated directive", ErrSyntax)
		}
		tag := strings.TrimSpace(s[:close])
		s = s[close+2:]

		switch {
		case tag == "":
			return nil, "", fmt.Errorf("%w: empty directive", ErrSyntax)

		case strings.HasPrefix(tag, "/"):
			if tag == until {
				return nodes, s, nil
			}
			return nil, "", fmt.Errorf("%w: unexpected {{%s}}", ErrSyntax, tag)

		case strings.HasPrefix(tag, "#if "):
			path := strings.TrimSpace(tag[len("#if "):])
			if path == "" {
				return nil, "", fmt.Errorf("%w: #if without path", ErrSyntax)
			}
			children, rest, err := parseBlock(s, "/if", tag)
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, ifNode{path: path, children: children})
			s = rest

		case strings.HasPrefix(tag, "#each "):
			path := strings.TrimSpace(tag[len("#each "):])
			if path == "" {
				return nil, "", fmt.Errorf("%w: #each without path", ErrSyntax)
			}
			children, rest, err := parseBlock(s, "/each", tag)
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, eachNode{path: path, children: children})
			s = rest

		case strings.HasPrefix(tag, "#"):
			return nil, "", fmt.Errorf("%w: unknown block directive %q", ErrSyntax, tag)

		case strings.HasPrefix(tag, "table "):
			nodes = append(nodes, tableNode(strings.TrimSpace(tag[len("table "):])))

		case strings.HasPrefix(tag, "chart "):
			nodes = append(nodes, chartNode(strings.TrimSpace(tag[len("chart "):])))

		case strings.HasPrefix(tag, "image "):
			nodes = append(nodes, imageNode(strings.TrimSpace(tag[len("image "):])))

		default:
			if strings.ContainsAny(tag, " \t\n") {
				return nil, "", fmt.Errorf("%w: malformed directive %q", ErrSyntax, tag)
			}
			nodes = append(nodes, substNode(tag))
		}
	}
	if until != "" {
		return nil, "", fmt.Errorf("%w: missing {{%s}}", ErrSyntax, until)
	}
	return nodes, "", nil
}

func parseBlock(s, until, opening string) ([]node, string, error) {
	children, rest, err := parseUntil(s, until)
	if err != nil {
		if errors.Is(err, ErrSyntax) && strings.Contains(err.Error(), "missing") {
			return nil, "", fmt.Errorf("%w: unclosed {{%s}}", ErrSyntax, opening)
		}
		return nil, "", err
	}
	return children, rest, nil
}
