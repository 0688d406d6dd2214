package render

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"docforge.org/internal/record"
)

// ElementError reports a fatal failure producing one rendered element,
// such as a chart that would not rasterize. Ref is the record path.
type ElementError struct {
	Ref string
	Err error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("render element %s: %v", e.Ref, e.Err)
}

func (e *ElementError) Unwrap() error { return e.Err }

// Warning records a non-fatal render problem: the referenced path was
// absent (or unusable) and the directive rendered empty instead of
// aborting.
type Warning struct {
	Path   string
	Detail string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Path, w.Detail)
}

// ImageStore is the image-store collaborator resolving opaque internal
// image identifiers.
type ImageStore interface {
	Resolve(ctx context.Context, id string) ([]byte, error)
}

// Engine merges a canonical record into resolved template content.
// Chart rasterization is CPU-bound and runs under a bounded semaphore;
// external image fetches are rate-limited.
type Engine struct {
	images  ImageStore
	client  *http.Client
	limiter *rate.Limiter
	charts  *semaphore.Weighted
}

// Option configures an Engine.
type Option func(*Engine)

// WithImageStore wires the image-store collaborator.
func WithImageStore(s ImageStore) Option {
	return func(e *Engine) { e.images = s }
}

// WithHTTPClient overrides the client used for external image URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.client = c }
}

// WithFetchLimit overrides the external fetch rate limit.
func WithFetchLimit(l rate.Limit, burst int) Option {
	return func(e *Engine) { e.limiter = rate.NewLimiter(l, burst) }
}

// WithChartConcurrency bounds concurrent chart rasterization.
func WithChartConcurrency(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.charts = semaphore.NewWeighted(n)
		}
	}
}

// NewEngine constructs an Engine with conservative defaults.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		charts:  semaphore.NewWeighted(4),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type fragKind int

const (
	fragLiteral fragKind = iota // template text, emitted verbatim
	fragValue                   // substituted value, escaped in HTML mode
	fragBlock
)

type fragment struct {
	kind  fragKind
	text  string
	block Block
}

// RenderTree renders template content into the block-tree intermediate
// consumed by the Word and PDF exporters.
func (e *Engine) RenderTree(ctx context.Context, content []byte, rec record.Record) (*Doc, []Warning, error) {
	frags, warns, err := e.eval(ctx, string(content), rec)
	if err != nil {
		return nil, nil, err
	}
	doc := &Doc{}
	if title, ok := rec.Title(); ok {
		doc.Title = title
	}
	doc.Blocks = treeBlocks(frags)
	return doc, warns, nil
}

// RenderHTML renders template content (already HTML) into the final HTML
// string; substituted values are escaped, tables and charts become markup.
func (e *Engine) RenderHTML(ctx context.Context, content []byte, rec record.Record) (string, []Warning, error) {
	frags, warns, err := e.eval(ctx, string(content), rec)
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	for _, f := range frags {
		switch f.kind {
		case fragLiteral:
			b.WriteString(f.text)
		case fragValue:
			b.WriteString(html.EscapeString(f.text))
		case fragBlock:
			writeHTMLBlock(&b, f.block)
		}
	}
	return b.String(), warns, nil
}

func (e *Engine) eval(ctx context.Context, content string, rec record.Record) ([]fragment, []Warning, error) {
	nodes, err := parse(content)
	if err != nil {
		return nil, nil, err
	}
	ev := &evaluator{engine: e, root: rec}
	frags, err := ev.evalNodes(ctx, nodes, rec)
	if err != nil {
		return nil, nil, err
	}
	return frags, ev.warns, nil
}

type evaluator struct {
	engine *Engine
	root   record.Record
	warns  []Warning
}

func (ev *evaluator) warn(path, detail string) {
	ev.warns = append(ev.warns, Warning{Path: path, Detail: detail})
}

// lookup resolves against the current scope first, then the root record, so
// loop bodies can still reference top-level fields.
func (ev *evaluator) lookup(scope record.Record, path string) (record.Value, bool) {
	if v, ok := scope.Lookup(path); ok {
		return v, true
	}
	if len(ev.root) > 0 {
		return ev.root.Lookup(path)
	}
	return record.Value{}, false
}

func (ev *evaluator) evalNodes(ctx context.Context, nodes []node, scope record.Record) ([]fragment, error) {
	var out []fragment
	for _, n := range nodes {
		frags, err := ev.evalNode(ctx, n, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, frags...)
	}
	return out, nil
}

func (ev *evaluator) evalNode(ctx context.Context, n node, scope record.Record) ([]fragment, error) {
	switch t := n.(type) {
	case textNode:
		return []fragment{{kind: fragLiteral, text: string(t)}}, nil

	case substNode:
		v, ok := ev.lookup(scope, string(t))
		if !ok {
			ev.warn(string(t), "missing placeholder data")
			return []fragment{{kind: fragValue}}, nil
		}
		return []fragment{{kind: fragValue, text: v.String()}}, nil

	case ifNode:
		v, ok := ev.lookup(scope, t.path)
		if !ok {
			ev.warn(t.path, "missing placeholder data")
			return nil, nil
		}
		if !v.Truthy() {
			return nil, nil
		}
		return ev.evalNodes(ctx, t.children, scope)

	case eachNode:
		v, ok := ev.lookup(scope, t.path)
		if !ok {
			ev.warn(t.path, "missing placeholder data")
			return nil, nil
		}
		switch v.Kind {
		case record.KindTable:
			var out []fragment
			for _, row := range v.Table.Rows {
				frags, err := ev.evalNodes(ctx, t.children, row)
				if err != nil {
					return nil, err
				}
				out = append(out, frags...)
			}
			return out, nil
		case record.KindRecord:
			return ev.evalNodes(ctx, t.children, v.Rec)
		default:
			ev.warn(t.path, "not a repeatable block")
			return nil, nil
		}

	case tableNode:
		v, ok := ev.lookup(scope, string(t))
		if !ok {
			ev.warn(string(t), "missing placeholder data")
			return nil, nil
		}
		if v.Kind != record.KindTable || v.Table == nil {
			ev.warn(string(t), "not a table block")
			return nil, nil
		}
		return []fragment{{kind: fragBlock, block: expandTable(string(t), v.Table)}}, nil

	case chartNode:
		v, ok := ev.lookup(scope, string(t))
		if !ok {
			ev.warn(string(t), "missing placeholder data")
			return nil, nil
		}
		if v.Kind != record.KindTable || v.Table == nil {
			ev.warn(string(t), "not a table block")
			return nil, nil
		}
		if !v.Table.ChartEligible {
			ev.warn(string(t), "table block is not chart-eligible")
			return nil, nil
		}
		img, err := ev.engine.renderChart(ctx, string(t), v.Table)
		if err != nil {
			return nil, &ElementError{Ref: string(t), Err: err}
		}
		return []fragment{{kind: fragBlock, block: img}}, nil

	case imageNode:
		v, ok := ev.lookup(scope, string(t))
		if !ok {
			ev.warn(string(t), "missing placeholder data")
			return nil, nil
		}
		source := v.String()
		if source == "" {
			ev.warn(string(t), "empty image source")
			return nil, nil
		}
		img, err := ev.engine.resolveImage(ctx, string(t), source)
		if err != nil {
			// Policy as for missing data: render without the image.
			ev.warn(string(t), fmt.Sprintf("image unavailable: %v", err))
			return nil, nil
		}
		return []fragment{{kind: fragBlock, block: img}}, nil

	default:
		return nil, fmt.Errorf("%w: unhandled node %T", ErrSyntax, n)
	}
}

func expandTable(ref string, t *record.Table) Table {
	out := Table{Ref: ref}
	for _, c := range t.Columns {
		out.Columns = append(out.Columns, c.Name)
	}
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cells[i] = row[c.Name].String()
		}
		out.Rows = append(out.Rows, cells)
	}
	return out
}

// treeBlocks folds fragments into paragraphs and headings. Lines starting
// with one to three '#' characters become headings.
func treeBlocks(frags []fragment) []Block {
	var blocks []Block
	var text strings.Builder

	flush := func() {
		if text.Len() == 0 {
			return
		}
		for _, line := range strings.Split(text.String(), "\n") {
			line = strings.TrimRight(line, " \t\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			level := 0
			for level < 3 && strings.HasPrefix(line[level:], "#") {
				level++
			}
			if level > 0 && strings.HasPrefix(line[level:], " ") {
				blocks = append(blocks, Heading{Text: strings.TrimSpace(line[level:]), Level: level})
			} else {
				blocks = append(blocks, Paragraph{Text: strings.TrimLeft(line, " \t")})
			}
		}
		text.Reset()
	}

	for _, f := range frags {
		switch f.kind {
		case fragLiteral, fragValue:
			text.WriteString(f.text)
		case fragBlock:
			flush()
			blocks = append(blocks, f.block)
		}
	}
	flush()
	return blocks
}
