package render

// The format-specific intermediate: Word and PDF exporters consume a block
// tree, the HTML path produces a finished string instead.

// Doc is the rendered block tree for the word-processor and PDF exporters.
type Doc struct {
	Title  string
	Blocks []Block
}

// Block is one element of the tree. Closed set; exporters switch on the
// concrete type.
type Block interface {
	blockRef() string
}

// Heading is a titled section break, levels 1..3.
type Heading struct {
	Text  string
	Level int
}

// Paragraph is a run of body text.
type Paragraph struct {
	Text string
}

// Table is a table block expanded to format-native rows.
type Table struct {
	Ref     string // record path, carried for error reporting
	Columns []string
	Rows    [][]string
}

// Image is an embedded raster image (chart output or image directive).
type Image struct {
	Ref    string // record path or source hint
	MIME   string // image/png or image/jpeg
	Data   []byte
	Width  int
	Height int
}

func (h Heading) blockRef() string   { return h.Text }
func (p Paragraph) blockRef() string { return "" }
func (t Table) blockRef() string     { return t.Ref }
func (i Image) blockRef() string     { return i.Ref }
