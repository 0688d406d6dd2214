package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"

	"docforge.org/internal/render"
	"docforge.org/internal/template"
)

const (
	pdfMarginMM    = 15.0
	pdfBodyFontPt  = 11.0
	pdfTitleFontPt = 18.0
)

// PDF lays the block tree out on A4 pages.
func PDF(ctx context.Context, doc *render.Doc) ([]byte, error) {
	p := fpdf.New("P", "mm", "A4", "")
	p.SetMargins(pdfMarginMM, pdfMarginMM, pdfMarginMM)
	p.SetAutoPageBreak(true, pdfMarginMM)
	p.AddPage()

	if doc.Title != "" {
		p.SetFont("Helvetica", "B", pdfTitleFontPt)
		p.MultiCell(0, 9, doc.Title, "", "L", false)
		p.Ln(3)
	}

	for _, blk := range doc.Blocks {
		switch t := blk.(type) {
		case render.Heading:
			size := pdfTitleFontPt - float64(t.Level)*2
			p.SetFont("Helvetica", "B", size)
			p.MultiCell(0, 8, t.Text, "", "L", false)
			p.Ln(1)
		case render.Paragraph:
			p.SetFont("Helvetica", "", pdfBodyFontPt)
			p.MultiCell(0, 6, t.Text, "", "L", false)
			p.Ln(1)
		case render.Table:
			pdfTable(p, t)
		case render.Image:
			if err := pdfImage(p, t); err != nil {
				return nil, exportErr(template.FormatPDF, t.Ref, err)
			}
		}
		if p.Err() {
			return nil, exportErr(template.FormatPDF, pdfBlockRef(blk), p.Error())
		}
	}

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, exportErr(template.FormatPDF, "document", err)
	}
	return buf.Bytes(), nil
}

func pdfBlockRef(blk render.Block) string {
	switch t := blk.(type) {
	case render.Table:
		return t.Ref
	case render.Image:
		return t.Ref
	case render.Heading:
		return t.Text
	}
	return "document"
}

func pdfTable(p *fpdf.Fpdf, t render.Table) {
	if len(t.Columns) == 0 {
		return
	}
	pageW, _ := p.GetPageSize()
	colW := (pageW - 2*pdfMarginMM) / float64(len(t.Columns))

	p.SetFont("Helvetica", "B", pdfBodyFontPt)
	p.SetFillColor(235, 235, 235)
	for _, col := range t.Columns {
		p.CellFormat(colW, 7, col, "1", 0, "L", true, 0, "")
	}
	p.Ln(-1)

	p.SetFont("Helvetica", "", pdfBodyFontPt)
	for _, row := range t.Rows {
		for _, cell := range row {
			p.CellFormat(colW, 7, cell, "1", 0, "L", false, 0, "")
		}
		p.Ln(-1)
	}
	p.Ln(2)
}

func pdfImage(p *fpdf.Fpdf, img render.Image) error {
	var imgType string
	switch img.MIME {
	case "image/png":
		imgType = "PNG"
	case "image/jpeg":
		imgType = "JPG"
	case "image/gif":
		imgType = "GIF"
	default:
		return fmt.Errorf("unsupported image type %s", img.MIME)
	}

	opts := fpdf.ImageOptions{ImageType: imgType, ReadDpi: false}
	p.RegisterImageOptionsReader(img.Ref, opts, bytes.NewReader(img.Data))
	if p.Err() {
		err := p.Error()
		p.ClearError()
		return err
	}

	pageW, _ := p.GetPageSize()
	maxW := pageW - 2*pdfMarginMM
	// 96 dpi pixel to mm, clamped to the printable width.
	w := float64(img.Width) * 25.4 / 96
	if w > maxW || w == 0 {
		w = maxW
	}
	p.ImageOptions(img.Ref, -1, -1, w, 0, true, opts, 0, "")
	if p.Err() {
		err := p.Error()
		p.ClearError()
		return err
	}
	p.Ln(2)
	return nil
}
