package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"docforge.org/internal/render"
	"docforge.org/internal/template"
)

// EMU per pixel at 96 dpi, the OOXML drawing unit.
const emuPerPixel = 9525

const wordContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Default Extension="png" ContentType="image/png"/>
<Default Extension="jpeg" ContentType="image/jpeg"/>
<Default Extension="gif" ContentType="image/gif"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
<Override PartName="/word/settings.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.settings+xml"/>
</Types>`

const wordRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const wordStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:styleId="Normal" w:default="1"><w:name w:val="Normal"/><w:rPr><w:sz w:val="22"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:rPr><w:b/><w:sz w:val="36"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:rPr><w:b/><w:sz w:val="30"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>
</w:styles>`

const wordSettings = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:settings xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
</w:settings>`

type wordMedia struct {
	name string // media/image1.png
	rel  string // rId10
	data []byte
}

// Word writes the block tree as an OOXML word-processing document. The
// package is assembled by hand so the security post-processor can splice
// protection settings and header parts into known locations.
func Word(ctx context.Context, doc *render.Doc) ([]byte, error) {
	body, media, err := wordBody(doc)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name    string
		content []byte
	}{
		{"[Content_Types].xml", []byte(wordContentTypes)},
		{"_rels/.rels", []byte(wordRootRels)},
		{"word/document.xml", body},
		{"word/_rels/document.xml.rels", wordDocRels(media)},
		{"word/styles.xml", []byte(wordStyles)},
		{"word/settings.xml", []byte(wordSettings)},
	}
	for _, m := range media {
		parts = append(parts, struct {
			name    string
			content []byte
		}{"word/" + m.name, m.data})
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, exportErr(template.FormatWord, "document", err)
		}
		if _, err := w.Write(p.content); err != nil {
			return nil, exportErr(template.FormatWord, "document", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, exportErr(template.FormatWord, "document", err)
	}
	return buf.Bytes(), nil
}

func wordBody(doc *render.Doc) ([]byte, []wordMedia, error) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
		` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"` +
		` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
		` xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">` + "\n<w:body>\n")

	if doc.Title != "" {
		writeWordParagraph(&b, "Heading1", doc.Title, false)
	}

	var media []wordMedia
	for _, blk := range doc.Blocks {
		switch t := blk.(type) {
		case render.Heading:
			level := t.Level
			if level < 1 || level > 3 {
				level = 1
			}
			writeWordParagraph(&b, fmt.Sprintf("Heading%d", level), t.Text, false)
		case render.Paragraph:
			writeWordParagraph(&b, "", t.Text, false)
		case render.Table:
			writeWordTable(&b, t)
		case render.Image:
			m, err := wordImage(&b, t, len(media)+1)
			if err != nil {
				return nil, nil, exportErr(template.FormatWord, t.Ref, err)
			}
			media = append(media, m)
		}
	}
	b.WriteString("<w:sectPr/>\n</w:body>\n</w:document>\n")
	return []byte(b.String()), media, nil
}

func writeWordParagraph(b *strings.Builder, style, text string, bold bool) {
	b.WriteString("<w:p>")
	if style != "" {
		fmt.Fprintf(b, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, style)
	}
	b.WriteString("<w:r>")
	if bold {
		b.WriteString("<w:rPr><w:b/></w:rPr>")
	}
	fmt.Fprintf(b, `<w:t xml:space="preserve">%s</w:t>`, xmlEscape(text))
	b.WriteString("</w:r></w:p>\n")
}

func writeWordTable(b *strings.Builder, t render.Table) {
	b.WriteString(`<w:tbl><w:tblPr><w:tblBorders>` +
		`<w:top w:val="single" w:sz="4"/><w:bottom w:val="single" w:sz="4"/>` +
		`<w:left w:val="single" w:sz="4"/><w:right w:val="single" w:sz="4"/>` +
		`<w:insideH w:val="single" w:sz="4"/><w:insideV w:val="single" w:sz="4"/>` +
		`</w:tblBorders></w:tblPr>` + "\n")

	writeWordRow := func(cells []string, header bool) {
		b.WriteString("<w:tr>")
		for _, cell := range cells {
			b.WriteString("<w:tc><w:p><w:r>")
			if header {
				b.WriteString("<w:rPr><w:b/></w:rPr>")
			}
			fmt.Fprintf(b, `<w:t xml:space="preserve">%s</w:t>`, xmlEscape(cell))
			b.WriteString("</w:r></w:p></w:tc>")
		}
		b.WriteString("</w:tr>\n")
	}
	writeWordRow(t.Columns, true)
	for _, row := range t.Rows {
		writeWordRow(row, false)
	}
	b.WriteString("</w:tbl>\n")
}

func wordImage(b *strings.Builder, img render.Image, seq int) (wordMedia, error) {
	ext, ok := map[string]string{
		"image/png":  "png",
		"image/jpeg": "jpeg",
		"image/gif":  "gif",
	}[img.MIME]
	if !ok {
		return wordMedia{}, fmt.Errorf("unsupported image type %s", img.MIME)
	}
	m := wordMedia{
		name: fmt.Sprintf("media/image%d.%s", seq, ext),
		rel:  fmt.Sprintf("rId%d", 100+seq),
		data: img.Data,
	}

	cx := int64(img.Width) * emuPerPixel
	cy := int64(img.Height) * emuPerPixel
	name := xmlEscape(img.Ref)
	fmt.Fprintf(b, `<w:p><w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%d" cy="%d"/><wp:docPr id="%d" name="%s"/>`+
		`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic><pic:nvPicPr><pic:cNvPr id="%d" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
		`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`+"\n",
		cx, cy, seq, name, seq, name, m.rel, cx, cy)
	return m, nil
}

func wordDocRels(media []wordMedia) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + "\n" +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` + "\n" +
		`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/settings" Target="settings.xml"/>` + "\n")
	for _, m := range media {
		fmt.Fprintf(&b, `<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="%s"/>`+"\n",
			m.rel, m.name)
	}
	b.WriteString("</Relationships>")
	return []byte(b.String())
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
