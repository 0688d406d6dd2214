package secure

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// docxPart keeps the package order stable across a rewrite.
type docxPart struct {
	name string
	data []byte
}

func readDocx(artifact []byte) ([]docxPart, error) {
	zr, err := zip.NewReader(bytes.NewReader(artifact), int64(len(artifact)))
	if err != nil {
		return nil, fmt.Errorf("open word package: %w", err)
	}
	var parts []docxPart
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		parts = append(parts, docxPart{name: f.Name, data: data})
	}
	return parts, nil
}

func writeDocx(parts []docxPart) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func docxReplace(parts []docxPart, name string, data []byte) bool {
	for i := range parts {
		if parts[i].name == name {
			parts[i].data = data
			return true
		}
	}
	return false
}

func docxFind(parts []docxPart, name string) ([]byte, bool) {
	for _, p := range parts {
		if p.name == name {
			return p.data, true
		}
	}
	return nil, false
}

const wordHeaderTemplate = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:v="urn:schemas-microsoft-com:vml">
<w:p><w:r><w:pict>
<v:shapetype id="_x0000_t136" coordsize="21600,21600" path="m@7,l@8,m@5,21600l@6,21600e" adj="10800">
<v:path textpathok="t"/><v:textpath on="t" fitshape="t"/>
</v:shapetype>
<v:shape id="WordWatermark" type="#_x0000_t136" style="position:absolute;margin-left:0;margin-top:0;width:468pt;height:234pt;rotation:315;z-index:-251654144;mso-position-horizontal:center;mso-position-horizontal-relative:margin;mso-position-vertical:center;mso-position-vertical-relative:margin" fillcolor="silver" stroked="f">
<v:fill opacity="%s"/>
<v:textpath style="font-family:&quot;Calibri&quot;" string="%s"/>
</v:shape>
</w:pict></w:r></w:p>
</w:hdr>`

const wordHeaderRelID = "rIdHdrWm"

// watermarkWord splices a VML text watermark into a page header of the
// word package. Raster watermarks have no portable header equivalent.
func watermarkWord(artifact []byte, wm Watermark) ([]byte, error) {
	if wm.Text == "" {
		return nil, fmt.Errorf("word watermark requires text")
	}
	parts, err := readDocx(artifact)
	if err != nil {
		return nil, err
	}

	header := fmt.Sprintf(wordHeaderTemplate,
		fmt.Sprintf("%.2f", wm.opacity()), xmlAttrEscape(wm.Text))
	parts = append(parts, docxPart{name: "word/header1.xml", data: []byte(header)})

	ct, ok := docxFind(parts, "[Content_Types].xml")
	if !ok {
		return nil, fmt.Errorf("word package missing [Content_Types].xml")
	}
	override := `<Override PartName="/word/header1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"/>`
	updated := strings.Replace(string(ct), "</Types>", override+"</Types>", 1)
	docxReplace(parts, "[Content_Types].xml", []byte(updated))

	rels, ok := docxFind(parts, "word/_rels/document.xml.rels")
	if !ok {
		return nil, fmt.Errorf("word package missing document relationships")
	}
	rel := fmt.Sprintf(`<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/header" Target="header1.xml"/>`, wordHeaderRelID)
	updated = strings.Replace(string(rels), "</Relationships>", rel+"</Relationships>", 1)
	docxReplace(parts, "word/_rels/document.xml.rels", []byte(updated))

	doc, ok := docxFind(parts, "word/document.xml")
	if !ok {
		return nil, fmt.Errorf("word package missing document.xml")
	}
	ref := fmt.Sprintf(`<w:headerReference w:type="default" r:id="%s"/>`, wordHeaderRelID)
	body := string(doc)
	switch {
	case strings.Contains(body, "<w:sectPr/>"):
		body = strings.Replace(body, "<w:sectPr/>", "<w:sectPr>"+ref+"</w:sectPr>", 1)
	case strings.Contains(body, "<w:sectPr>"):
		body = strings.Replace(body, "<w:sectPr>", "<w:sectPr>"+ref, 1)
	default:
		return nil, fmt.Errorf("word document has no section properties")
	}
	docxReplace(parts, "word/document.xml", []byte(body))

	return writeDocx(parts)
}

// protectWord enforces read-only document protection in the settings part.
func protectWord(artifact []byte) ([]byte, error) {
	parts, err := readDocx(artifact)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtectionFailed, err)
	}
	settings, ok := docxFind(parts, "word/settings.xml")
	if !ok {
		return nil, fmt.Errorf("%w: word package missing settings.xml", ErrProtectionFailed)
	}

	guard := `<w:documentProtection w:edit="readOnly" w:enforcement="1"/>`
	body := string(settings)
	if strings.Contains(body, "<w:documentProtection") {
		return artifact, nil
	}
	open := strings.Index(body, "<w:settings")
	if open < 0 {
		return nil, fmt.Errorf("%w: malformed settings.xml", ErrProtectionFailed)
	}
	idx := open + strings.Index(body[open:], ">") + 1
	body = body[:idx] + guard + body[idx:]
	docxReplace(parts, "word/settings.xml", []byte(body))

	out, err := writeDocx(parts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtectionFailed, err)
	}
	// Fail closed: confirm the guard is really in the rewritten package.
	check, err := readDocx(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtectionFailed, err)
	}
	verify, ok := docxFind(check, "word/settings.xml")
	if !ok || !strings.Contains(string(verify), "<w:documentProtection") {
		return nil, fmt.Errorf("%w: protection not present after rewrite", ErrProtectionFailed)
	}
	return out, nil
}

func xmlAttrEscape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
