package secure

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"docforge.org/internal/ids"
)

func watermarkPDF(artifact []byte, wm Watermark) ([]byte, error) {
	var mark *model.Watermark
	var err error
	if len(wm.Image) > 0 {
		desc := fmt.Sprintf("opacity:%.2f, rotation:45, scalefactor:0.5 rel", wm.opacity())
		mark, err = api.ImageWatermarkForReader(bytes.NewReader(wm.Image), desc, true, false, types.POINTS)
	} else {
		desc := fmt.Sprintf("fontname:Helvetica, points:48, opacity:%.2f, rotation:45, scalefactor:0.9 rel", wm.opacity())
		mark, err = api.TextWatermark(wm.Text, desc, true, false, types.POINTS)
	}
	if err != nil {
		return nil, fmt.Errorf("build pdf watermark: %w", err)
	}

	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(artifact), &out, nil, mark, nil); err != nil {
		return nil, fmt.Errorf("stamp pdf watermark: %w", err)
	}
	return out.Bytes(), nil
}

func protectPDF(artifact []byte, p Protection) ([]byte, error) {
	owner := p.OwnerPassword
	if owner == "" {
		owner = ids.Ref("own")
	}
	conf := model.NewAESConfiguration(p.OpenPassword, owner, 256)
	if p.ReadOnly {
		conf.Permissions = model.PermissionsNone
	}

	var out bytes.Buffer
	if err := api.Encrypt(bytes.NewReader(artifact), &out, conf); err != nil {
		return nil, fmt.Errorf("%w: pdf encrypt: %v", ErrProtectionFailed, err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("%w: pdf encrypt produced no output", ErrProtectionFailed)
	}
	return out.Bytes(), nil
}
