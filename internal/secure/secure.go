package secure

import (
	"context"
	"errors"
	"fmt"

	"docforge.org/internal/template"
)

var (
	// ErrUnsupportedProtection means the requested protection has no
	// equivalent in the target format. Fail closed: the caller must not
	// release the unprotected artifact.
	ErrUnsupportedProtection = errors.New("protection not supported for format")
	// ErrProtectionFailed means protection was attempted and did not take.
	// Fail closed, as above.
	ErrProtectionFailed = errors.New("protection failed")
)

// Watermark describes an overlay stamped onto every page or view of the
// artifact. Image is optional and only honored where the format allows a
// raster overlay.
type Watermark struct {
	Text    string
	Image   []byte  // PNG or JPEG bytes, PDF only
	Opacity float64 // 0..1, zero means the default
}

const defaultWatermarkOpacity = 0.15

func (w Watermark) opacity() float64 {
	if w.Opacity <= 0 || w.Opacity > 1 {
		return defaultWatermarkOpacity
	}
	return w.Opacity
}

// Protection describes how an artifact is locked down after export.
type Protection struct {
	// ReadOnly blocks editing. For PDF this encrypts with an owner
	// password and no user permissions; for Word it enforces document
	// protection.
	ReadOnly bool
	// OpenPassword, when set, is required to open the artifact at all.
	// PDF only.
	OpenPassword string
	// OwnerPassword guards protection settings. Generated when empty.
	OwnerPassword string
}

// ApplyWatermark stamps the watermark onto a finished artifact.
func ApplyWatermark(ctx context.Context, format template.Format, artifact []byte, wm Watermark) ([]byte, error) {
	if wm.Text == "" && len(wm.Image) == 0 {
		return artifact, nil
	}
	switch format {
	case template.FormatPDF:
		return watermarkPDF(artifact, wm)
	case template.FormatWord:
		return watermarkWord(artifact, wm)
	case template.FormatHTML:
		return watermarkHTML(artifact, wm)
	}
	return nil, fmt.Errorf("watermark: unknown format %q", format)
}

// ApplyProtection locks down a finished artifact. An error means the
// artifact must be withheld, never shipped unprotected.
func ApplyProtection(ctx context.Context, format template.Format, artifact []byte, p Protection) ([]byte, error) {
	if !p.ReadOnly && p.OpenPassword == "" {
		return artifact, nil
	}
	switch format {
	case template.FormatPDF:
		return protectPDF(artifact, p)
	case template.FormatWord:
		if p.OpenPassword != "" {
			return nil, fmt.Errorf("%w: word open password", ErrUnsupportedProtection)
		}
		return protectWord(artifact)
	case template.FormatHTML:
		return nil, fmt.Errorf("%w: html", ErrUnsupportedProtection)
	}
	return nil, fmt.Errorf("%w: unknown format %q", ErrUnsupportedProtection, format)
}
