package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
)

// Image payloads are bounded so a hostile URL cannot balloon memory.
const maxImageBytes = 10 << 20

// resolveImage turns an image directive's source value into an embedded
// image. Three source forms: inline base64 (with or without a data URI
// prefix), "image_id:<n>" resolved through the image-store collaborator,
// and an http(s) URL fetched under the engine's rate limit.
func (e *Engine) resolveImage(ctx context.Context, ref, source string) (Image, error) {
	var data []byte
	var err error

	switch {
	case strings.HasPrefix(source, "image_id:"):
		data, err = e.fetchStored(ctx, strings.TrimPrefix(source, "image_id:"))
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		data, err = e.fetchURL(ctx, source)
	case strings.HasPrefix(source, "data:"):
		data, err = decodeDataURI(source)
	default:
		data, err = base64.StdEncoding.DecodeString(source)
		if err != nil {
			err = fmt.Errorf("decode base64 image: %w", err)
		}
	}
	if err != nil {
		return Image{}, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("unrecognized image data: %w", err)
	}
	return Image{
		Ref:    ref,
		MIME:   "image/" + format,
		Data:   data,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

func (e *Engine) fetchStored(ctx context.Context, id string) ([]byte, error) {
	if e.images == nil {
		return nil, fmt.Errorf("no image store configured for image_id:%s", id)
	}
	data, err := e.images.Resolve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve image_id:%s: %w", id, err)
	}
	return data, nil
}

func (e *Engine) fetchURL(ctx context.Context, url string) ([]byte, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d from %s", resp.StatusCode, url)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return data, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 || !strings.Contains(uri[:comma], "base64") {
		return nil, fmt.Errorf("unsupported data URI")
	}
	data, err := base64.StdEncoding.DecodeString(uri[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("decode data URI: %w", err)
	}
	return data, nil
}
