package extract

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

const (
	thumbnailDPI     = 150
	thumbnailWidth   = 300
	thumbnailHeight  = 400
	thumbnailQuality = 85
)

// ThumbnailRenderer renders a JPEG preview of a PDF's first page.
type ThumbnailRenderer struct{}

// Render rasterizes the first page and fits it into a 300x400 JPEG.
func (ThumbnailRenderer) Render(data []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("rasterize pdf: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	img, err := doc.ImageDPI(0, thumbnailDPI)
	if err != nil {
		return nil, fmt.Errorf("render first page: %w", err)
	}

	thumb := imaging.Fit(img, thumbnailWidth, thumbnailHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
