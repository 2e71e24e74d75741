package extract

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
)

// ocrDPI is the rasterization resolution for recognition.
const ocrDPI = 300

// TesseractOCR implements OCREngine by rasterizing pages with MuPDF and
// running Tesseract over each image.
type TesseractOCR struct {
	Languages []string
}

// NewTesseractOCR returns an engine configured for the given languages,
// defaulting to English plus German.
func NewTesseractOCR(languages []string) *TesseractOCR {
	if len(languages) == 0 {
		languages = []string{"eng", "deu"}
	}
	return &TesseractOCR{Languages: languages}
}

// Recognize rasterizes up to maxPages pages at a fixed resolution and
// concatenates the recognized text. Single-page failures are skipped.
func (t *TesseractOCR) Recognize(ctx context.Context, data []byte, maxPages int) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("rasterize pdf: %w", err)
	}
	defer doc.Close()

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(t.Languages...); err != nil {
		return "", fmt.Errorf("set ocr languages: %w", err)
	}

	total := doc.NumPage()
	if total > maxPages {
		total = maxPages
	}

	var sb strings.Builder
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		img, err := doc.ImageDPI(i, ocrDPI)
		if err != nil {
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			continue
		}
		if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
			continue
		}
		pageText, err := client.Text()
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString(" ")
	}
	return sb.String(), nil
}
