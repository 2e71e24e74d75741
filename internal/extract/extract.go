package extract

import (
	"context"
	"strings"

	"filefolio-backend/internal/shared/metrics"
	"filefolio-backend/internal/shared/telemetry"
)

const (
	// defaultMaxPages bounds extraction cost for large documents.
	defaultMaxPages = 20
	// defaultMinNativeYield is the trimmed length below which a PDF is
	// treated as scanned and OCR is attempted.
	defaultMinNativeYield = 50
)

// OCREngine recognizes text from rasterized PDF pages.
type OCREngine interface {
	Recognize(ctx context.Context, data []byte, maxPages int) (string, error)
}

// NativeFunc extracts the embedded text layer from PDF bytes.
type NativeFunc func(data []byte, maxPages int) (string, error)

// Extractor pulls text out of a PDF in two stages: the native text layer
// first, then OCR over rasterized pages when the native yield suggests a
// scanned document.
type Extractor struct {
	OCR            OCREngine // nil disables the fallback
	MaxPages       int
	MinNativeYield int
	Native         NativeFunc
}

// New constructs an Extractor with production defaults. ocr may be nil.
func New(ocr OCREngine) *Extractor {
	return &Extractor{
		OCR:            ocr,
		MaxPages:       defaultMaxPages,
		MinNativeYield: defaultMinNativeYield,
		Native:         NativeText,
	}
}

// Extract returns the document text. A native parse failure is returned to
// the caller; an OCR failure degrades silently to whatever the native stage
// produced, which may be empty.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	maxPages := e.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	minYield := e.MinNativeYield
	if minYield <= 0 {
		minYield = defaultMinNativeYield
	}
	native := e.Native
	if native == nil {
		native = NativeText
	}

	text, err := native(data, maxPages)
	if err != nil {
		return "", err
	}

	if len(strings.TrimSpace(text)) >= minYield || e.OCR == nil {
		return text, nil
	}

	metrics.IncOCRFallback()
	ocrText, err := e.OCR.Recognize(ctx, data, maxPages)
	if err != nil {
		telemetry.Warn("extract.ocr_failed", map[string]any{"error": err.Error()})
		return text, nil
	}
	if len(strings.TrimSpace(ocrText)) > len(strings.TrimSpace(text)) {
		return ocrText, nil
	}
	return text, nil
}
