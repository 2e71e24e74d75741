package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// NativeText extracts the embedded text layer from PDF bytes, page by page up
// to maxPages, pages joined with a space. Individual page failures are
// skipped; a failure to parse the document at all is returned. The pdf
// package panics on some malformed inputs, so this recovers and reports those
// as errors.
func NativeText(data []byte, maxPages int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("parse pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	total := reader.NumPage()
	if total > maxPages {
		total = maxPages
	}

	var sb strings.Builder
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString(" ")
	}
	return sb.String(), nil
}
