// Package pdfmeta extracts best-effort metadata from uploaded PDFs.
package pdfmeta

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PageCount returns the number of pages in content. Malformed documents yield
// an error instead of a panic.
func PageCount(content []byte) (n int, err error) {
	if len(content) == 0 {
		return 0, fmt.Errorf("empty document")
	}
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	return reader.NumPage(), nil
}
