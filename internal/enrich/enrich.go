// Package enrich wraps the OCR and text analysis providers behind two small
// interfaces and normalizes their failures into classified errors.
package enrich

import (
	"context"

	"epatra/pkg/types"
)

// OCRResult is the text found in a file. Confidence is in [0, 1].
type OCRResult struct {
	Text       string
	Confidence float64
}

type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (*OCRResult, error)
}

// Analysis is the structured reading of OCR text. Fields always carries all
// eleven letter keys; unknown ones are nil.
type Analysis struct {
	Fields       types.ExtractedFields
	Summary      string
	DocumentType string
	Model        string
}

type TextAnalyzer interface {
	AnalyzeText(ctx context.Context, text string) (*Analysis, error)
}
