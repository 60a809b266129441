package enrich

import (
	"context"
	"fmt"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimePDF  = "application/pdf"
	MimeDoc  = "application/msword"
	MimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Router sends each file to the extractor that understands its type. Images
// and PDFs go to Images, Word documents to Docx. Legacy .doc files are
// accepted for storage but cannot be read.
type Router struct {
	Images TextExtractor
	Docx   TextExtractor
}

func (r *Router) ExtractText(ctx context.Context, data []byte, mimeType string) (*OCRResult, error) {
	var next TextExtractor
	switch mimeType {
	case MimeJPEG, MimePNG, MimePDF:
		next = r.Images
	case MimeDocx:
		next = r.Docx
	}

	if next == nil {
		return nil, newError(OpOCR, KindUnsupported, fmt.Errorf("no text extractor for %s", mimeType))
	}

	return next.ExtractText(ctx, data, mimeType)
}
