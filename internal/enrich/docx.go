package enrich

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const wordMLNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// Docx pulls the text runs out of a WordprocessingML package. The text is
// exact, so confidence is always 1.
type Docx struct{}

func (Docx) ExtractText(ctx context.Context, data []byte, mimeType string) (*OCRResult, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, newError(OpOCR, KindInput, fmt.Errorf("not a docx package: %w", err))
	}

	var body *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return nil, newError(OpOCR, KindInput, errors.New("docx package has no word/document.xml"))
	}

	rc, err := body.Open()
	if err != nil {
		return nil, newError(OpOCR, KindInput, err)
	}
	defer rc.Close()

	text, err := wordText(ctx, rc)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, newError(OpOCR, KindNoText, errors.New("docx contains no text"))
	}

	return &OCRResult{Text: text, Confidence: 1}, nil
}

func wordText(ctx context.Context, r io.Reader) (string, error) {
	var (
		decoder = xml.NewDecoder(r)
		out     strings.Builder
		inText  bool
	)

	for {
		if err := ctx.Err(); err != nil {
			return "", AsError(OpOCR, err)
		}

		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", newError(OpOCR, KindInput, fmt.Errorf("failed to parse document.xml: %w", err))
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordMLNamespace {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteByte('\t')
			case "br", "cr":
				out.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordMLNamespace {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}

	return strings.TrimSpace(out.String()), nil
}
