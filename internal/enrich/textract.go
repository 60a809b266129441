package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	textracttypes "github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/aws/smithy-go"
)

// TextractAPI is the part of the Textract client we call.
type TextractAPI interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

// Textract reads images and single page PDFs through AWS Textract.
type Textract struct {
	api TextractAPI
}

func NewTextract(cfg aws.Config) *Textract {
	return &Textract{api: textract.NewFromConfig(cfg)}
}

func NewTextractWithAPI(api TextractAPI) *Textract {
	return &Textract{api: api}
}

func (t *Textract) ExtractText(ctx context.Context, data []byte, mimeType string) (*OCRResult, error) {
	if len(data) == 0 {
		return nil, newError(OpOCR, KindInput, errors.New("empty file"))
	}

	out, err := t.api.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &textracttypes.Document{Bytes: data},
	})
	if err != nil {
		return nil, classifyTextractError(err)
	}

	var (
		lines []string
		total float64
	)
	for _, block := range out.Blocks {
		if block.BlockType != textracttypes.BlockTypeLine || block.Text == nil {
			continue
		}
		lines = append(lines, aws.ToString(block.Text))
		total += float64(aws.ToFloat32(block.Confidence))
	}

	if len(lines) == 0 {
		return nil, newError(OpOCR, KindNoText, errors.New("no text lines detected"))
	}

	return &OCRResult{
		Text:       strings.Join(lines, "\n"),
		Confidence: clampUnit(total / float64(len(lines)) / 100),
	}, nil
}

func classifyTextractError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return AsError(OpOCR, err)
	}

	switch apiErr.ErrorCode() {
	case "AccessDeniedException", "UnrecognizedClientException", "InvalidSignatureException", "ExpiredTokenException":
		return newError(OpOCR, KindRejected, err)
	case "ThrottlingException", "ProvisionedThroughputExceededException", "LimitExceededException", "InternalServerError":
		return newError(OpOCR, KindUnavailable, err)
	case "UnsupportedDocumentException":
		return newError(OpOCR, KindUnsupported, err)
	case "BadDocumentException", "DocumentTooLargeException", "InvalidParameterException":
		return newError(OpOCR, KindInput, err)
	}

	if apiErr.ErrorFault() == smithy.FaultServer {
		return newError(OpOCR, KindUnavailable, err)
	}
	return newError(OpOCR, KindRejected, fmt.Errorf("textract %s: %w", apiErr.ErrorCode(), err))
}

func clampUnit(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
