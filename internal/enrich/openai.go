package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const analysisPrompt = `You read scanned police correspondence written in Marathi or English.
Reply with one JSON object and nothing else:
{
  "fields": {
    "office": string|null,
    "recipientName": string|null,
    "serialNumber": string|null,
    "letterDate": string|null,
    "receivedDate": string|null,
    "author": string|null,
    "letterType": string|null,
    "subject": string|null,
    "topic": string|null,
    "mobile": string|null,
    "documentCount": string|null
  },
  "summary": string,
  "documentType": string
}
Copy values in the language they appear in. Use null for anything not present.
Dates as YYYY-MM-DD when they can be read unambiguously.`

// maxAnalysisInput bounds the OCR text sent to the model, in runes.
const maxAnalysisInput = 12000

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAI{client: openai.NewClientWithConfig(clientConfig), model: model}
}

type analysisResponse struct {
	Fields       map[string]any `json:"fields"`
	Summary      any            `json:"summary"`
	DocumentType any            `json:"documentType"`
}

func (o *OpenAI) AnalyzeText(ctx context.Context, text string) (*Analysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, newError(OpAnalysis, KindNoText, errors.New("nothing to analyze"))
	}
	if runes := []rune(text); len(runes) > maxAnalysisInput {
		text = string(runes[:maxAnalysisInput])
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analysisPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, newError(OpAnalysis, KindMalformed, errors.New("response has no choices"))
	}

	analysis, err := parseAnalysis(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	analysis.Model = resp.Model
	if analysis.Model == "" {
		analysis.Model = o.model
	}
	return analysis, nil
}

func parseAnalysis(content string) (*Analysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw analysisResponse
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, newError(OpAnalysis, KindMalformed, fmt.Errorf("response is not a JSON object: %w", err))
	}
	if raw.Fields == nil {
		return nil, newError(OpAnalysis, KindMalformed, errors.New(`response has no "fields" object`))
	}

	summary, _ := raw.Summary.(string)
	documentType, _ := raw.DocumentType.(string)

	return &Analysis{
		Fields:       NormalizeFields(raw.Fields),
		Summary:      strings.TrimSpace(summary),
		DocumentType: strings.TrimSpace(documentType),
	}, nil
}

func classifyOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return AsError(OpAnalysis, err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		if code, ok := apiErr.Code.(string); ok && code == "insufficient_quota" {
			return newError(OpAnalysis, KindRejected, err)
		}
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return newError(OpAnalysis, KindTimeout, err)
	case status == http.StatusTooManyRequests || status >= 500:
		return newError(OpAnalysis, KindUnavailable, err)
	case status >= 400:
		return newError(OpAnalysis, KindRejected, err)
	}

	return newError(OpAnalysis, KindUnavailable, err)
}
