package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/medvault/clinical-ingest/internal/core/domain"
)

const (
	extractTemperature = 0.1
	extractMaxTokens   = 3000
)

// Extractor sends the document bytes to a vision-capable model as a data URL
// and parses the structured payload out of the response. An unparseable
// response degrades to a raw-text-only result; transport failures are real
// errors.
type Extractor struct {
	client *Client
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

func (e *Extractor) Extract(ctx context.Context, content []byte, mimeType string, category domain.Category) (domain.ExtractionResult, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(content))

	req := chatRequest{
		Model: e.client.extractModel,
		Messages: []chatMessage{
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: buildExtractionPrompt(category)},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			}},
		},
		Temperature: extractTemperature,
		MaxTokens:   extractMaxTokens,
	}

	respText, err := e.client.complete(ctx, "extract", req)
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("extract structured data: %w", err)
	}

	var parsed struct {
		RawText    string                `json:"raw_text"`
		Structured domain.StructuredData `json:"structured_data"`
	}
	if err := json.Unmarshal([]byte(firstJSONObject(respText)), &parsed); err != nil {
		slog.Warn("extraction_response_not_json", "model", e.client.extractModel, "error", err)
		return domain.ExtractionResult{
			RawText:    respText,
			Structured: domain.DegradedStructuredData(),
			Degraded:   true,
			Model:      e.client.extractModel,
		}, nil
	}

	parsed.Structured.Normalize()
	return domain.ExtractionResult{
		RawText:    parsed.RawText,
		Structured: parsed.Structured,
		Model:      e.client.extractModel,
	}, nil
}
