package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/medvault/clinical-ingest/internal/core/domain"
)

const (
	classifyTemperature = 0.1
	classifyMaxTokens   = 500
)

// Classifier asks the gateway which category a document belongs to and falls
// back to keyword matching when the gateway answers with garbage or a
// transient failure. Only credential errors and caller cancellation surface
// as errors.
type Classifier struct {
	client   *Client
	keywords domain.KeywordTable
}

func NewClassifier(client *Client, keywords domain.KeywordTable) *Classifier {
	if keywords == nil {
		keywords = domain.DefaultKeywordTable()
	}
	return &Classifier{client: client, keywords: keywords}
}

func (c *Classifier) Classify(ctx context.Context, text string, declared domain.Category, filename string) (domain.Classification, error) {
	req := chatRequest{
		Model: c.client.classifyModel,
		Messages: []chatMessage{
			{Role: "user", Content: buildClassificationPrompt(text, declared, filename)},
		},
		Temperature: classifyTemperature,
		MaxTokens:   classifyMaxTokens,
	}

	respText, err := c.client.complete(ctx, "classify", req)
	if err != nil {
		if isAuthError(err) || errors.Is(err, context.Canceled) {
			return domain.Classification{}, domain.WrapError(domain.ErrClassifierUnavailable, "classify document", err)
		}
		slog.Warn("classifier_fallback_keywords", "declared_category", declared, "error", err)
		return domain.MatchKeywords(c.keywords, text, declared), nil
	}

	var result domain.Classification
	if err := json.Unmarshal([]byte(firstJSONObject(respText)), &result); err != nil {
		slog.Warn("classifier_fallback_keywords", "declared_category", declared, "error", err)
		return domain.MatchKeywords(c.keywords, text, declared), nil
	}

	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	if !result.DetectedCategory.Known() {
		result.DetectedCategory = domain.CategoryOther
	}
	if result.KeywordsFound == nil {
		result.KeywordsFound = []string{}
	}
	return result, nil
}
