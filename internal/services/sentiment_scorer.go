package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/newsindex-ai-go/internal/models"
	"github.com/irfndi/newsindex-ai-go/internal/utils"
	"github.com/irfndi/newsindex-ai-go/pkg/llm"
)

const maxRecordKeywords = 5

const scoringSystemPrompt = `You are a financial market analyst. Judge how a news article is likely to move the crypto and equity markets.

Criteria:
- positive: rate cuts, improving earnings, deregulation, optimistic outlooks
- negative: rate hikes, deteriorating earnings, tighter regulation, pessimistic outlooks
- neutral: purely informational news without a direct market effect`

const scoringResponseFormat = `Respond with JSON only, in exactly this shape:
{
  "sentiment": "positive/negative/neutral",
  "confidence": 0-100,
  "keywords": ["keyword1", "keyword2", "keyword3"],
  "reason": "one sentence"
}`

// SentimentScorer classifies a single article.
type SentimentScorer interface {
	Score(ctx context.Context, article models.Article, fewShot FewShotContext) (models.SentimentRecord, error)
}

// LLMSentimentScorer scores articles with a text-generation client.
type LLMSentimentScorer struct {
	client llm.Client
	logger *logrus.Logger
}

// NewLLMSentimentScorer creates a scorer over client.
func NewLLMSentimentScorer(client llm.Client, logger *logrus.Logger) *LLMSentimentScorer {
	return &LLMSentimentScorer{client: client, logger: logger}
}

type llmSentimentResponse struct {
	Sentiment  string   `json:"sentiment"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords"`
	Reason     string   `json:"reason"`
}

// Score prompts the model and validates its answer. Malformed or
// out-of-range answers are returned as validation errors.
func (s *LLMSentimentScorer) Score(ctx context.Context, article models.Article, fewShot FewShotContext) (models.SentimentRecord, error) {
	text, err := s.client.Generate(ctx, llm.Request{
		System: scoringSystemPrompt,
		Prompt: BuildScoringPrompt(article, fewShot),
	})
	if err != nil {
		return models.SentimentRecord{}, fmt.Errorf("scoring article %d: %w", article.ID, err)
	}

	record, err := ParseSentimentResponse(article.ID, text)
	if err != nil {
		return models.SentimentRecord{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"article_id": article.ID,
		"sentiment":  record.Sentiment,
		"confidence": record.Confidence,
		"model":      s.client.Model(),
	}).Debug("Article scored")
	return record, nil
}

// BuildScoringPrompt renders the user prompt for one article.
func BuildScoringPrompt(article models.Article, fewShot FewShotContext) string {
	var b strings.Builder
	b.WriteString(fewShot.Render())
	b.WriteString("\n[article to analyze]\n")
	fmt.Fprintf(&b, "title: %s\n", article.Title)
	fmt.Fprintf(&b, "body: %s\n", article.Body)
	fmt.Fprintf(&b, "source: %s\n\n", article.SourceName)
	b.WriteString(scoringResponseFormat)
	return b.String()
}

// ParseSentimentResponse decodes a model answer into a validated record.
// At most five non-blank keywords are kept.
func ParseSentimentResponse(articleID int, text string) (models.SentimentRecord, error) {
	var parsed llmSentimentResponse
	if err := json.Unmarshal([]byte(llm.CleanJSONResponse(text)), &parsed); err != nil {
		return models.SentimentRecord{}, utils.NewValidationErrorf("article %d: unparseable model response: %v", articleID, err)
	}

	keywords := make([]string, 0, maxRecordKeywords)
	for _, kw := range parsed.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		keywords = append(keywords, kw)
		if len(keywords) == maxRecordKeywords {
			break
		}
	}

	record := models.SentimentRecord{
		ArticleID:  articleID,
		Sentiment:  models.Sentiment(strings.ToLower(strings.TrimSpace(parsed.Sentiment))),
		Confidence: parsed.Confidence,
		Keywords:   keywords,
		Rationale:  strings.TrimSpace(parsed.Reason),
	}
	if err := record.Validate(); err != nil {
		return models.SentimentRecord{}, fmt.Errorf("article %d: %w", articleID, err)
	}
	return record, nil
}
