package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/irfndi/newsindex-ai-go/internal/models"
)

// maxLearnedPatterns is how many success cases are shown ahead of the exemplars.
const maxLearnedPatterns = 3

// Exemplar is a worked scoring example shown to the classifier.
type Exemplar struct {
	Title      string           `json:"-"`
	Sentiment  models.Sentiment `json:"sentiment"`
	Confidence float64          `json:"confidence"`
	Keywords   []string         `json:"keywords"`
	Reason     string           `json:"reason"`
}

// LearnedPattern is a past success case rendered as prompt context.
type LearnedPattern struct {
	AccuracyScore   float64          `json:"accuracyScore"`
	Keywords        []string         `json:"keywords"`
	InvestmentIndex float64          `json:"investmentIndex"`
	InferredLabel   models.Sentiment `json:"inferredLabel"`
}

// FewShotContext is the exemplar block injected into scoring prompts.
type FewShotContext struct {
	LearnedPatterns []LearnedPattern `json:"learnedPatterns"`
	Exemplars       []Exemplar       `json:"exemplars"`
}

// CanonicalExemplars returns the built-in examples, one per label. They
// anchor the output format and are always present.
func CanonicalExemplars() []Exemplar {
	return []Exemplar{
		{
			Title:      "Central bank cuts benchmark rate by 0.25 percentage points",
			Sentiment:  models.SentimentPositive,
			Confidence: 90,
			Keywords:   []string{"rate cut", "liquidity increase", "investor sentiment"},
			Reason:     "A rate cut adds liquidity, which tends to lift both equities and crypto assets.",
		},
		{
			Title:      "US SEC signals tighter regulation of crypto assets",
			Sentiment:  models.SentimentNegative,
			Confidence: 85,
			Keywords:   []string{"SEC", "regulation tightening", "crypto"},
			Reason:     "Tighter regulation raises uncertainty for crypto participants and puts short-term pressure on prices.",
		},
		{
			Title:      "Samsung Electronics hosts new product launch event",
			Sentiment:  models.SentimentNeutral,
			Confidence: 60,
			Keywords:   []string{"Samsung", "new product"},
			Reason:     "A product launch is routine corporate activity with limited effect on the wider market.",
		},
	}
}

// FewShotSelector picks exemplars from the latest learning summary.
type FewShotSelector struct{}

// NewFewShotSelector creates a selector.
func NewFewShotSelector() *FewShotSelector {
	return &FewShotSelector{}
}

// Select builds the context for summary, which may be nil. Without success
// cases only the canonical exemplars are returned.
func (s *FewShotSelector) Select(summary *models.LearningSummary) FewShotContext {
	ctx := FewShotContext{
		LearnedPatterns: []LearnedPattern{},
		Exemplars:       CanonicalExemplars(),
	}
	if summary == nil || len(summary.SuccessCases) == 0 {
		return ctx
	}

	ranked := make([]models.SuccessCase, len(summary.SuccessCases))
	copy(ranked, summary.SuccessCases)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].AccuracyScore != ranked[j].AccuracyScore {
			return ranked[i].AccuracyScore > ranked[j].AccuracyScore
		}
		return ranked[i].PredictedIndex > ranked[j].PredictedIndex
	})
	if len(ranked) > maxLearnedPatterns {
		ranked = ranked[:maxLearnedPatterns]
	}

	for _, c := range ranked {
		ctx.LearnedPatterns = append(ctx.LearnedPatterns, LearnedPattern{
			AccuracyScore:   c.AccuracyScore,
			Keywords:        copyStrings(c.Keywords),
			InvestmentIndex: c.PredictedIndex,
			InferredLabel:   PredictedDirection(c.PredictedIndex),
		})
	}
	return ctx
}

// Render formats the context as prompt text. The output depends only on
// the context's contents.
func (c FewShotContext) Render() string {
	var b strings.Builder

	if len(c.LearnedPatterns) > 0 {
		b.WriteString("[learned success patterns]\n")
		for i, p := range c.LearnedPatterns {
			fmt.Fprintf(&b, "\n[learned success pattern %d - accuracy %s%%]\n", i+1, formatNumber(p.AccuracyScore))
			fmt.Fprintf(&b, "keywords: %s\n", strings.Join(p.Keywords, ", "))
			fmt.Fprintf(&b, "investment index: %s%%\n", formatNumber(p.InvestmentIndex))
			fmt.Fprintf(&b, "result: %s prediction succeeded (market %s)\n", p.InferredLabel, marketMoveWord(p.InferredLabel))
		}
		b.WriteString("\nUse the learned patterns above together with the reference examples below.\n\n")
	}

	for i, e := range c.Exemplars {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[example %d]\ntitle: %q\nanalysis:\n", i+1, e.Title)
		writeExemplarAnswer(&b, e)
	}
	return b.String()
}

// writeExemplarAnswer writes e in the JSON shape the classifier must answer
// with.
func writeExemplarAnswer(b *strings.Builder, e Exemplar) {
	keywords := make([]string, len(e.Keywords))
	for i, k := range e.Keywords {
		keywords[i] = strconv.Quote(k)
	}
	fmt.Fprintf(b, "{\n  \"sentiment\": %s,\n  \"confidence\": %s,\n  \"keywords\": [%s],\n  \"reason\": %s\n}\n",
		strconv.Quote(string(e.Sentiment)), formatNumber(e.Confidence), strings.Join(keywords, ", "), strconv.Quote(e.Reason))
}

func marketMoveWord(label models.Sentiment) string {
	switch label {
	case models.SentimentPositive:
		return "rose"
	case models.SentimentNegative:
		return "fell"
	default:
		return "was flat"
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
