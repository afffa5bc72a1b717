// Package llm wraps the Gemini SDK with the two call shapes the pipeline
// needs: a cheap date-extraction call (C4) and a strict-JSON relevance
// analysis call (C6), plus the defensive parsing cascade the relevance call
// relies on when the model doesn't behave.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client wraps a Gemini SDK client configured with two named models: a
// cheap/fast tier for date extraction and a stronger tier for relevance
// analysis. Both share one underlying connection.
type Client struct {
	apiKey   string
	g        *genai.Client
	dateCfg  ModelConfig
	relCfg   ModelConfig
}

// ModelConfig names one of the two tiers and its generation parameters.
type ModelConfig struct {
	Name        string
	Temperature float32
	MaxTokens   int32
	Timeout     time.Duration
}

// NewClient creates a Gemini-backed client. apiKey must be non-empty; the
// caller (config package) is responsible for sourcing it.
func NewClient(ctx context.Context, apiKey string, dateCfg, relCfg ModelConfig) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	g, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{apiKey: apiKey, g: g, dateCfg: dateCfg, relCfg: relCfg}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.g.Close()
}

// ExtractDate asks the cheap model tier to read a publication date out of
// raw text, returning "" if the model reports none found. The caller (C4)
// treats a non-YYYY-MM-DD response as "none" rather than an error.
func (c *Client) ExtractDate(ctx context.Context, title, snippet string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.dateCfg.Timeout)
	defer cancel()

	model := c.g.GenerativeModel(c.dateCfg.Name)
	temp := c.dateCfg.Temperature
	model.Temperature = &temp
	model.MaxOutputTokens = &c.dateCfg.MaxTokens

	prompt := fmt.Sprintf(`Find the original publication date of this article. Respond with ONLY the date in YYYY-MM-DD format, or the single word "none" if no date can be determined. No other text.

Title: %s

Text: %s`, title, truncate(snippet, 1500))

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("date extraction call failed: %w", err)
	}
	text := strings.TrimSpace(firstTextPart(resp))
	text = strings.Trim(text, "\"' \t\n")
	if text == "" || strings.EqualFold(text, "none") {
		return "", nil
	}
	return text, nil
}

// RelevanceVerdict is the strict-JSON contract for C6's relevance analysis.
type RelevanceVerdict struct {
	RelevanceScore       int      `json:"relevance_score"`
	RelevanceReason      string   `json:"relevance_reason"`
	ArticleType          string   `json:"article_type"`
	MentionedKeywords    []string `json:"mentioned_keywords"`
	ClinicalSignificance string   `json:"clinical_significance"`
	RegulatoryImpact     string   `json:"regulatory_impact"`
	MarketImpact         string   `json:"market_impact"`
	Summary              string   `json:"summary"`
}

// NeutralVerdict is returned when the model's response cannot be parsed
// by any tier of the defensive cascade, so the article is retained rather
// than silently dropped.
func NeutralVerdict() RelevanceVerdict {
	return RelevanceVerdict{
		RelevanceScore:  50,
		RelevanceReason: "model response could not be parsed; retained for manual review",
		ArticleType:     "unknown",
	}
}

// RelevanceSchema builds the Gemini response schema that forces the model
// into the RelevanceVerdict shape.
func RelevanceSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"relevance_score": {
				Type:        genai.TypeInteger,
				Description: "0-100 relevance score for a pharmaceutical-industry research analyst",
			},
			"relevance_reason": {
				Type:        genai.TypeString,
				Description: "one or two sentences explaining the score",
			},
			"article_type": {
				Type:        genai.TypeString,
				Description: "category such as clinical_trial, regulatory, market, research, press_release",
			},
			"mentioned_keywords": {
				Type:        genai.TypeArray,
				Description: "query keywords actually found in the article",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
			"clinical_significance": {
				Type:        genai.TypeString,
				Description: "clinical significance summary, empty string if none",
			},
			"regulatory_impact": {
				Type:        genai.TypeString,
				Description: "regulatory impact summary, empty string if none",
			},
			"market_impact": {
				Type:        genai.TypeString,
				Description: "market impact summary, empty string if none",
			},
			"summary": {
				Type:        genai.TypeString,
				Description: "one-paragraph neutral summary of the article",
			},
		},
		Required: []string{"relevance_score", "relevance_reason", "article_type"},
	}
}

// AnalyzeRelevance runs the strong-model relevance rubric over an
// article's title and content and returns a parsed verdict. On any
// malformed response it falls back through fence-stripping and balanced-
// brace extraction before giving up and returning NeutralVerdict.
func (c *Client) AnalyzeRelevance(ctx context.Context, prompt string) (RelevanceVerdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.relCfg.Timeout)
	defer cancel()

	model := c.g.GenerativeModel(c.relCfg.Name)
	temp := c.relCfg.Temperature
	model.Temperature = &temp
	model.MaxOutputTokens = &c.relCfg.MaxTokens
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = RelevanceSchema()

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return RelevanceVerdict{}, fmt.Errorf("relevance analysis call failed: %w", err)
	}
	raw := firstTextPart(resp)
	if raw == "" {
		return NeutralVerdict(), nil
	}
	return ParseRelevanceVerdict(raw), nil
}

// ParseRelevanceVerdict applies the defensive JSON parsing cascade: clean
// unmarshal, then fence-stripped unmarshal, then best-effort extraction of
// the first balanced {...} substring, then NeutralVerdict.
func ParseRelevanceVerdict(raw string) RelevanceVerdict {
	if v, ok := tryUnmarshalVerdict(raw); ok {
		return v
	}
	stripped := stripCodeFences(raw)
	if v, ok := tryUnmarshalVerdict(stripped); ok {
		return v
	}
	if balanced := extractBalancedObject(stripped); balanced != "" {
		if v, ok := tryUnmarshalVerdict(balanced); ok {
			return v
		}
	}
	return NeutralVerdict()
}

func tryUnmarshalVerdict(s string) (RelevanceVerdict, bool) {
	var v RelevanceVerdict
	s = strings.TrimSpace(s)
	if s == "" {
		return v, false
	}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return v, false
	}
	return v, true
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// extractBalancedObject scans for the first top-level {...} span, tracking
// brace depth so nested objects don't terminate the match early.
func extractBalancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func firstTextPart(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
