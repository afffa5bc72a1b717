package llm

import (
	"reflect"
	"testing"
)

func TestParseRelevanceVerdictCleanJSON(t *testing.T) {
	raw := `{"relevance_score": 85, "relevance_reason": "Phase 3 trial results", "article_type": "clinical_trial", "mentioned_keywords": ["semaglutide"]}`
	v := ParseRelevanceVerdict(raw)
	if v.RelevanceScore != 85 {
		t.Errorf("RelevanceScore = %d, want 85", v.RelevanceScore)
	}
	if v.ArticleType != "clinical_trial" {
		t.Errorf("ArticleType = %q, want clinical_trial", v.ArticleType)
	}
	if !reflect.DeepEqual(v.MentionedKeywords, []string{"semaglutide"}) {
		t.Errorf("MentionedKeywords = %v", v.MentionedKeywords)
	}
}

func TestParseRelevanceVerdictCodeFence(t *testing.T) {
	raw := "```json\n{\"relevance_score\": 60, \"relevance_reason\": \"market analysis\", \"article_type\": \"market\"}\n```"
	v := ParseRelevanceVerdict(raw)
	if v.RelevanceScore != 60 {
		t.Errorf("RelevanceScore = %d, want 60", v.RelevanceScore)
	}
}

func TestParseRelevanceVerdictBalancedBraceExtraction(t *testing.T) {
	raw := `Here is my analysis: {"relevance_score": 72, "relevance_reason": "regulatory filing", "article_type": "regulatory"} -- hope that helps!`
	v := ParseRelevanceVerdict(raw)
	if v.RelevanceScore != 72 {
		t.Errorf("RelevanceScore = %d, want 72", v.RelevanceScore)
	}
	if v.ArticleType != "regulatory" {
		t.Errorf("ArticleType = %q, want regulatory", v.ArticleType)
	}
}

func TestParseRelevanceVerdictNestedBraces(t *testing.T) {
	raw := `{"relevance_score": 90, "relevance_reason": "nested {braces} inside a string", "article_type": "research"}`
	v := ParseRelevanceVerdict(raw)
	if v.RelevanceScore != 90 {
		t.Errorf("RelevanceScore = %d, want 90", v.RelevanceScore)
	}
}

func TestParseRelevanceVerdictUnparseableFallsBackToNeutral(t *testing.T) {
	v := ParseRelevanceVerdict("I cannot provide a structured answer right now.")
	neutral := NeutralVerdict()
	if v.RelevanceScore != neutral.RelevanceScore {
		t.Errorf("RelevanceScore = %d, want neutral %d", v.RelevanceScore, neutral.RelevanceScore)
	}
	if v.RelevanceReason == "" {
		t.Error("expected neutral fallback to carry a reason")
	}
}

func TestParseRelevanceVerdictEmptyString(t *testing.T) {
	v := ParseRelevanceVerdict("")
	if v.RelevanceScore != NeutralVerdict().RelevanceScore {
		t.Errorf("empty input should fall back to neutral verdict, got %+v", v)
	}
}

func TestExtractBalancedObjectNoBraces(t *testing.T) {
	if got := extractBalancedObject("no json here"); got != "" {
		t.Errorf("extractBalancedObject(%q) = %q, want empty", "no json here", got)
	}
}

func TestExtractBalancedObjectUnterminated(t *testing.T) {
	if got := extractBalancedObject(`{"a": 1`); got != "" {
		t.Errorf("extractBalancedObject on unterminated object = %q, want empty", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("truncate short string = %q, want unchanged", got)
	}
	if got := truncate("hello world", 5); got != "hello" {
		t.Errorf("truncate long string = %q, want %q", got, "hello")
	}
}
