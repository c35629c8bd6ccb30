package router

import (
	"context"
	"strings"
)

// DeterministicClassifier is a keyword-matching LLMClassifier used where no
// LLM provider is wired (local development, tests). It never errors.
type DeterministicClassifier struct {
	Rules []Rule
}

// Rule maps a keyword substring to a lane/intent pair.
type Rule struct {
	Keyword string
	Lane    string
	Intent  string
}

// Classify scans req.UserMessage for the first matching rule keyword.
func (d DeterministicClassifier) Classify(_ context.Context, req ClassificationRequest) (ClassificationResult, error) {
	msg := strings.ToLower(req.UserMessage)
	for _, rule := range d.Rules {
		if strings.Contains(msg, strings.ToLower(rule.Keyword)) {
			return ClassificationResult{
				Lane:       rule.Lane,
				Intent:     rule.Intent,
				Confidence: 0.9,
				Reasoning:  []string{rule.Keyword},
			}, nil
		}
	}
	return ClassificationResult{
		Lane:       req.Summary.CurrentLane,
		Intent:     "general_info",
		Confidence: 0.5,
		Reasoning:  []string{"no_keyword_match"},
	}, nil
}
