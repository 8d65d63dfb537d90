// Package synth implements the Synthesizer: turning one ranked candidate
// into a user-facing Suggestion via an addition-biased LLM prompt.
// Follows tagger.go's LLM-call-then-parse shape, rebuilt on the shared
// llmclient helpers.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tangent/internal/llmclient"
	"tangent/internal/scorer"
	"tangent/internal/types"
)

const (
	temperature   = 0.7
	titleMaxLen   = 60
	bodyPrefixLen = 280
)

// Synthesizer turns a scored candidate into a Suggestion.
type Synthesizer struct {
	client *llmclient.Client
	llmURL string
	model  string
}

// New creates a Synthesizer bound to one LLM endpoint and model.
func New(client *llmclient.Client, llmURL, model string) *Synthesizer {
	return &Synthesizer{client: client, llmURL: llmURL, model: model}
}

// Synthesize produces a Suggestion for one scored candidate, given the
// original context it was retrieved against. On LLM failure, falls
// back to a prefix of the candidate's own content as the body.
func (s *Synthesizer) Synthesize(ctx context.Context, candidate types.ScoredCandidate, contextText string, scored scorer.Scored) types.Suggestion {
	content, sourceURL := candidateContent(candidate)

	prompt := fmt.Sprintf(`Original context:
%s

Candidate material:
%s

Write a suggestion that emphasizes what's DIFFERENT, CONTRASTING, or COMPLEMENTARY about this material relative to the original context — never redundant with it.

Respond with JSON only:
{"title": "<=60 chars", "body": "2-4 sentences", "reasoning": "one short sentence on why this is worth surfacing"}`, contextText, content)

	messages := []llmclient.ChatMessage{
		{Role: "system", Content: "You write suggestions that add a new angle, never restate what's already known."},
		{Role: "user", Content: prompt},
	}

	fallback := types.Suggestion{
		Title:          fallbackTitle(content),
		Body:           truncate(content, bodyPrefixLen),
		Reasoning:      "surfaced without synthesis after an upstream failure",
		Source:         candidate.Source,
		RelevanceScore: scored.Relevance,
		NoveltyScore:   scored.Novelty,
		Timestamp:      time.Now(),
		SourceURL:      sourceURL,
	}

	body, err := s.client.Call(ctx, s.llmURL, llmclient.BuildChatPayload(s.model, messages, temperature))
	if err != nil {
		return fallback
	}
	chatContent, err := llmclient.ParseChatContent(body)
	if err != nil {
		return fallback
	}

	var parsed struct {
		Title     string `json:"title"`
		Body      string `json:"body"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(llmclient.StripJSONFence(chatContent)), &parsed); err != nil {
		return fallback
	}
	if strings.TrimSpace(parsed.Title) == "" || strings.TrimSpace(parsed.Body) == "" {
		return fallback
	}

	return types.Suggestion{
		Title:          truncate(parsed.Title, titleMaxLen),
		Body:           parsed.Body,
		Reasoning:      parsed.Reasoning,
		Source:         candidate.Source,
		RelevanceScore: scored.Relevance,
		NoveltyScore:   scored.Novelty,
		Timestamp:      time.Now(),
		SourceURL:      sourceURL,
	}
}

func candidateContent(c types.ScoredCandidate) (content, sourceURL string) {
	if c.Web != nil {
		return fmt.Sprintf("%s\n%s", c.Web.Title, c.Web.Text), c.Web.URL
	}
	if c.Memory != nil {
		return c.Memory.Content, ""
	}
	return "", ""
}

func fallbackTitle(content string) string {
	title := truncate(strings.TrimSpace(content), titleMaxLen)
	if title == "" {
		return "Untitled suggestion"
	}
	return title
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
