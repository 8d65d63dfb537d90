// Package concept implements ConceptExtractor: tangential-concept
// extraction, main-subject extraction, and vibe extraction. Follows
// internal/memory/tagger.go's extractConcepts/analyzeOutcome LLM-call-
// then-parse shape, rebuilt on the shared internal/llmclient helpers
// instead of tagger.go's inlined HTTP calls.
package concept

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tangent/internal/llmclient"
	"tangent/internal/types"
)

const (
	conceptTemperature = 0.5
	vibeTemperature     = 0.8
)

// Extractor extracts tangential concepts, the main subject, and an
// aesthetic VibeProfile from a piece of context text.
type Extractor struct {
	client *llmclient.Client
	llmURL string
	model  string
}

// New creates a ConceptExtractor bound to one LLM endpoint and model.
func New(client *llmclient.Client, llmURL, model string) *Extractor {
	return &Extractor{client: client, llmURL: llmURL, model: model}
}

// ExtractConcepts returns 4-5 tangential concepts: topics that would
// *expand* understanding of the context (historical influences, peer
// systems, underlying theory, contrasting perspectives), deliberately
// excluding the main subject itself.
//
// On LLM failure, falls back to splitting the context on whitespace,
// keeping tokens longer than 6 characters, deduplicating
// case-insensitively, and returning the first five.
func (e *Extractor) ExtractConcepts(ctx context.Context, text, appName string) []string {
	prompt := fmt.Sprintf(`Context (from %s):
%s

Identify the main subject of this context, then list 4-5 tangential concepts that would EXPAND understanding of it: historical influences, peer systems, underlying theory, or contrasting perspectives. The main subject itself must NOT appear in your output.

Respond with JSON only (no markdown, no explanation):
{"mainSubject": "...", "concepts": ["concept1", "concept2", "concept3", "concept4"]}`, appName, text)

	messages := []llmclient.ChatMessage{
		{Role: "system", Content: "You identify tangential concepts that expand understanding without repeating the subject. Respond only with valid JSON."},
		{Role: "user", Content: prompt},
	}

	body, err := e.client.Call(ctx, e.llmURL, llmclient.BuildChatPayload(e.model, messages, conceptTemperature))
	if err != nil {
		return fallbackConcepts(text)
	}

	content, err := llmclient.ParseChatContent(body)
	if err != nil {
		return fallbackConcepts(text)
	}

	var parsed struct {
		MainSubject string   `json:"mainSubject"`
		Concepts    []string `json:"concepts"`
	}
	if err := json.Unmarshal([]byte(llmclient.StripJSONFence(content)), &parsed); err != nil {
		return fallbackConcepts(text)
	}

	concepts := dedupeConcepts(parsed.Concepts, parsed.MainSubject)
	if len(concepts) == 0 {
		return fallbackConcepts(text)
	}
	if len(concepts) > 5 {
		concepts = concepts[:5]
	}
	return concepts
}

func fallbackConcepts(text string) []string {
	tokens := strings.Fields(text)
	seen := make(map[string]bool)
	out := make([]string, 0, 5)
	for _, tok := range tokens {
		if len(tok) <= 6 {
			continue
		}
		key := strings.ToLower(tok)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tok)
		if len(out) == 5 {
			break
		}
	}
	return out
}

func dedupeConcepts(concepts []string, mainSubject string) []string {
	subject := strings.ToLower(strings.TrimSpace(mainSubject))
	seen := make(map[string]bool)
	out := make([]string, 0, len(concepts))
	for _, c := range concepts {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" || seen[key] || (subject != "" && key == subject) {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// ExtractMainSubject returns a short (2-5 word), lowercased description
// of the context's main subject, used downstream as a redundancy filter
// key.
func (e *Extractor) ExtractMainSubject(ctx context.Context, text string) string {
	prompt := fmt.Sprintf(`Context:
%s

Describe the main subject of this context in 2-5 words, lowercase, no punctuation.
Respond with the phrase only, nothing else.`, text)

	messages := []llmclient.ChatMessage{
		{Role: "system", Content: "You summarize the main subject of a context in a short lowercase phrase."},
		{Role: "user", Content: prompt},
	}

	body, err := e.client.Call(ctx, e.llmURL, llmclient.BuildChatPayload(e.model, messages, 0))
	if err != nil {
		return fallbackMainSubject(text)
	}
	content, err := llmclient.ParseChatContent(body)
	if err != nil {
		return fallbackMainSubject(text)
	}

	subject := strings.ToLower(strings.TrimSpace(llmclient.StripJSONFence(content)))
	words := strings.Fields(subject)
	if len(words) == 0 {
		return fallbackMainSubject(text)
	}
	if len(words) > 5 {
		words = words[:5]
	}
	return strings.Join(words, " ")
}

func fallbackMainSubject(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) > 5 {
		words = words[:5]
	}
	return strings.Join(words, " ")
}

// ExtractVibe runs a higher-temperature LLM call to produce the
// aesthetic fingerprint of a piece of content. On any failure, returns
// an empty VibeProfile — the pipeline must degrade gracefully.
func (e *Extractor) ExtractVibe(ctx context.Context, text string) types.VibeProfile {
	prompt := fmt.Sprintf(`Content:
%s

Describe the aesthetic "vibe" of this content. Respond with JSON only:
{
  "emotionalSignatures": ["...", "..."],
  "archetype": "a sentence describing who values content like this",
  "crossDomainInterests": ["...", "..."],
  "antiPatterns": ["...", "..."],
  "sourceDomain": "one word or short phrase naming the domain"
}`, text)

	messages := []llmclient.ChatMessage{
		{Role: "system", Content: "You are a perceptive cultural critic. Respond only with valid JSON."},
		{Role: "user", Content: prompt},
	}

	body, err := e.client.Call(ctx, e.llmURL, llmclient.BuildChatPayload(e.model, messages, vibeTemperature))
	if err != nil {
		return types.VibeProfile{}
	}
	content, err := llmclient.ParseChatContent(body)
	if err != nil {
		return types.VibeProfile{}
	}

	var vibe types.VibeProfile
	if err := json.Unmarshal([]byte(llmclient.StripJSONFence(content)), &vibe); err != nil {
		return types.VibeProfile{}
	}
	return vibe
}
