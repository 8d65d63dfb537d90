// Package judge implements ContextJudge: a single structured-output LLM
// call that produces StrategyWeights, with a keyword heuristic fallback.
// The LLM call always runs first and the heuristic is used only when it
// fails; pairing an LLM classifier with a keyword heuristic follows
// goblincore's classify.go, and the LLM call itself follows tagger.go's
// pattern, rebuilt on the shared llmclient helpers.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tangent/internal/llmclient"
	"tangent/internal/types"
)

const contextTruncateLen = 1000

// Judge analyzes a context/app/window-title triple and produces
// StrategyWeights.
type Judge struct {
	client *llmclient.Client
	llmURL string
	model  string
}

// New creates a ContextJudge bound to one LLM endpoint and model.
func New(client *llmclient.Client, llmURL, model string) *Judge {
	return &Judge{client: client, llmURL: llmURL, model: model}
}

// Analyze produces StrategyWeights for the given context. Deterministic
// sampling (temperature zero). On any LLM failure, falls back to a
// keyword heuristic keyed on the application name.
func (j *Judge) Analyze(ctx context.Context, text, appName, windowTitle string) types.StrategyWeights {
	truncated := text
	if len(truncated) > contextTruncateLen {
		truncated = truncated[:contextTruncateLen]
	}

	prompt := fmt.Sprintf(`Application: %s
Window title: %s
Context:
%s

Judge how this cognitive context should shape retrieval. Produce four independent intensities in [0,1] — they need not sum to 1:
- serendipity: how much the user would benefit from surprising, tangential material right now
- relevance: how much the user needs tightly on-topic material right now
- sourceWeb: how much web search should contribute
- sourceLocal: how much the user's own memory store should contribute

Respond with JSON only:
{"serendipity": 0.5, "relevance": 0.5, "sourceWeb": 0.5, "sourceLocal": 0.5, "rationale": "one short sentence"}`, appName, windowTitle, truncated)

	messages := []llmclient.ChatMessage{
		{Role: "system", Content: "You are a precise cognitive-state judge. Respond only with valid JSON."},
		{Role: "user", Content: prompt},
	}

	body, err := j.client.Call(ctx, j.llmURL, llmclient.BuildChatPayload(j.model, messages, 0))
	if err != nil {
		return heuristicWeights(appName)
	}
	content, err := llmclient.ParseChatContent(body)
	if err != nil {
		return heuristicWeights(appName)
	}

	var weights types.StrategyWeights
	if err := json.Unmarshal([]byte(llmclient.StripJSONFence(content)), &weights); err != nil {
		return heuristicWeights(appName)
	}

	return weights.Clamp()
}

// heuristicWeights keys off substrings of the application name: code
// editors tilt high-relevance/high-web, browsers tilt balanced, note
// apps tilt high-local, otherwise balanced.
func heuristicWeights(appName string) types.StrategyWeights {
	lower := strings.ToLower(appName)

	codeEditors := []string{"code", "vim", "emacs", "intellij", "goland", "pycharm", "sublime", "xcode"}
	browsers := []string{"chrome", "firefox", "safari", "edge", "brave", "arc"}
	noteApps := []string{"notion", "obsidian", "notes", "evernote", "bear", "onenote", "roam"}

	switch {
	case containsAny(lower, codeEditors):
		return types.StrategyWeights{
			Serendipity: 0.3, Relevance: 0.8, SourceWeb: 0.7, SourceLocal: 0.4,
			Rationale: "code editor: heuristic fallback favoring relevance and web documentation",
		}
	case containsAny(lower, browsers):
		return types.StrategyWeights{
			Serendipity: 0.5, Relevance: 0.5, SourceWeb: 0.5, SourceLocal: 0.5,
			Rationale: "browser: heuristic fallback balanced across strategies",
		}
	case containsAny(lower, noteApps):
		return types.StrategyWeights{
			Serendipity: 0.4, Relevance: 0.6, SourceWeb: 0.2, SourceLocal: 0.8,
			Rationale: "note app: heuristic fallback favoring the user's own memory store",
		}
	default:
		return types.StrategyWeights{
			Serendipity: 0.5, Relevance: 0.5, SourceWeb: 0.5, SourceLocal: 0.5,
			Rationale: "unrecognized application: heuristic fallback balanced across strategies",
		}
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
