package llmclient

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChatMessage is one OpenAI-chat-compatible message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildChatPayload assembles an OpenAI-chat-compatible request body, the
// same shape tagger.go builds inline for every LLM call.
func BuildChatPayload(model string, messages []ChatMessage, temperature float64) map[string]interface{} {
	return map[string]interface{}{
		"model":       model,
		"messages":    messages,
		"temperature": temperature,
		"stream":      false,
	}
}

// ParseChatContent extracts the assistant message content from a raw
// chat-completion response body.
func ParseChatContent(body []byte) (string, error) {
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat response")
	}
	return result.Choices[0].Message.Content, nil
}

// StripJSONFence removes a leading/trailing ```json or ``` fence, tolerating
// models that wrap otherwise-valid JSON in markdown fences.
func StripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
