package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientCallSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "hello"}},
			},
		})
	}))
	defer srv.Close()

	mgr := NewManager(DefaultConfig(), nil)
	defer mgr.Stop()

	client := NewClient(mgr, PriorityCritical, 5*time.Second)
	body, err := client.Call(context.Background(), srv.URL, BuildChatPayload("gpt-test", nil, 0))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	content, err := ParseChatContent(body)
	if err != nil {
		t.Fatalf("ParseChatContent failed: %v", err)
	}
	if content != "hello" {
		t.Errorf("content = %q, want %q", content, "hello")
	}
}

func TestClientCallUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	mgr := NewManager(DefaultConfig(), nil)
	defer mgr.Stop()

	client := NewClient(mgr, PriorityBackground, 2*time.Second)
	_, err := client.Call(context.Background(), srv.URL, BuildChatPayload("gpt-test", nil, 0))
	if err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestStripJSONFence(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"{\"a\":1}":               `{"a":1}`,
		"```\n[1,2,3]\n```":       `[1,2,3]`,
	}
	for in, want := range cases {
		if got := StripJSONFence(in); got != want {
			t.Errorf("StripJSONFence(%q) = %q, want %q", in, got, want)
		}
	}
}
