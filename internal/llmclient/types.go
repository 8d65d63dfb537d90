// Package llmclient fronts the external LLM collaborator with a
// priority-queued dispatcher: critical-priority calls (on the /analyze hot
// path) are never starved by background-priority calls (OrthogonalSearcher's
// per-strategy rephrasing), and a shared circuit breaker isolates a failing
// upstream. Follows internal/llm/{types,client,manager}.go's shape.
package llmclient

import (
	"context"
	"time"
)

// Priority selects which queue a Request waits in.
type Priority int

const (
	PriorityCritical   Priority = 0
	PriorityBackground Priority = 1
)

// Request encapsulates one outbound LLM call.
type Request struct {
	ID       string
	Priority Priority
	Context  context.Context

	URL     string
	Payload map[string]interface{}

	ResponseCh chan<- *Response
	ErrorCh    chan<- error

	SubmitTime time.Time
	Timeout    time.Duration
}

// Response encapsulates the raw LLM HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Metrics tracks dispatcher throughput, exposed for observability.
type Metrics struct {
	CriticalEnqueued    int64
	CriticalProcessed   int64
	CriticalDropped     int64
	BackgroundEnqueued  int64
	BackgroundProcessed int64
	BackgroundDropped   int64
	CurrentQueueDepth   map[Priority]int
}

// Config tunes the Manager's queue sizes and concurrency.
type Config struct {
	MaxConcurrent       int
	CriticalQueueSize   int
	BackgroundQueueSize int
	CriticalTimeout     time.Duration
	BackgroundTimeout   time.Duration
}

// DefaultConfig mirrors the defaults used across cmd/server/main.go's
// LLM queue wiring.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrent:       8,
		CriticalQueueSize:   64,
		BackgroundQueueSize: 256,
		CriticalTimeout:     20 * time.Second,
		BackgroundTimeout:   45 * time.Second,
	}
}
