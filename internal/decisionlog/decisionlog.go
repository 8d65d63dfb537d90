// Package decisionlog implements an append-only JSON-lines log of
// routing decisions and feedback signals, plus an offline reader that
// joins them by request id. The os.OpenFile(O_APPEND)+json.Marshal
// append idiom follows the file-logging setup in intelligencedev-
// manifold's internal/logging/logging.go, adapted from a single
// rotating log file to one append target guarded by a mutex per write.
package decisionlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"tangent/internal/types"
)

// DecisionRecord is written once per /analyze request.
type DecisionRecord struct {
	Kind          string                `json:"kind"`
	Timestamp     time.Time             `json:"timestamp"`
	RequestID     string                `json:"requestId"`
	App           string                `json:"app"`
	WindowTitle   string                `json:"windowTitle"`
	Weights       types.StrategyWeights `json:"weights"`
	SuggestionIDs []string              `json:"suggestionIds"`
	ContextLength int                   `json:"contextLength"`
	Path          types.RetrievalPath   `json:"path"`
}

// FeedbackRecord is written whenever the caller reports a user signal
// against a previously returned suggestion.
type FeedbackRecord struct {
	Kind         string                 `json:"kind"`
	Timestamp    time.Time              `json:"timestamp"`
	RequestID    string                 `json:"requestId"`
	SuggestionID string                 `json:"suggestionId"`
	Signal       FeedbackSignal         `json:"signal"`
	DwellMillis  *int64                 `json:"dwellMillis,omitempty"`
	ListPosition *int                   `json:"listPosition,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// FeedbackSignal enumerates the signals a caller may report.
type FeedbackSignal string

const (
	SignalClick      FeedbackSignal = "click"
	SignalDwell      FeedbackSignal = "dwell"
	SignalDismiss    FeedbackSignal = "dismiss"
	SignalScrollPast FeedbackSignal = "scroll_past"
	SignalThumbsUp   FeedbackSignal = "thumbs_up"
	SignalThumbsDown FeedbackSignal = "thumbs_down"
	SignalSave       FeedbackSignal = "save"
)

const (
	kindDecision = "decision"
	kindFeedback = "feedback"
)

// Logger appends decision and feedback records to a single JSONL file.
// Writes are best-effort: a failure is logged and swallowed, never
// propagated to the caller, since logging must never fail the primary
// request.
type Logger struct {
	mu   sync.Mutex
	path string
}

// New creates a Logger writing to path. The file is created on first
// write if it does not exist.
func New(path string) *Logger {
	return &Logger{path: path}
}

// LogDecision appends a decision record.
func (l *Logger) LogDecision(rec DecisionRecord) {
	rec.Kind = kindDecision
	rec.Timestamp = time.Now()
	l.append(rec)
}

// LogFeedback appends a feedback record.
func (l *Logger) LogFeedback(rec FeedbackRecord) {
	rec.Kind = kindFeedback
	rec.Timestamp = time.Now()
	l.append(rec)
}

func (l *Logger) append(rec interface{}) {
	line, err := json.Marshal(rec)
	if err != nil {
		log.Printf("[decisionlog] warning: failed to marshal record: %v", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("[decisionlog] warning: failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		log.Printf("[decisionlog] warning: failed to append record: %v", err)
	}
}

// JoinedRecord pairs one decision with every feedback record sharing its
// request id.
type JoinedRecord struct {
	Decision *DecisionRecord
	Feedback []FeedbackRecord
}

// Join streams path and groups records by request id.
func Join(path string) ([]JoinedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open decision log: %w", err)
	}
	defer f.Close()

	byRequest := make(map[string]*JoinedRecord)
	order := make([]string, 0)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var kind struct {
			Kind      string `json:"kind"`
			RequestID string `json:"requestId"`
		}
		if err := json.Unmarshal(line, &kind); err != nil {
			continue
		}

		jr, ok := byRequest[kind.RequestID]
		if !ok {
			jr = &JoinedRecord{}
			byRequest[kind.RequestID] = jr
			order = append(order, kind.RequestID)
		}

		switch kind.Kind {
		case kindDecision:
			var d DecisionRecord
			if err := json.Unmarshal(line, &d); err == nil {
				jr.Decision = &d
			}
		case kindFeedback:
			var fb FeedbackRecord
			if err := json.Unmarshal(line, &fb); err == nil {
				jr.Feedback = append(jr.Feedback, fb)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan decision log: %w", err)
	}

	out := make([]JoinedRecord, 0, len(order))
	for _, id := range order {
		out = append(out, *byRequest[id])
	}
	return out, nil
}
