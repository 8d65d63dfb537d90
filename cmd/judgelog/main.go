// judgelog is a small offline CLI for inspecting the decision log,
// following cmd/test_parser's pattern of a flag-free, positional-
// argument tool that prints results with fmt.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"tangent/internal/decisionlog"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: judgelog <path-to-decisions.jsonl> [requestId]")
		os.Exit(1)
	}
	path := os.Args[1]

	joined, err := decisionlog.Join(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read decision log: %v\n", err)
		os.Exit(1)
	}

	var filterID string
	if len(os.Args) > 2 {
		filterID = os.Args[2]
	}

	for _, record := range joined {
		if record.Decision == nil {
			continue
		}
		if filterID != "" && record.Decision.RequestID != filterID {
			continue
		}
		printRecord(record)
	}
}

func printRecord(record decisionlog.JoinedRecord) {
	fmt.Printf("=== %s (%s, path=%s) ===\n", record.Decision.RequestID, record.Decision.App, record.Decision.Path)
	weights, _ := json.MarshalIndent(record.Decision.Weights, "", "  ")
	fmt.Printf("weights: %s\n", weights)
	fmt.Printf("suggestions: %v\n", record.Decision.SuggestionIDs)
	if len(record.Feedback) == 0 {
		fmt.Println("feedback: none")
		return
	}
	for _, fb := range record.Feedback {
		fmt.Printf("feedback: suggestion=%s signal=%s\n", fb.SuggestionID, fb.Signal)
	}
}
