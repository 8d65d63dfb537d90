package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tangent/internal/analyze"
	"tangent/internal/decisionlog"
	"tangent/internal/memorystore"
	"tangent/internal/types"
)

const defaultContainerTag = "default"

type analyzeRequestBody struct {
	Context      string `json:"context"`
	AppName      string `json:"appName"`
	WindowTitle  string `json:"windowTitle"`
	ContainerTag string `json:"containerTag"`
}

func analyzeHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body analyzeRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "malformed request body"})
			return
		}
		if body.ContainerTag == "" {
			body.ContainerTag = defaultContainerTag
		}

		resp := deps.Controller.Analyze(c.Request.Context(), analyze.Request{
			Context:      body.Context,
			App:          body.AppName,
			WindowTitle:  body.WindowTitle,
			ContainerTag: body.ContainerTag,
		})
		c.JSON(http.StatusOK, resp)
	}
}

type searchWebRequestBody struct {
	Query string `json:"query"`
}

// searchWebHandler runs a plain web query with no synthesis step — a
// quicker, non-LLM path for a caller that already knows what it wants
// to look up, shaped like AnalyzeResponse so the extension can render
// it with the same suggestion list it already has.
func searchWebHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("query")
		if query == "" {
			var body searchWebRequestBody
			_ = c.ShouldBindJSON(&body)
			query = body.Query
		}
		if strings.TrimSpace(query) == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "query must not be empty"})
			return
		}

		start := time.Now()
		maxResults := deps.Config.MaxSuggestions
		results, err := deps.Search.Search(c.Request.Context(), query, maxResults)
		if err != nil {
			c.JSON(http.StatusOK, analyze.Response{Path: types.PathNone, Confidence: types.ConfidenceLow, ProcessingTimeMs: time.Since(start).Milliseconds()})
			return
		}

		suggestions := make([]types.Suggestion, 0, len(results))
		for _, res := range results {
			suggestions = append(suggestions, types.Suggestion{
				Title:          res.Title,
				Body:           res.Text,
				Source:         types.SourceWeb,
				RelevanceScore: res.Score,
				Timestamp:      time.Now(),
				SourceURL:      res.URL,
			})
		}

		confidence := types.ConfidenceLow
		if len(suggestions) > 0 {
			confidence = types.ConfidenceMedium
		}
		c.JSON(http.StatusOK, analyze.Response{
			Suggestions:      suggestions,
			Path:             types.PathWeb,
			Confidence:       confidence,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		})
	}
}

type saveToMemoryRequestBody struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	SourceURL string `json:"sourceUrl"`
	Context   string `json:"context"`
}

func saveToMemoryHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body saveToMemoryRequestBody
		if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Content) == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "content must not be empty"})
			return
		}

		embedding, err := deps.Embedder.Embed(c.Request.Context(), body.Content)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"status": "failed", "error": "embedding failed"})
			return
		}

		metadata := map[string]interface{}{"title": body.Title}
		if body.SourceURL != "" {
			metadata["sourceUrl"] = body.SourceURL
		}
		if body.Context != "" {
			metadata["context"] = body.Context
		}

		id, err := deps.Memory.AddMemory(c.Request.Context(), memorystore.AddInput{
			Content:      body.Content,
			Embedding:    embedding,
			ContainerTag: defaultContainerTag,
			Metadata:     metadata,
		})
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"status": "failed", "error": "store failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "saved", "memoryId": id, "title": body.Title})
	}
}

type feedbackRequestBody struct {
	RequestID    string                     `json:"requestId"`
	SuggestionID string                     `json:"suggestionId"`
	Signal       decisionlog.FeedbackSignal `json:"signal"`
	DwellMillis  *int64                     `json:"dwellMillis,omitempty"`
	ListPosition *int                       `json:"listPosition,omitempty"`
	Metadata     map[string]interface{}     `json:"metadata,omitempty"`
}

func feedbackHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body feedbackRequestBody
		if err := c.ShouldBindJSON(&body); err != nil || body.RequestID == "" || body.SuggestionID == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "requestId and suggestionId are required"})
			return
		}

		deps.Log.LogFeedback(decisionlog.FeedbackRecord{
			RequestID:    body.RequestID,
			SuggestionID: body.SuggestionID,
			Signal:       body.Signal,
			DwellMillis:  body.DwellMillis,
			ListPosition: body.ListPosition,
			Metadata:     body.Metadata,
		})
		c.JSON(http.StatusOK, gin.H{"status": "logged"})
	}
}

// --- diagnostic endpoints, exercising the legacy/non-shipping paths ---

func testExaHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("query")
		if query == "" {
			var body searchWebRequestBody
			_ = c.ShouldBindJSON(&body)
			query = body.Query
		}
		results, err := deps.Search.Search(c.Request.Context(), query, deps.Config.MaxSuggestions)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

type diagnosticContextBody struct {
	Context     string `json:"context"`
	AppName     string `json:"appName"`
	WindowTitle string `json:"windowTitle"`
}

func testTangentialHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body diagnosticContextBody
		_ = c.ShouldBindJSON(&body)

		concepts := deps.Concepts.ExtractConcepts(c.Request.Context(), body.Context, body.AppName)
		mainSubject := deps.Concepts.ExtractMainSubject(c.Request.Context(), body.Context)
		c.JSON(http.StatusOK, gin.H{"mainSubject": mainSubject, "concepts": concepts})
	}
}

func testVibeHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body diagnosticContextBody
		_ = c.ShouldBindJSON(&body)

		vibe := deps.Concepts.ExtractVibe(c.Request.Context(), body.Context)
		c.JSON(http.StatusOK, vibe)
	}
}

func testOrthogonalHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body diagnosticContextBody
		_ = c.ShouldBindJSON(&body)

		concepts := deps.Concepts.ExtractConcepts(c.Request.Context(), body.Context, body.AppName)
		if len(concepts) == 0 {
			c.JSON(http.StatusOK, types.CascadeResult{Path: types.PathNone, Confidence: types.ConfidenceLow})
			return
		}
		query := strings.Join(firstN(concepts, 3), " ")
		vibe := deps.Concepts.ExtractVibe(c.Request.Context(), body.Context)

		result := deps.Router.RouteOrthogonalOnly(c.Request.Context(), query, body.Context, vibe, vibe.SourceDomain, deps.Config.MaxSuggestions)
		c.JSON(http.StatusOK, result)
	}
}

func testContextJudgeHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body diagnosticContextBody
		_ = c.ShouldBindJSON(&body)

		weights := deps.Judge.Analyze(c.Request.Context(), body.Context, body.AppName, body.WindowTitle)
		c.JSON(http.StatusOK, weights)
	}
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
