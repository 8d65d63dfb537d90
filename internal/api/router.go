// Package api exposes the engine's HTTP surface: /health, /analyze,
// /search-web, /save-to-memory, /feedback, and a handful of /test-*
// diagnostic endpoints (of the routing modes, only orthogonal-only is
// reachable from them, via /test-orthogonal). Follows go-llama's gin
// logger + route-registration shape, trimmed to this engine's surface
// (no auth, no templated HTML chat frontend here); a recovered panic is
// answered with HTTP 500 and the panic value as the error string.
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"tangent/internal/analyze"
	"tangent/internal/concept"
	"tangent/internal/config"
	"tangent/internal/decisionlog"
	"tangent/internal/embedclient"
	"tangent/internal/judge"
	"tangent/internal/memorystore"
	"tangent/internal/router"
	"tangent/internal/websearch"
)

// Deps bundles every collaborator a handler needs. Built once at
// startup in cmd/server and closed over by the route closures.
type Deps struct {
	Config     *config.Config
	Controller *analyze.Controller
	Router     *router.Router
	Concepts   *concept.Extractor
	Judge      *judge.Judge
	Search     *websearch.Client
	Memory     *memorystore.Store
	Embedder   *embedclient.Embedder
	Log        *decisionlog.Logger
}

// SetupRouter builds the gin engine and registers every route.
func SetupRouter(deps *Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.CustomRecovery(func(c *gin.Context, recovered any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprint(recovered)})
	}))

	r.GET("/health", healthHandler)
	r.POST("/analyze", analyzeHandler(deps))
	r.POST("/search-web", searchWebHandler(deps))
	r.POST("/save-to-memory", saveToMemoryHandler(deps))
	r.POST("/feedback", feedbackHandler(deps))

	r.POST("/test-exa", testExaHandler(deps))
	r.POST("/test-tangential", testTangentialHandler(deps))
	r.POST("/test-vibe", testVibeHandler(deps))
	r.POST("/test-orthogonal", testOrthogonalHandler(deps))
	r.POST("/test-context-judge", testContextJudgeHandler(deps))

	return r
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "tangent"})
}
