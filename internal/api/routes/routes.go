// Package routes builds the HTTP control surface's gin.Engine, matching
// spec.md §6's route table exactly plus the one supplemental websocket
// console tail (see SPEC_FULL.md). Grounded on the teacher's
// internal/api/routes.SetupRoutes shape: one function building an Engine,
// global middleware, then a flat route group — rebuilt against this
// system's own route table since the teacher's project/environment/
// testcase domain has no analog here.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/tripleyak/dev-browser-studio/internal/api/handlers"
	"github.com/tripleyak/dev-browser-studio/internal/api/middleware"
)

// Setup builds the gin.Engine for srv, gating every route but GET / behind
// an optional bearer-token check (authEnabled).
func Setup(srv *handlers.Server, authEnabled bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	router.GET("/", srv.WsEndpoint)

	protected := router.Group("/")
	protected.Use(middleware.RequireBearerToken(authEnabled))
	{
		protected.GET("/pages", srv.ListPages)
		protected.POST("/pages", srv.CreatePage)
		protected.DELETE("/pages/:name", srv.DeletePage)

		protected.GET("/pages/:name/console", srv.GetConsole)
		protected.DELETE("/pages/:name/console", srv.ClearConsole)
		protected.GET("/pages/:name/console/stream", srv.StreamConsole)

		protected.GET("/pages/:name/recording/status", srv.RecordingStatus)
		protected.POST("/pages/:name/recording/start", srv.StartRecording)
		protected.POST("/pages/:name/recording/stop", srv.StopRecording)

		protected.GET("/pages/:name/video", srv.Video)
	}

	return router
}
