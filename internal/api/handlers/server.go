// Package handlers implements the HTTP control surface's route handlers
// (spec §6), translating JSON requests into calls against the Page
// Registry, the Recording Engine each page entry owns, and the Perception
// Loop.
//
// Grounded on the teacher's internal/api/handlers package shape (one file
// per resource, handlers taking *gin.Context, a package-level Init hook
// wiring shared dependencies) but rebuilt against spec §6's actual route
// table instead of the teacher's project/environment/testcase CRUD
// domain, which has no analog here.
package handlers

import (
	"go.uber.org/zap"

	"github.com/tripleyak/dev-browser-studio/internal/ariaextract"
	"github.com/tripleyak/dev-browser-studio/internal/pageregistry"
	"github.com/tripleyak/dev-browser-studio/internal/perception"
	"github.com/tripleyak/dev-browser-studio/internal/vision"
)

// Server holds the shared dependencies every handler needs. It is
// constructed once in cmd/serve.go and its methods are registered as Gin
// handlers in internal/api/routes.
type Server struct {
	Registry       *pageregistry.Registry
	Snapshotter    ariaextract.Snapshotter
	VisionClient   *vision.Client
	PerceptionCfg  perception.Config
	Logger         *zap.Logger
	WSHost         string
}

// NewServer constructs a Server bound to its collaborators.
func NewServer(registry *pageregistry.Registry, snapshotter ariaextract.Snapshotter, visionClient *vision.Client, perceptionCfg perception.Config, logger *zap.Logger, wsHost string) *Server {
	return &Server{
		Registry:      registry,
		Snapshotter:   snapshotter,
		VisionClient:  visionClient,
		PerceptionCfg: perceptionCfg,
		Logger:        logger,
		WSHost:        wsHost,
	}
}
