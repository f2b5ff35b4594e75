package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tripleyak/dev-browser-studio/internal/pageregistry"
)

// WsEndpoint implements GET / (spec §6): {wsEndpoint}. It reports the
// root devtools websocket endpoint for the shared browser, not any one
// page's target.
func (s *Server) WsEndpoint(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"wsEndpoint": "ws://" + s.WSHost + "/devtools/browser"})
}

// ListPages implements GET /pages (spec §6): {pages: [name...]}.
func (s *Server) ListPages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pages": s.Registry.List()})
}

type createPageRequest struct {
	Name     string `json:"name"`
	Viewport *struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"viewport,omitempty"`
}

// CreatePage implements POST /pages (spec §6): {wsEndpoint, name, targetId}.
// Validation (spec §6): name must be a non-empty string of at most 256
// bytes.
func (s *Server) CreatePage(c *gin.Context) {
	var req createPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Name == "" || len(req.Name) > 256 {
		c.JSON(http.StatusBadRequest, gin.H{"error": pageregistry.ErrInvalidName.Error()})
		return
	}

	var viewport *pageregistry.Viewport
	if req.Viewport != nil {
		viewport = &pageregistry.Viewport{Width: req.Viewport.Width, Height: req.Viewport.Height}
	}

	entry, err := s.Registry.Create(c.Request.Context(), req.Name, viewport)
	if err != nil {
		if errors.Is(err, pageregistry.ErrExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wsEndpoint": s.Registry.WSEndpoint(entry.TargetID),
		"name":       entry.Name,
		"targetId":   entry.TargetID,
	})
}

// pageName extracts and percent-decodes the :name path parameter (spec
// §6: "path :name is percent-decoded"), responding 400 on a malformed
// percent-encoding.
func (s *Server) pageName(c *gin.Context) (string, bool) {
	name, err := pageregistry.ParsePageName(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return name, true
}

// DeletePage implements DELETE /pages/:name (spec §6): {success:true}.
func (s *Server) DeletePage(c *gin.Context) {
	name, ok := s.pageName(c)
	if !ok {
		return
	}
	if err := s.Registry.Remove(c.Request.Context(), name); err != nil {
		if errors.Is(err, pageregistry.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// getEntryOrNotFound resolves :name to a page entry, writing a 404 and
// returning ok=false if it isn't registered.
func (s *Server) getEntryOrNotFound(c *gin.Context, name string) (*pageregistry.Entry, bool) {
	entry, found := s.Registry.Get(name)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return nil, false
	}
	return entry, true
}
