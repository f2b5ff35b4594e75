package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetConsole implements GET /pages/:name/console (spec §6): {logs:[…], count}.
func (s *Server) GetConsole(c *gin.Context) {
	name, ok := s.pageName(c)
	if !ok {
		return
	}
	entry, found := s.getEntryOrNotFound(c, name)
	if !found {
		return
	}
	logs := entry.ConsoleSink.All()
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}

// ClearConsole implements DELETE /pages/:name/console (spec §6):
// {success:true, cleared}. Clearing is the only release for an otherwise
// unbounded console log vector (spec §5).
func (s *Server) ClearConsole(c *gin.Context) {
	name, ok := s.pageName(c)
	if !ok {
		return
	}
	entry, found := s.getEntryOrNotFound(c, name)
	if !found {
		return
	}
	cleared := entry.ConsoleSink.Len()
	entry.ConsoleSink.Clear()
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": cleared})
}
