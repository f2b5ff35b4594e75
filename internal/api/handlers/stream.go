package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// upgrader mirrors the teacher's permissive CheckOrigin: this control
// surface is meant for a local thin client, not a public deployment (spec
// §1's scope boundary).
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const consolePollInterval = 500 * time.Millisecond

// StreamConsole implements GET /pages/:name/console/stream, a live tail of
// new console log entries over a websocket connection — the in-spec analog
// of the teacher's recording websocket, supplementing spec §6's polling
// GET /pages/:name/console rather than replacing it.
func (s *Server) StreamConsole(c *gin.Context) {
	name, ok := s.pageName(c)
	if !ok {
		return
	}
	entry, found := s.getEntryOrNotFound(c, name)
	if !found {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Sugar().Warnw("console stream upgrade failed", "page", name, "error", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	sent := entry.ConsoleSink.Len()
	ticker := time.NewTicker(consolePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entries := entry.ConsoleSink.Since(sent)
			if len(entries) == 0 {
				continue
			}
			sent += len(entries)
			for _, e := range entries {
				payload, err := json.Marshal(e)
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			}
		}
	}
}
