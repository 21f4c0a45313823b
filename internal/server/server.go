// Package server exposes the read-only state surface and the live
// subscription endpoint over HTTP.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"candlepipe/internal/broadcast"
	"candlepipe/pkg/storage/segment"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StateReader is the writer's read-only query surface.
type StateReader interface {
	ManifestSnapshot() segment.Manifest
	LatestSegment() ([]byte, bool)
}

// New builds the gin engine serving /state/manifest, /state/latest,
// /healthz and the /ws live subscription endpoint.
func New(hub *broadcast.Hub, state StateReader, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/state/manifest", func(c *gin.Context) {
		c.JSON(http.StatusOK, state.ManifestSnapshot())
	})

	r.GET("/state/latest", func(c *gin.Context) {
		body, ok := state.LatestSegment()
		if !ok {
			// Nothing flushed yet: explicit empty state, not an error.
			c.Status(http.StatusNoContent)
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", body)
	})

	r.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		broadcast.NewClient(hub, conn, log).Start()
	})

	return r
}
