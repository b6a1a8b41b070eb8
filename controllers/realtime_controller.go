package controllers

import (
	"net/http"

	"marketpulse/middleware"
	"marketpulse/services/realtime"

	"github.com/gin-gonic/gin"
)

// RealtimeController exposes the websocket endpoint and hub status
type RealtimeController struct {
	hub *realtime.Hub
}

// NewRealtimeController creates a new realtime controller
func NewRealtimeController(hub *realtime.Hub) *RealtimeController {
	return &RealtimeController{hub: hub}
}

// HandleWebSocket upgrades the request to a websocket connection. Auth is
// optional: non-browser clients send a bearer header, browsers cannot set
// headers on websocket requests and pass the token in the query string
// instead. Anonymous connections get public rooms only.
// GET /ws?token=<jwt>
func (rc *RealtimeController) HandleWebSocket(c *gin.Context) {
	userID, err := middleware.UserIDFromContext(c)
	if err != nil {
		if token := c.Query("token"); token != "" {
			if claims, parseErr := middleware.ParseToken(token); parseErr == nil {
				userID = claims.UserID
			}
		}
	}
	rc.hub.HandleWebSocket(c.Writer, c.Request, userID)
}

// GetStatus returns hub statistics
// GET /api/realtime/status
func (rc *RealtimeController) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": rc.hub.Status()})
}
