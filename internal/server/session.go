package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/covera/internal/observability/context"
)

// bindSession tags the request logs and spans with the conversation id.
func bindSession(c *gin.Context, sessionID string) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return
	}
	c.Set("session_id", sessionID)
	c.Request = c.Request.WithContext(obscontext.WithSessionID(c.Request.Context(), sessionID))
}

func (s *Server) GetSession(c *gin.Context) {
	id := strings.TrimSpace(c.Param("session_id"))
	bindSession(c, id)

	summary, err := s.sessions.Summary(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) DeleteSession(c *gin.Context) {
	id := strings.TrimSpace(c.Param("session_id"))
	bindSession(c, id)

	if err := s.sessions.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session " + id + " supprimée"})
}
