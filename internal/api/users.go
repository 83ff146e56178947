package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumenbridge/broker/internal/server"
)

func terminateUser(c *gin.Context, s *server.Server) {
	a := appFromContext(c)
	userID := c.Param("user_id")

	closed, err := s.Adapter.TerminateUser(c.Request.Context(), a.ID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to terminate connections"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"terminated_sockets": closed})
}
