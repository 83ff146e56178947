package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumenbridge/broker/internal/channel"
	"github.com/lumenbridge/broker/internal/server"
)

func listChannels(c *gin.Context, s *server.Server) {
	a := appFromContext(c)
	prefix := c.Query("filter_by_prefix")
	withUserCount := c.Query("info") == "user_count"

	counts, err := s.Adapter.ChannelsWithSocketCount(c.Request.Context(), a.ID, prefix)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list channels"})
		return
	}

	out := make(map[string]gin.H, len(counts))
	for name, count := range counts {
		entry := gin.H{"subscription_count": count}
		if withUserCount && name.IsPresence() {
			members, err := s.Adapter.ChannelMembers(c.Request.Context(), a.ID, name)
			if err == nil {
				entry["user_count"] = len(members)
			}
		}
		out[string(name)] = entry
	}
	c.JSON(http.StatusOK, gin.H{"channels": out})
}

func inspectChannel(c *gin.Context, s *server.Server) {
	a := appFromContext(c)
	name := channel.Name(c.Param("name"))

	sockets, err := s.Adapter.ChannelSockets(c.Request.Context(), a.ID, name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to inspect channel"})
		return
	}

	resp := gin.H{
		"occupied":           len(sockets) > 0,
		"subscription_count": len(sockets),
	}
	if name.IsPresence() {
		members, err := s.Adapter.ChannelMembers(c.Request.Context(), a.ID, name)
		if err == nil {
			resp["user_count"] = len(members)
		}
	}
	c.JSON(http.StatusOK, resp)
}

func channelUsers(c *gin.Context, s *server.Server) {
	a := appFromContext(c)
	name := channel.Name(c.Param("name"))

	if !name.IsPresence() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "users are only tracked for presence channels"})
		return
	}

	members, err := s.Adapter.ChannelMembers(c.Request.Context(), a.ID, name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list channel users"})
		return
	}

	users := make([]gin.H, 0, len(members))
	for userID := range members {
		users = append(users, gin.H{"id": userID})
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
