package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListNotifications(c *gin.Context) {
	resp, err := s.notificationSvc.List(c.Request.Context(), principalFrom(c).UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// MarkNotifications marks one notification, or all of them, as read.
func (s *Server) MarkNotifications(c *gin.Context) {
	var req markNotificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := req.Validate(); err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID := principalFrom(c).UserID
	if req.MarkAllRead {
		updated, err := s.notificationSvc.MarkAllRead(ctx, userID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
		return
	}

	if err := s.notificationSvc.MarkRead(ctx, userID, parseID(req.ID)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
