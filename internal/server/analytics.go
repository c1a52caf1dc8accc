package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) EventAnalytics(c *gin.Context) {
	eventID, err := eventIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.analyticsSvc.EventReport(c.Request.Context(), principalFrom(c), eventID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) Dashboard(c *gin.Context) {
	dashboard, err := s.analyticsSvc.Dashboard(c.Request.Context(), principalFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}
