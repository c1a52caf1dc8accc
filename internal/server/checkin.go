package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	registrationdomain "github.com/smallbiznis/eventflow/internal/registration/domain"
)

func (s *Server) CheckIn(c *gin.Context) {
	eventID, err := eventIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.checkinSvc.CheckIn(c.Request.Context(), principalFrom(c), eventID, req.QRCode)
	if err != nil {
		if errors.Is(err, registrationdomain.ErrNotFound) {
			err = errUnknownQRCode
		}
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
