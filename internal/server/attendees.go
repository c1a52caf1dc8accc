package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	registrationdomain "github.com/smallbiznis/eventflow/internal/registration/domain"
)

func (s *Server) ListAttendees(c *gin.Context) {
	eventID, err := eventIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	checkedIn, err := parseOptionalBool(c.Query("checkedIn"))
	if err != nil {
		AbortWithError(c, newValidationError("checkedIn", "invalid_checked_in", "checkedIn must be true or false"))
		return
	}

	list, err := s.registrationSvc.ListAttendees(c.Request.Context(), principalFrom(c), eventID, registrationdomain.AttendeeFilter{
		Status:    registrationdomain.Status(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		CheckedIn: checkedIn,
		Search:    strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// UpdateAttendee applies confirm, cancel or checkin to one registration.
func (s *Server) UpdateAttendee(c *gin.Context) {
	eventID, err := eventIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req attendeeActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := req.Validate(); err != nil {
		AbortWithError(c, err)
		return
	}
	action, err := registrationdomain.ParseAction(req.Action)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if _, err := s.registrationSvc.ApplyAction(c.Request.Context(), principalFrom(c), eventID, parseID(req.RegistrationID), action); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
