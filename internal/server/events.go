package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	eventdomain "github.com/smallbiznis/eventflow/internal/event/domain"
	"github.com/smallbiznis/eventflow/pkg/db/pagination"
)

func (s *Server) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := req.Validate(); err != nil {
		AbortWithError(c, err)
		return
	}

	event, err := s.eventSvc.Create(c.Request.Context(), principalFrom(c), req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (s *Server) ListEvents(c *gin.Context) {
	page, err := parsePagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.eventSvc.List(c.Request.Context(), principalFrom(c), eventdomain.ListRequest{
		Status:     eventdomain.Status(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Search:     strings.TrimSpace(c.Query("search")),
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetEvent(c *gin.Context) {
	id, err := eventIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	event, err := s.eventSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (s *Server) UpdateEvent(c *gin.Context) {
	id, err := eventIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := req.Validate(); err != nil {
		AbortWithError(c, err)
		return
	}

	event, err := s.eventSvc.Update(c.Request.Context(), principalFrom(c), id, req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (s *Server) DeleteEvent(c *gin.Context) {
	id, err := eventIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.eventSvc.Delete(c.Request.Context(), principalFrom(c), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetPublicEvent serves the landing page of a non-draft event.
func (s *Server) GetPublicEvent(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		AbortWithError(c, eventdomain.ErrNotFound)
		return
	}

	event, err := s.eventSvc.GetPublic(c.Request.Context(), slug)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func eventIDParam(c *gin.Context) (snowflake.ID, error) {
	id, err := parseOptionalSnowflakeID(c.Param("id"))
	if err != nil || id == nil {
		return 0, eventdomain.ErrInvalidID
	}
	return *id, nil
}

func parsePagination(c *gin.Context) (pagination.Pagination, error) {
	var page pagination.Pagination
	rawPage, err := parseOptionalInt64(c.Query("page"))
	if err != nil {
		return page, newValidationError("page", "invalid_page", "page must be a number")
	}
	rawLimit, err := parseOptionalInt64(c.Query("limit"))
	if err != nil {
		return page, newValidationError("limit", "invalid_limit", "limit must be a number")
	}
	if rawPage != nil {
		page.Page = int(*rawPage)
	}
	if rawLimit != nil {
		page.Limit = int(*rawLimit)
	}
	return page.Normalize(), nil
}
