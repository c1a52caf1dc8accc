package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventflow/internal/checkout"
	"github.com/smallbiznis/eventflow/internal/providers/pdf"
	registrationdomain "github.com/smallbiznis/eventflow/internal/registration/domain"
)

// CreateRegistration returns 201 with the registration, plus a checkout URL
// when the ticket has a price.
func (s *Server) CreateRegistration(c *gin.Context) {
	var req createRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := req.Validate(); err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.checkoutSvc.Register(c.Request.Context(), principalFrom(c), checkout.RegisterRequest{
		EventID:  parseID(req.EventID),
		TicketID: parseID(req.TicketID),
		Quantity: req.Quantity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) ListRegistrations(c *gin.Context) {
	items, err := s.registrationSvc.ListMine(c.Request.Context(), principalFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if items == nil {
		items = []registrationdomain.Owned{}
	}
	c.JSON(http.StatusOK, items)
}

// DownloadTicket renders a confirmed registration as a PDF admission ticket.
func (s *Server) DownloadTicket(c *gin.Context) {
	id, err := parseOptionalSnowflakeID(c.Param("id"))
	if err != nil || id == nil {
		AbortWithError(c, registrationdomain.ErrNotFound)
		return
	}

	ctx := c.Request.Context()
	principal := principalFrom(c)
	item, err := s.registrationSvc.TicketFor(ctx, principal, *id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := pdf.TicketData{
		RegistrationID: item.ID.String(),
		EventTitle:     item.EventTitle,
		StartsAt:       item.EventStartDate,
		IsVirtual:      item.EventIsVirtual,
		AttendeeName:   principal.DisplayName(),
		AttendeeEmail:  principal.Email,
		Quantity:       item.Quantity,
		QRCode:         item.QRCode,
		Currency:       strings.ToUpper(s.checkoutCfg.Get().Currency),
	}
	if item.EventLocation != nil {
		data.Location = *item.EventLocation
	}
	if item.TicketName != nil {
		data.TicketName = *item.TicketName
	}
	if item.TicketPrice != nil {
		data.Price = *item.TicketPrice
	}

	doc, err := s.pdf.GenerateTicket(ctx, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := fmt.Sprintf("ticket-%s.pdf", item.ID)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.DataFromReader(http.StatusOK, -1, "application/pdf", doc, nil)
}
