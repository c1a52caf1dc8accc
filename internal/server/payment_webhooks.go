package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventflow/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/eventflow/internal/payment/domain"
	"go.uber.org/zap"
)

// maxWebhookBody caps provider payloads; Stripe events are well under this.
const maxWebhookBody = 1 << 20

// HandlePaymentWebhook serves /webhooks/payment and /webhooks/:provider.
// Redeliveries and event types we do not handle are acknowledged.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.webhookSvc.IngestWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) || errors.Is(err, paymentdomain.ErrEventIgnored) {
			logger.FromContext(c.Request.Context()).Debug("payment webhook acknowledged without processing",
				zap.String("provider", provider),
				zap.String("reason", err.Error()),
			)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
