package server

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	authdomain "github.com/smallbiznis/eventflow/internal/auth/domain"
	"github.com/smallbiznis/eventflow/internal/authorization"
	"github.com/smallbiznis/eventflow/internal/checkin"
	eventdomain "github.com/smallbiznis/eventflow/internal/event/domain"
	"github.com/smallbiznis/eventflow/internal/identity"
	notificationdomain "github.com/smallbiznis/eventflow/internal/notification/domain"
	paymentdomain "github.com/smallbiznis/eventflow/internal/payment/domain"
	"github.com/smallbiznis/eventflow/internal/providers/pdf"
	"github.com/smallbiznis/eventflow/internal/ratelimit"
	registrationdomain "github.com/smallbiznis/eventflow/internal/registration/domain"
	ticketdomain "github.com/smallbiznis/eventflow/internal/ticket/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`

	// Set for rejected check-in scans.
	CheckedInAt  *time.Time                   `json:"checkedInAt,omitempty"`
	Registration *registrationdomain.Attendee `json:"registration,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")

	errUnknownQRCode = errors.New("unknown_qr_code")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// fromOzzo flattens nested ozzo errors into dotted field paths, e.g. tickets.0.price.
func fromOzzo(errs validation.Errors) *ValidationErrors {
	out := &ValidationErrors{}
	flattenOzzo("", errs, out)
	sort.Slice(out.Errors, func(i, j int) bool {
		return out.Errors[i].Field < out.Errors[j].Field
	})
	return out
}

func flattenOzzo(prefix string, errs validation.Errors, out *ValidationErrors) {
	for name, err := range errs {
		field := name
		if prefix != "" {
			field = prefix + "." + name
		}
		var nested validation.Errors
		if errors.As(err, &nested) {
			flattenOzzo(field, nested, out)
			continue
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Code:    "invalid_" + name,
			Message: err.Error(),
		})
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var ozzoErrs validation.Errors
	if errors.As(err, &ozzoErrs) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  fromOzzo(ozzoErrs).Errors,
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var rejection *checkin.Rejection
	if errors.As(err, &rejection) {
		status, payload := mapError(rejection.Err)
		payload.Registration = rejection.Registration
		payload.CheckedInAt = rejection.CheckedInAt
		return status, payload
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, identity.ErrUnauthenticated),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionNotFound),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked),
		errors.Is(err, authdomain.ErrInvalidToken):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	}

	if status, message, ok := domainError(err); ok {
		return status, errorPayload{
			Type:    errorType(status),
			Message: message,
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// domainError maps core errors to the messages clients display verbatim.
// The check-in cases come before ErrInvalidTransition since they wrap it.
func domainError(err error) (int, string, bool) {
	switch {
	case errors.Is(err, ticketdomain.ErrEventUnavailable):
		return http.StatusNotFound, "Event not found or not available", true
	case errors.Is(err, ticketdomain.ErrNotFound):
		return http.StatusNotFound, "Ticket not found", true
	case errors.Is(err, ticketdomain.ErrSoldOut):
		return http.StatusBadRequest, "Not enough tickets available", true
	case errors.Is(err, ticketdomain.ErrAtCapacity):
		return http.StatusBadRequest, "Event is at capacity", true
	case errors.Is(err, ticketdomain.ErrDuplicate):
		return http.StatusConflict, "Already registered for this event", true
	case errors.Is(err, checkin.ErrCodeRequired):
		return http.StatusBadRequest, "QR code required", true
	case errors.Is(err, errUnknownQRCode):
		return http.StatusNotFound, "Invalid QR code: no registration found for this event", true
	case errors.Is(err, registrationdomain.ErrNotFound):
		return http.StatusNotFound, "Registration not found", true
	case errors.Is(err, registrationdomain.ErrCancelled):
		return http.StatusBadRequest, "This registration has been cancelled", true
	case errors.Is(err, registrationdomain.ErrNotConfirmed):
		return http.StatusBadRequest, "Registration is not confirmed (payment may be pending)", true
	case errors.Is(err, registrationdomain.ErrAlreadyCheckedIn):
		return http.StatusConflict, "Already checked in", true
	case errors.Is(err, registrationdomain.ErrAlreadyConfirmed):
		return http.StatusBadRequest, "Registration is already confirmed", true
	case errors.Is(err, registrationdomain.ErrInvalidAction):
		return http.StatusBadRequest, "Invalid action", true
	case errors.Is(err, registrationdomain.ErrInvalidTransition):
		return http.StatusBadRequest, "Action not allowed for this registration", true
	case errors.Is(err, ratelimit.ErrScanInProgress):
		return http.StatusConflict, "Scan already in progress", true
	case errors.Is(err, eventdomain.ErrNotFound):
		return http.StatusNotFound, "Event not found", true
	case errors.Is(err, eventdomain.ErrHasRegistrations):
		return http.StatusConflict, "Event has registrations and cannot be deleted", true
	case errors.Is(err, eventdomain.ErrSlugExhausted):
		return http.StatusConflict, "Could not allocate a unique slug for this event", true
	case errors.Is(err, authdomain.ErrUserExists):
		return http.StatusConflict, "An account with this email already exists", true
	case errors.Is(err, authdomain.ErrUserNotFound):
		return http.StatusNotFound, "User not found", true
	case errors.Is(err, authdomain.ErrTokenDisabled):
		return http.StatusServiceUnavailable, "Token issuing is not configured", true
	case errors.Is(err, notificationdomain.ErrNotFound):
		return http.StatusNotFound, "Notification not found", true
	case errors.Is(err, paymentdomain.ErrProviderNotFound):
		return http.StatusNotFound, "Payment provider not found", true
	case errors.Is(err, paymentdomain.ErrCheckoutFailed):
		return http.StatusInternalServerError, "Failed to create checkout session", true
	}
	return 0, "", false
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal_error"
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, authdomain.ErrInvalidName),
		errors.Is(err, authdomain.ErrInvalidEmail),
		errors.Is(err, authdomain.ErrWeakPassword),
		errors.Is(err, eventdomain.ErrInvalidID),
		errors.Is(err, eventdomain.ErrInvalidStatus),
		errors.Is(err, eventdomain.ErrInvalidSchedule),
		errors.Is(err, eventdomain.ErrInvalidTitle),
		errors.Is(err, eventdomain.ErrInvalidTicket),
		errors.Is(err, eventdomain.ErrInvalidCapacity),
		errors.Is(err, ticketdomain.ErrInvalidQuantity),
		errors.Is(err, registrationdomain.ErrInvalidFilter),
		errors.Is(err, notificationdomain.ErrInvalidInput),
		errors.Is(err, pdf.ErrMissingQRCode):
		return true
	case isPaymentValidationError(err):
		return true
	default:
		return false
	}
}

func isPaymentValidationError(err error) bool {
	switch {
	case errors.Is(err, paymentdomain.ErrInvalidProvider),
		errors.Is(err, paymentdomain.ErrProviderNotConfigured),
		errors.Is(err, paymentdomain.ErrInvalidConfig),
		errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent),
		errors.Is(err, paymentdomain.ErrInvalidMetadata):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, target := range []error{
		ErrInvalidRequest,
		authdomain.ErrInvalidName,
		authdomain.ErrInvalidEmail,
		authdomain.ErrWeakPassword,
		eventdomain.ErrInvalidSchedule,
		paymentdomain.ErrInvalidSignature,
		paymentdomain.ErrInvalidMetadata,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	msg := err.Error()
	if i := strings.Index(msg, ":"); i > 0 {
		return msg[:i]
	}
	return msg
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "weak_password":
		return "password"
	case "invalid_event_schedule":
		return "endDate"
	case "qr_code_required":
		return "qrCode"
	case "invalid_signature", "provider_not_configured":
		return "signature"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "weak_password":
		return "password must be at least 8 characters"
	case "invalid_event_schedule":
		return "end date must not be before start date"
	case "invalid_signature":
		return "missing or invalid webhook signature"
	case "invalid_metadata":
		return "checkout session is missing registration metadata"
	case "qr_code_required":
		return "ticket is missing its QR code"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog feeds error_type/error_code on the request log line.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	var rejection *checkin.Rejection
	if errors.As(err, &rejection) {
		err = rejection.Err
	}
	switch {
	case len(payload.Errors) == 1:
		code = payload.Errors[0].Code
	case payload.Type != "internal_error":
		code = rootCode(err)
	}
	return payload.Type, code
}

// rootCode is the most specific segment of a wrapped sentinel,
// e.g. "registration_cancelled" for "invalid_transition: registration_cancelled".
func rootCode(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
