package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	assistantdomain "github.com/smallbiznis/covera/internal/assistant/domain"
	customerdomain "github.com/smallbiznis/covera/internal/customer/domain"
	documentdomain "github.com/smallbiznis/covera/internal/document/domain"
	paymentdomain "github.com/smallbiznis/covera/internal/payment/domain"
	promodomain "github.com/smallbiznis/covera/internal/promocode/domain"
	sessiondomain "github.com/smallbiznis/covera/internal/session/domain"
	subscriptiondomain "github.com/smallbiznis/covera/internal/subscription/domain"
	tariffdomain "github.com/smallbiznis/covera/internal/tariff/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string   `json:"field"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Allowed []string `json:"allowed,omitempty"`
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
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
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

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	// Rate-table rejections carry the field and the accepted values.
	var tErr *tariffdomain.ValidationError
	if errors.As(err, &tErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   tErr.Field,
				Code:    tariffdomain.ErrInvalidInput.Error(),
				Message: tErr.Error(),
				Allowed: tErr.Allowed,
			}},
		}
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
					Message: validationErrorMessage(err, code),
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: notFoundMessage(err),
		}
	case errors.Is(err, tariffdomain.ErrNoMatchingTariff),
		errors.Is(err, promodomain.ErrExpired),
		errors.Is(err, subscriptiondomain.ErrDetailMissing),
		errors.Is(err, subscriptiondomain.ErrNotSettleable),
		errors.Is(err, paymentdomain.ErrAmountMismatch):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
			Message: err.Error(),
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, assistantdomain.ErrSessionBusy),
		errors.Is(err, subscriptiondomain.ErrDetailExists),
		errors.Is(err, subscriptiondomain.ErrInvalidTransition),
		errors.Is(err, paymentdomain.ErrDuplicateReference):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, assistantdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, paymentdomain.ErrGatewayUnavailable):
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

// classifyErrorForLog feeds the request logger with the mapped error type.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationSentinels = []error{
	ErrInvalidRequest,
	assistantdomain.ErrEmptyMessage,
	sessiondomain.ErrInvalidSessionID,
	tariffdomain.ErrInvalidInput,
	tariffdomain.ErrUnknownStatus,
	tariffdomain.ErrUnknownTier,
	customerdomain.ErrInvalidPhone,
	customerdomain.ErrInvalidID,
	subscriptiondomain.ErrInvalidCustomerID,
	subscriptiondomain.ErrInvalidProductType,
	subscriptiondomain.ErrInvalidPremium,
	subscriptiondomain.ErrInvalidPromoCode,
	subscriptiondomain.ErrInvalidSubscriptionID,
	subscriptiondomain.ErrInvalidStatus,
	subscriptiondomain.ErrProductMismatch,
	paymentdomain.ErrInvalidMethod,
	paymentdomain.ErrInvalidAmount,
	paymentdomain.ErrInvalidPhone,
	paymentdomain.ErrInvalidCustomerName,
	paymentdomain.ErrMissingReference,
	paymentdomain.ErrInvalidPayload,
	promodomain.ErrInvalidCode,
	promodomain.ErrInvalidReduction,
	documentdomain.ErrInvalidDocument,
	documentdomain.ErrInvalidURL,
}

func isValidationError(err error) bool {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, sessiondomain.ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrCustomerNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, promodomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrTransactionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func notFoundMessage(err error) string {
	if errors.Is(err, sessiondomain.ErrNotFound) {
		return "Session non trouvée"
	}
	return "not found"
}

func validationErrorCode(err error) string {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return ErrInvalidRequest.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(err error, code string) string {
	if code == "invalid_request" {
		return "invalid request"
	}
	return err.Error()
}
