package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/covera/internal/payment/domain"
	"go.uber.org/zap"
)

const maxCallbackBytes = 1 << 20

// PaymentNotification acknowledges a gateway callback and hands it to the
// dispatcher. providerHint is set by the legacy per-operator routes. Only a
// callback without a reference gets an error answer; anything else the
// dispatcher refuses is logged and acknowledged.
func (s *Server) PaymentNotification(providerHint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBytes))
		if err != nil {
			s.log.Warn("payment callback body unreadable", zap.String("provider_hint", providerHint), zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		cb, err := s.dispatcher.Accept(payload, providerHint)
		switch {
		case errors.Is(err, paymentdomain.ErrMissingReference):
			_ = c.Error(err)
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		case err != nil:
			s.log.Error("payment callback acknowledged without reconciliation",
				zap.String("provider_hint", providerHint),
				zap.ByteString("payload", payload),
				zap.Error(err),
			)
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		c.Set("provider", cb.Provider)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "reference": cb.Reference})
	}
}
