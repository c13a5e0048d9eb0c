package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	promodomain "github.com/smallbiznis/covera/internal/promocode/domain"
)

type createPromoCodeRequest struct {
	Code           string     `json:"code" binding:"required"`
	AgentID        string     `json:"agent_id"`
	AgentName      string     `json:"agent_name"`
	ReductionType  string     `json:"reduction_type"`
	ReductionValue float64    `json:"reduction_value"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

func (s *Server) CreatePromoCode(c *gin.Context) {
	var req createPromoCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	promo, err := s.promos.Create(c.Request.Context(), promodomain.CreateRequest{
		Code:           req.Code,
		AgentID:        req.AgentID,
		AgentName:      req.AgentName,
		ReductionType:  promodomain.ReductionType(req.ReductionType),
		ReductionValue: req.ReductionValue,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, promo)
}

type validatePromoCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

func (s *Server) ValidatePromoCode(c *gin.Context) {
	var req validatePromoCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	promo, err := s.promos.Validate(c.Request.Context(), req.Code)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "promo_code": promo})
}
