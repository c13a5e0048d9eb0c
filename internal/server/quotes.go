package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	tariffdomain "github.com/smallbiznis/covera/internal/tariff/domain"
)

type autoQuoteRequest struct {
	Power      int    `json:"power" binding:"required"`
	Seats      int    `json:"seat_number" binding:"required"`
	Energy     string `json:"fuel_type"`
	Model      string `json:"modele"`
	Usage      string `json:"usage"`
	TariffType string `json:"tariff_type"`
}

func (s *Server) QuoteAuto(c *gin.Context) {
	var req autoQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Energy == "" {
		req.Energy = string(tariffdomain.EnergyEssence)
	}
	if req.Model == "" {
		req.Model = string(tariffdomain.ModelVoiture)
	}
	if req.Usage == "" {
		if m, err := tariffdomain.ParseModelClass(req.Model); err == nil && !m.PublicTransport() {
			req.Usage = string(tariffdomain.UsagePrivate)
		}
	}

	parsed, err := tariffdomain.ParseAutoRequest(req.Power, req.Seats, req.Energy, req.Model, req.Usage, req.TariffType)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	quote, err := s.tariffs.QuoteAuto(c.Request.Context(), parsed)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

type travelQuoteRequest struct {
	Category string `json:"client_type" binding:"required"`
	Zone     string `json:"zone" binding:"required"`
	Product  string `json:"product" binding:"required"`
	Days     int    `json:"duration_days" binding:"required"`
}

func (s *Server) QuoteTravel(c *gin.Context) {
	var req travelQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	quote, err := s.tariffs.QuoteTravel(c.Request.Context(), tariffdomain.TravelRequest{
		Category: req.Category,
		Zone:     req.Zone,
		Product:  req.Product,
		Days:     req.Days,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (s *Server) TravelCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    s.tariffs.Version(),
		"categories": s.tariffs.TravelCatalog(),
	})
}

func (s *Server) QuoteAccident(c *gin.Context) {
	quote, err := s.tariffs.QuoteAccident(c.Request.Context(), c.Query("status"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (s *Server) QuoteHome(c *gin.Context) {
	quote, err := s.tariffs.QuoteHome(c.Request.Context(), c.Query("tier"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}
