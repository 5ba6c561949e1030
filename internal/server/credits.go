package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	creditdomain "github.com/reelforge/reelforge/internal/credit/domain"
)

func (s *Server) GetCredits(c *gin.Context) {
	account, err := s.creditSvc.GetOrCreate(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

func (s *Server) GetCreditStats(c *gin.Context) {
	stats, err := s.creditSvc.Stats(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

type deductBody struct {
	Amount *int64 `json:"amount"`
	Reason string `json:"reason"`
}

func (s *Server) DeductCredits(c *gin.Context) {
	var body deductBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	// A missing amount means one credit; an explicit zero is rejected by
	// the service.
	req := creditdomain.DeductRequest{Amount: 1, Reason: body.Reason}
	if body.Amount != nil {
		req.Amount = *body.Amount
	}

	account, err := s.creditSvc.Deduct(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

func (s *Server) AddCredits(c *gin.Context) {
	var req creditdomain.AddCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.creditSvc.AddCredits(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

func (s *Server) UpdatePlan(c *gin.Context) {
	var req creditdomain.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.creditSvc.UpdatePlan(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

func (s *Server) CancelSubscription(c *gin.Context) {
	account, err := s.creditSvc.CancelSubscription(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}
