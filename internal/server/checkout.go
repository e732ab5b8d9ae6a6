package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type checkoutRequest struct {
	Package string `json:"package"`
}

func (s *Server) ListPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packages": s.checkoutSvc.ListPackages()})
}

func (s *Server) CreateCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	session, err := s.checkoutSvc.CreateCheckoutSession(c.Request.Context(), s.currentUserID(c), strings.TrimSpace(req.Package))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": session.ID, "url": session.URL})
}

func (s *Server) CreatePortal(c *gin.Context) {
	session, err := s.checkoutSvc.CreatePortalSession(c.Request.Context(), s.currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": session.URL})
}
