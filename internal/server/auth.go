package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	sessiondomain "github.com/roomvision/roomvision/internal/session/domain"
)

// Logout revokes the caller's session. Unknown or expired tokens are
// treated as already logged out.
func (s *Server) Logout(c *gin.Context) {
	token, ok := s.sessions.ReadToken(c)
	if ok {
		err := s.sessionSvc.Revoke(c.Request.Context(), token)
		if err != nil &&
			!errors.Is(err, sessiondomain.ErrSessionNotFound) &&
			!errors.Is(err, sessiondomain.ErrSessionExpired) &&
			!errors.Is(err, sessiondomain.ErrSessionRevoked) {
			AbortWithError(c, err)
			return
		}
	}

	s.sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
