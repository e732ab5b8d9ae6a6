package server

import (
	"github.com/gin-gonic/gin"
	auditcontext "github.com/roomvision/roomvision/internal/auditcontext"
	obscontext "github.com/roomvision/roomvision/internal/observability/context"
)

const contextUserIDKey = "user_id"

func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		sess, err := s.sessionSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		ctx = auditcontext.WithActor(ctx, sess.UserID)
		ctx = obscontext.WithUserID(ctx, sess.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Set(contextUserIDKey, sess.UserID)
		c.Next()
	}
}

func (s *Server) currentUserID(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}
