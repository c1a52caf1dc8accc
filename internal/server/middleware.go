package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventflow/internal/identity"
	obscontext "github.com/smallbiznis/eventflow/internal/observability/context"
	"go.uber.org/zap"
)

// corsMiddleware returns nil when no origins are configured.
func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return nil
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// ResolvePrincipal attaches the caller to the request context. A session
// cookie wins over a bearer token; invalid credentials leave the request
// anonymous so public routes keep working.
func (s *Server) ResolvePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		principal := identity.Anonymous

		if token, ok := s.sessions.ReadToken(c); ok {
			p, err := s.authsvc.Authenticate(ctx, token)
			if err != nil {
				s.log.Debug("session rejected", zap.Error(err))
			} else {
				principal = p
			}
		}
		if !principal.Authenticated {
			if token, ok := s.sessions.ReadBearer(c); ok {
				p, err := s.authsvc.VerifyToken(ctx, token)
				if err != nil {
					s.log.Debug("bearer token rejected", zap.Error(err))
				} else {
					principal = p
				}
			}
		}

		if principal.Authenticated {
			ctx = identity.WithPrincipal(ctx, principal)
			ctx = obscontext.WithUserID(ctx, principal.UserID.String())
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := principalFrom(c).Require(); err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) identity.Principal {
	return identity.FromContext(c.Request.Context())
}
