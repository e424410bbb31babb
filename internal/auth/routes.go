package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionKey = "portal.session"

// MiddlewareOptions configures Middleware.
type MiddlewareOptions struct {
	// Issuer verifies bearer tokens. Nil disables token auth.
	Issuer *Issuer
	// AllowHeaders accepts X-User-ID / X-User-Type without a token. Only
	// meant for fixture mode.
	AllowHeaders bool
	Logger       *zap.Logger
}

// Middleware authenticates each request and stores its Session.
func Middleware(opts MiddlewareOptions) gin.HandlerFunc {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if token := ExtractToken(c.Request); token != "" && opts.Issuer != nil {
			session, err := opts.Issuer.Parse(token)
			if err != nil {
				logger.Debug("Rejected token", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			c.Set(sessionKey, session)
			c.Next()
			return
		}

		if opts.AllowHeaders {
			if userID := c.GetHeader("X-User-ID"); userID != "" {
				userType := c.GetHeader("X-User-Type")
				if userType == "" {
					userType = "client"
				}
				c.Set(sessionKey, Session{UserID: userID, UserType: userType})
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
	}
}

// SessionFrom returns the session stored by Middleware.
func SessionFrom(c *gin.Context) (Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return Session{}, false
	}
	s, ok := v.(Session)
	return s, ok
}

// RegisterRoutes registers the auth routes. The token endpoint is only
// mounted when devTokens is set.
func RegisterRoutes(public, protected *gin.RouterGroup, handler *Handler, devTokens bool) {
	if devTokens && handler.issuer != nil {
		public.POST("/auth/token", handler.IssueToken)
	}
	protected.GET("/auth/me", handler.Me)
}
