package middleware

import (
	"context"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/utils"
	"go.uber.org/zap"
)

// ContextFirebaseToken holds the verified Firebase ID token
const ContextFirebaseToken = "firebase_token"

// IDTokenVerifier is the part of the Firebase auth client the middleware needs
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// EnsureFirebaseToken verifies a Firebase ID token from the Authorization header
func EnsureFirebaseToken(verifier IDTokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		idToken := bearerToken(c.Request)
		if idToken == "" {
			utils.AbortWithError(c, utils.NewAppError("INVALID_TOKEN", "Authorization header with Bearer token is required", http.StatusUnauthorized, nil))
			return
		}

		token, err := verifier.VerifyIDToken(c.Request.Context(), idToken)
		if err != nil {
			logger.Info("Encountered error while verifying ID token", zap.Error(err))
			utils.AbortWithError(c, utils.NewAppError("INVALID_TOKEN", "Invalid or expired token", http.StatusUnauthorized, err))
			return
		}

		c.Set(ContextUserID, token.UID)
		c.Set(ContextFirebaseToken, token)
		c.Set(ContextAccessToken, idToken)
		c.Next()
	}
}
