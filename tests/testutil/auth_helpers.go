package testutil

import (
	"context"
	"net/http"
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/middleware"
	"github.com/kendall-kelly/consulting-portal-api/services"
)

// UserHeader carries the uid HeaderAuth trusts
const UserHeader = "X-Test-User"

// MockValidatedClaims creates ValidatedClaims shaped like the ones EnsureValidToken stores
func MockValidatedClaims(subject, issuer string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
		},
	}
}

// SetMockAuthContext sets up an authenticated context the way the JWT middleware does
func SetMockAuthContext(c *gin.Context, userID, issuer string, scopes []string) {
	c.Set(middleware.ContextUserID, userID)
	c.Set(middleware.ContextAccessToken, "mock-token")
	c.Set(middleware.ContextClaims, MockValidatedClaims(userID, issuer, scopes))
}

// HeaderAuth authenticates the uid sent in UserHeader, or rejects the request like a missing token
func HeaderAuth(c *gin.Context) {
	uid := c.GetHeader(UserHeader)
	if uid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   gin.H{"code": "UNAUTHORIZED", "message": "Missing test user"},
		})
		return
	}
	SetMockAuthContext(c, uid, "https://test.auth0.com/", nil)
	c.Next()
}

// StaticIdentity derives a profile from the uid, standing in for the identity provider
type StaticIdentity struct{}

// Profile implements services.IdentityProvider
func (StaticIdentity) Profile(ctx context.Context, uid, accessToken string) (*services.IdentityProfile, error) {
	return &services.IdentityProfile{Email: strings.ReplaceAll(uid, "|", "_") + "@example.com", DisplayName: uid}, nil
}

// UserTransport sends every request as UID, for HTTP clients pointed at a server using HeaderAuth
type UserTransport struct {
	UID  string
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper
func (t UserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	req.Header.Set(UserHeader, t.UID)
	return base.RoundTrip(req)
}
