package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/saveyours/booking-api/internal/middleware"
	"github.com/saveyours/booking-api/internal/models"
)

// claimsFromContext returns the admin claims placed by middleware.JWT, if any.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, _ := c.Value(middleware.ContextUserKey).(*models.JWTClaims)
	return claims
}

// actorEmail names the admin behind a request for audit-style log lines.
func actorEmail(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.Email
	}
	return "anonymous"
}
