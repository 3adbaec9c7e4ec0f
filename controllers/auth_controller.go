package controllers

import (
	"log"
	"net/http"
	"time"

	"github.com/ccjoness/StellarIQ-API/middleware"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AuthController issues admin API tokens
type AuthController struct {
	secretHash string
	jwtSecret  string
	limiter    *middleware.LoginRateLimiter
	now        func() time.Time
}

// NewAuthController creates a new auth controller. secretHash is the bcrypt
// hash of the shared admin secret.
func NewAuthController(secretHash, jwtSecret string, limiter *middleware.LoginRateLimiter) *AuthController {
	return &AuthController{
		secretHash: secretHash,
		jwtSecret:  jwtSecret,
		limiter:    limiter,
		now:        time.Now,
	}
}

type tokenRequest struct {
	Secret string `json:"secret" binding:"required"`
}

// IssueToken exchanges the admin secret for a bearer token
// POST /api/v1/admin/auth/token
func (ac *AuthController) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "secret is required"})
		return
	}

	if ac.secretHash == "" {
		log.Println("⚠️  Admin token requested but ADMIN_SECRET_HASH is not configured")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin access is not configured"})
		return
	}

	ip := c.ClientIP()
	if err := bcrypt.CompareHashAndPassword([]byte(ac.secretHash), []byte(req.Secret)); err != nil {
		ac.limiter.RecordAttempt(ip, false)
		log.Printf("Admin token request from %s failed: invalid secret", ip)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Invalid secret",
		})
		return
	}
	ac.limiter.RecordAttempt(ip, true)

	token, expiresAt, err := middleware.IssueAdminToken(ac.jwtSecret, ac.now(), middleware.AdminTokenTTL)
	if err != nil {
		log.Printf("Failed to issue admin token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	log.Printf("Admin token issued to %s", ip)
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_at":   expiresAt.UTC(),
	})
}
