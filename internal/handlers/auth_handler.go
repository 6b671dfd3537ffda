// Package handlers contains HTTP request handlers
package handlers

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"cashier-backend/internal/dto"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// AuthHandler authenticates cashier operators and admins. Credentials come
// from the environment: the password is stored as a bcrypt hash, and admins
// additionally present a TOTP code.
type AuthHandler struct {
	jwtSecret []byte
	logger    *logrus.Logger
}

// NewAuthHandler creates the auth handler. The JWT secret must come from
// JWT_SECRET; a default is only acceptable for local development.
func NewAuthHandler(logger *logrus.Logger) *AuthHandler {
	if os.Getenv("OPERATOR_PASSWORD_HASH") == "" && os.Getenv("ADMIN_PASSWORD_HASH") == "" {
		logger.Warn("Neither OPERATOR_PASSWORD_HASH nor ADMIN_PASSWORD_HASH is set; all logins will be rejected")
	}
	return &AuthHandler{
		jwtSecret: jwtSecretFromEnv(),
		logger:    logger,
	}
}

func jwtSecretFromEnv() []byte {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	logrus.Warn("Using default JWT_SECRET; set the environment variable in production")
	return []byte("cashier-backend-jwt-secret-default-change-me")
}

// LoginHandler authenticates an operator or admin and issues a JWT.
func (h *AuthHandler) LoginHandler(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.LoginResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	role, passwordHash, totpSecret := credentialsFor(req.Username)
	if role == "" || passwordHash == "" {
		// Generic message on purpose; do not reveal which part failed.
		c.JSON(http.StatusUnauthorized, dto.LoginResponse{
			Success: false,
			Message: "Invalid credentials",
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		h.logger.WithField("username", req.Username).Warn("Login failed - wrong password")
		c.JSON(http.StatusUnauthorized, dto.LoginResponse{
			Success: false,
			Message: "Invalid credentials",
		})
		return
	}

	// Admins always need TOTP; operators only when a secret is configured.
	if totpSecret != "" {
		if !totp.Validate(req.TOTPCode, totpSecret) {
			h.logger.WithField("username", req.Username).Warn("Login failed - invalid TOTP code")
			c.JSON(http.StatusUnauthorized, dto.LoginResponse{
				Success: false,
				Message: "Invalid TOTP code",
			})
			return
		}
	} else if role == RoleAdmin {
		c.JSON(http.StatusInternalServerError, dto.LoginResponse{
			Success: false,
			Message: "Server misconfiguration: ADMIN_TOTP_SECRET not set",
		})
		return
	}

	token, err := h.generateJWTToken(req.Username, role)
	if err != nil {
		h.logger.WithError(err).Error("Failed to sign JWT token")
		c.JSON(http.StatusInternalServerError, dto.LoginResponse{
			Success: false,
			Message: "Failed to generate token",
		})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"username": req.Username,
		"role":     role,
	}).Info("Login successful")
	c.JSON(http.StatusOK, dto.LoginResponse{
		Success: true,
		Token:   token,
		Message: "Login successful",
	})
}

// credentialsFor maps a username to its role, bcrypt password hash and TOTP
// secret from the environment. Unknown usernames return an empty role.
func credentialsFor(username string) (role, passwordHash, totpSecret string) {
	adminUsername := os.Getenv("ADMIN_USERNAME")
	if adminUsername == "" {
		adminUsername = "admin"
	}
	operatorUsername := os.Getenv("OPERATOR_USERNAME")
	if operatorUsername == "" {
		operatorUsername = "operator"
	}

	switch username {
	case adminUsername:
		return RoleAdmin, os.Getenv("ADMIN_PASSWORD_HASH"), os.Getenv("ADMIN_TOTP_SECRET")
	case operatorUsername:
		return RoleOperator, os.Getenv("OPERATOR_PASSWORD_HASH"), os.Getenv("OPERATOR_TOTP_SECRET")
	default:
		return "", "", ""
	}
}

// GenerateTOTPSecretHandler generates a fresh TOTP secret for initial setup.
// Disabled once a secret is configured in the environment.
func (h *AuthHandler) GenerateTOTPSecretHandler(c *gin.Context) {
	if os.Getenv("ADMIN_TOTP_SECRET") != "" {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "TOTP secret already configured in environment",
		})
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "Cashier Backend",
		AccountName: "admin@cashier",
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to generate TOTP secret",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"secret":  key.Secret(),
		"url":     key.URL(),
		"message": "Save this secret securely to ADMIN_TOTP_SECRET env var. Use it to generate TOTP codes.",
	})
}

func (h *AuthHandler) generateJWTToken(username, role string) (string, error) {
	claims := dto.JWTClaims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(12 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "cashier-backend",
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWTToken parses and validates an operator/admin token.
func ValidateJWTToken(tokenString string) (*dto.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &dto.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecretFromEnv(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*dto.JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
