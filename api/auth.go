package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// Auth gates the destructive control routes behind a bearer JWT plus a
// TOTP code (golang-jwt/jwt/v5, pquerna/otp); the password that mints
// the JWT is checked with bcrypt rather than compared in the clear.
type Auth struct {
	jwtSecret    []byte
	totpSecret   string
	passwordHash []byte
	emergencyCred string
}

// NewAuth builds the operator-auth gate. jwtSecret signs session tokens,
// totpSecret is the base32 seed the operator's authenticator app shares,
// passwordHash is a bcrypt hash of the operator's login password,
// emergencyCred is the standing override credential required for
// the emergency-stop path (checked in addition to JWT+TOTP, not instead
// of them).
func NewAuth(jwtSecret []byte, totpSecret string, passwordHash []byte, emergencyCred string) *Auth {
	return &Auth{jwtSecret: jwtSecret, totpSecret: totpSecret, passwordHash: passwordHash, emergencyCred: emergencyCred}
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// IssueToken verifies password against the stored bcrypt hash and, on
// success, mints a short-lived session JWT.
func (a *Auth) IssueToken(password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", errInvalidCredentials
	}
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(12 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// RequireJWT rejects requests without a valid, unexpired bearer token.
func (a *Auth) RequireJWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw := strings.TrimPrefix(header, "Bearer ")
		if raw == header || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims := &sessionClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return a.jwtSecret, nil
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set("operator", claims.Subject)
		c.Next()
	}
}

// RequireTOTP additionally requires a valid 6-digit code in the
// X-TOTP-Code header — emergency actions need a second factor.
func (a *Auth) RequireTOTP() gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.GetHeader("X-TOTP-Code")
		if code == "" || !totp.Validate(code, a.totpSecret) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid TOTP code"})
			return
		}
		c.Next()
	}
}

// constantTimeEqual is used where a direct byte comparison would leak
// timing information (e.g. comparing an emergency override credential).
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RequireEmergencyCredential additionally demands the standing
// emergency override credential in the X-Emergency-Credential header,
// on top of JWT+TOTP, for the square-off-everything path.
func (a *Auth) RequireEmergencyCredential() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.emergencyCred == "" {
			c.Next() // no override credential configured: JWT+TOTP alone gate this route
			return
		}
		supplied := c.GetHeader("X-Emergency-Credential")
		if !constantTimeEqual(supplied, a.emergencyCred) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid emergency credential"})
			return
		}
		c.Next()
	}
}

var errInvalidCredentials = authError("invalid credentials")

type authError string

func (e authError) Error() string { return string(e) }
