package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lastcall-foods/lastcall/pkg/market"
)

const claimsContextKey = "auth_claims"

const (
	roleCustomer = "customer"
	roleSeller   = "seller"
)

// SessionClaims carries the authenticated user and their role.
type SessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the session.
func (claims *SessionClaims) UserID() string {
	return claims.Subject
}

// SessionValidator parses and validates session tokens from the Authorization
// header or the session cookie.
type SessionValidator struct {
	signingKey []byte
	issuer     string
	cookieName string
}

// SessionConfig configures a SessionValidator.
type SessionConfig struct {
	SigningKey []byte
	Issuer     string
	CookieName string
}

// NewSessionValidator wires a SessionValidator.
func NewSessionValidator(cfg SessionConfig) (*SessionValidator, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("%w: session signing key is empty", market.ErrValidation)
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("%w: session issuer is empty", market.ErrValidation)
	}
	if strings.TrimSpace(cfg.CookieName) == "" {
		cfg.CookieName = "session"
	}
	return &SessionValidator{
		signingKey: cfg.SigningKey,
		issuer:     cfg.Issuer,
		cookieName: cfg.CookieName,
	}, nil
}

// GinMiddleware rejects unauthenticated requests and stores the parsed claims
// on the gin context.
func (validator *SessionValidator) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw := validator.extractToken(ctx)
		if raw == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
			return
		}
		claims := &SessionClaims{}
		_, err := jwt.ParseWithClaims(raw, claims,
			func(token *jwt.Token) (interface{}, error) {
				return validator.signingKey, nil
			},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(validator.issuer),
		)
		if err != nil || claims.Subject == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid session"))
			return
		}
		ctx.Set(claimsContextKey, claims)
		ctx.Next()
	}
}

func (validator *SessionValidator) extractToken(ctx *gin.Context) string {
	header := ctx.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	cookie, err := ctx.Cookie(validator.cookieName)
	if err != nil {
		return ""
	}
	return cookie
}

func getClaims(ctx *gin.Context) *SessionClaims {
	value, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, ok := value.(*SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

// requireRole aborts with 403 unless the session carries the given role.
func requireRole(role string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims := getClaims(ctx)
		if claims == nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
			return
		}
		if claims.Role != role {
			ctx.AbortWithStatusJSON(http.StatusForbidden, errorResponse("forbidden", "insufficient role"))
			return
		}
		ctx.Next()
	}
}
