package middleware

import (
	"errors"
	"strings"

	"city-pulse/internal/pkg/jwt"
	"city-pulse/internal/usecase/auth"

	"github.com/gofiber/fiber/v3"
)

const CtxAuthKey = "auth_context"

type AuthMiddleware struct {
	jwt jwt.Service
}

func NewAuthMiddleware(jwtSvc jwt.Service) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwtSvc}
}

// Middleware validates the bearer token and stores an AuthContext for the
// handler. Orchestration code never inspects tokens; it only ever sees the
// resolved AuthContext.
func (m *AuthMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok := bearerTokenFromHeader(c.Get("Authorization"))
		if !ok {
			return NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return NewAppError(fiber.StatusUnauthorized, "Token expired", nil, err)
			}
			return NewAppError(fiber.StatusUnauthorized, "Invalid token", nil, err)
		}
		if claims.TokenType != jwt.TokenTypeAccess {
			return NewAppError(fiber.StatusUnauthorized, "Invalid token", nil, nil)
		}

		c.Locals(CtxAuthKey, auth.AuthContext{Operator: claims.Operator})
		return c.Next()
	}
}

// AuthContextFrom returns the AuthContext set by the middleware, if any.
func AuthContextFrom(c fiber.Ctx) (auth.AuthContext, bool) {
	v, ok := c.Locals(CtxAuthKey).(auth.AuthContext)
	return v, ok
}

func bearerTokenFromHeader(authHeader string) (string, bool) {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
