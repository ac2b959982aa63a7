package middleware

import (
	"SentraKTP/internal/entity"
	jwtPkg "SentraKTP/pkg/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	AccessTokenSecret = "JWT_ACCESS_TOKEN_SECRET"
	unauthorized      = "Unauthorized, access token invalid or expired"
)

// NewTokenMiddleware admits requests carrying a client token with id and
// name claims.
func (m *middleware) NewTokenMiddleware(ctx *fiber.Ctx) error {
	requestID := m.GetRequestID(ctx)

	userToken, err := jwtPkg.VerifyTokenHeader(ctx, AccessTokenSecret)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"client_ip":  ctx.IP(),
			"error":      err.Error(),
		}).Warn("Token verification failed")
		return m.errHandler.HandleUnauthorized(ctx, requestID, unauthorized)
	}

	claims, ok := userToken.Claims.(jwt.MapClaims)
	if !ok {
		return m.errHandler.HandleUnauthorized(ctx, requestID, unauthorized)
	}

	id, _ := claims["id"].(string)
	name, _ := claims["name"].(string)
	if id == "" || name == "" {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      "Token claims are missing required fields",
		}).Warn("Token claims check")
		return m.errHandler.HandleUnauthorized(ctx, requestID, unauthorized)
	}

	ctx.Locals(jwtPkg.ClientLocalsKey, entity.ClientLoginData{
		ID:   id,
		Name: name,
	})

	m.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"client_id":  id,
	}).Debug("Authentication successful")
	return ctx.Next()
}
