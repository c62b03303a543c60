// Package middleware provides the Fiber middleware chain: actor extraction,
// structured logging, rate limiting and tracing.
package middleware

import (
	"strings"

	"keyhouse/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const actorLocalsKey = "actor"

// ActorClaims is the token payload issued by the identity provider. Buyers
// carry no organization claims.
type ActorClaims struct {
	OrganizationID   string `json:"org_id,omitempty"`
	OrganizationType string `json:"org_type,omitempty"`
	jwt.RegisteredClaims
}

// AuthRequired returns a middleware that validates the bearer token and stores
// the authenticated actor in c.Locals. Authentication itself happens upstream;
// this only turns a signed token into a models.Actor.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Authorization header required")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return unauthorized(c, "Invalid authorization header format")
		}

		actor, err := ParseActorToken(parts[1], secret)
		if err != nil {
			return unauthorized(c, err.Error())
		}

		c.Locals(actorLocalsKey, actor)
		return c.Next()
	}
}

// ParseActorToken validates an HMAC-signed token and extracts the actor.
func ParseActorToken(tokenString, secret string) (models.Actor, error) {
	claims := &ActorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return models.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "Invalid user ID in token")
	}

	actor := models.Actor{UserID: userID}
	if claims.OrganizationID != "" {
		orgID, err := uuid.Parse(claims.OrganizationID)
		if err != nil {
			return models.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "Invalid organization ID in token")
		}
		orgType := models.OrganizationType(claims.OrganizationType)
		if !orgType.Valid() {
			return models.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "Invalid organization type in token")
		}
		actor.OrganizationID = orgID
		actor.OrganizationType = orgType
	}

	return actor, nil
}

// SignActorToken issues a token for the given actor. Used by seed tooling and tests.
func SignActorToken(actor models.Actor, secret string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = actor.UserID.String()
	payload := ActorClaims{RegisteredClaims: claims}
	if actor.IsOrganization() {
		payload.OrganizationID = actor.OrganizationID.String()
		payload.OrganizationType = string(actor.OrganizationType)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString([]byte(secret))
}

// ActorFromLocals returns the actor stored by AuthRequired.
func ActorFromLocals(c *fiber.Ctx) (models.Actor, bool) {
	actor, ok := c.Locals(actorLocalsKey).(models.Actor)
	return actor, ok
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
	})
}
