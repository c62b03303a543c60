package server

import (
	"errors"
	"strings"

	"keyhouse/internal/middleware"
	"keyhouse/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// statusFor maps an engine error onto an HTTP status.
func statusFor(err error) int {
	switch models.ErrorCode(err) {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeConflict:
		return fiber.StatusConflict
	case models.CodePrecondition:
		return fiber.StatusUnprocessableEntity
	case models.CodeForbidden:
		return fiber.StatusForbidden
	}
	return fiber.StatusInternalServerError
}

// respondError writes err with the status matching its code.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, statusFor(err), err)
}

// parseUUIDParam extracts a route parameter as a UUID.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func parseUUIDParam(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return uuid.Nil, errResponseWritten
	}
	return id, nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "orgId" -> "org ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		return strings.ToLower(param[:len(param)-2]) + " ID"
	}
	return param
}

// parseBody decodes the JSON body into dest, writing a 400 on failure.
func parseBody(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// actor returns the authenticated caller. AuthRequired guarantees presence
// on protected routes.
func actor(c *fiber.Ctx) models.Actor {
	a, _ := middleware.ActorFromLocals(c)
	return a
}

func isPlatform(a models.Actor) bool {
	return a.IsOrganization() && a.OrganizationType == models.OrganizationTypePlatform
}

// requirePlatform writes a 403 unless the caller is a platform operator.
func requirePlatform(c *fiber.Ctx) error {
	if !isPlatform(actor(c)) {
		_ = respondError(c, models.NewForbiddenError("Platform operator access required"))
		return errResponseWritten
	}
	return nil
}
