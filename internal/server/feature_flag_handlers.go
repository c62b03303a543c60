package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags handles GET /api/feature-flags. Rollout buckets are keyed
// on the caller's organization, or the user for buyers.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	a := actor(c)
	subject := a.UserID
	if a.IsOrganization() {
		subject = a.OrganizationID
	}
	return c.JSON(s.svc.Flags.Snapshot(subject))
}
