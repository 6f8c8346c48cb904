package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-quiz-api/internal/utils"
)

const (
	localsUserID   = "user_id"
	localsUserRole = "user_role"
)

// Roles carried in access tokens.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID uint
	Role   string
}

// SetIdentity stores the caller on the request locals.
func SetIdentity(c *fiber.Ctx, identity Identity) {
	c.Locals(localsUserID, identity.UserID)
	c.Locals(localsUserRole, normalizeRole(identity.Role))
}

// IdentityFromCtx returns the caller stored by JWTProtected.
func IdentityFromCtx(c *fiber.Ctx) (Identity, bool) {
	userID, ok := c.Locals(localsUserID).(uint)
	if !ok || userID == 0 {
		return Identity{}, false
	}
	role, _ := c.Locals(localsUserRole).(string)
	return Identity{UserID: userID, Role: role}, true
}

// RequireRole rejects callers without one of the allowed roles. Admins pass
// every teacher check.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := normalizeRole(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}
	if _, ok := allowed[RoleTeacher]; ok {
		allowed[RoleAdmin] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromCtx(c)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if _, ok := allowed[identity.Role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
