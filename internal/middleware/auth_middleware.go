package middleware

import (
	"strings"

	"go-inventory-insights/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Locals keys set by RequireAuth.
const (
	LocalUserID  = "user_id"
	LocalStoreID = "store_id"
	LocalRole    = "role"
)

// StoreHeader lets an author act on one store's data.
const StoreHeader = "X-Store-ID"

// bearerToken reads "Authorization: Bearer <token>", falling back to the
// token query parameter for websocket clients that cannot set headers.
func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, true
		}
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}

// RequireAuth verifies the bearer token and sets the caller's user, store and
// role in context.
func RequireAuth(verifier *jwt.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" && c.Query("token") == "" {
			return c.Status(401).JSON(fiber.Map{"error": "Missing authorization token"})
		}
		tokenString, ok := bearerToken(c)
		if !ok {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid authorization format. Use: Bearer <token>"})
		}

		claims, err := verifier.ValidateToken(tokenString)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		storeID := claims.StoreID
		if claims.Role == jwt.RoleAuthor {
			if raw := c.Get(StoreHeader); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					return c.Status(400).JSON(fiber.Map{"error": "Invalid " + StoreHeader})
				}
				storeID = id
			}
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalStoreID, storeID)
		c.Locals(LocalRole, claims.Role)
		return c.Next()
	}
}

// RequireStore rejects requests that are not bound to a store. Only authors
// can reach it without one, by omitting X-Store-ID.
func RequireStore() fiber.Handler {
	return func(c *fiber.Ctx) error {
		storeID, ok := c.Locals(LocalStoreID).(uuid.UUID)
		if !ok || storeID == uuid.Nil {
			return c.Status(400).JSON(fiber.Map{"error": "Store context required (" + StoreHeader + ")"})
		}
		return c.Next()
	}
}

// RequireRole checks the authenticated role against an allow list.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalRole).(string)
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return c.Status(403).JSON(fiber.Map{
			"error": "Forbidden: requires one of " + strings.Join(roles, ", ") + " roles",
		})
	}
}
