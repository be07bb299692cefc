package api

import (
	"slices"

	keycloakauth "github.com/JorgeSaicoski/keycloak-auth"
	"github.com/JorgeSaicoski/microservice-commons/responses"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/auth"
)

const (
	identityKey   = "identity"
	identityClaim = "tracker_identity"
)

// AuthMiddleware resolves the caller identity from a Keycloak access token:
// the subject is the user id and the realm roles decide the role. When
// trustGateway is set and the upstream gateway already authenticated the
// user, its X-User-ID and X-User-Role headers are taken as is.
func AuthMiddleware(kc keycloakauth.Config, trustGateway bool) gin.HandlerFunc {
	verify := keycloakauth.AuthMiddleware(kc, keycloakauth.AuthMiddlewareOptions{
		ClaimsExtractor: identityFromClaims,
		ErrorHandler:    unauthorized,
		ContextKeys: map[string]string{
			"sub":                "userID",
			"preferred_username": "username",
			identityClaim:        identityKey,
		},
	})

	return func(c *gin.Context) {
		if trustGateway {
			if userID := c.GetHeader("X-User-ID"); userID != "" {
				c.Set(identityKey, auth.Identity{
					UserID: userID,
					Role:   auth.ParseRole(c.GetHeader("X-User-Role")),
				})
				c.Next()
				return
			}
		}
		verify(c)
	}
}

// identityFromClaims runs inside the Keycloak middleware so the identity is
// in the context before the rest of the chain executes.
func identityFromClaims(claims jwt.MapClaims) map[string]any {
	out := make(map[string]any)
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return out
	}
	out["sub"] = sub
	if name, ok := claims["preferred_username"].(string); ok {
		out["preferred_username"] = name
	}
	out[identityClaim] = auth.Identity{UserID: sub, Role: auth.RoleFromRealm(realmRoles(claims))}
	return out
}

func realmRoles(claims jwt.MapClaims) []string {
	access, ok := claims["realm_access"].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := access["roles"].([]any)
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}

func unauthorized(c *gin.Context, err error) {
	responses.Unauthorized(c, err.Error())
	c.Abort()
}

// IdentityFrom returns the identity stored by AuthMiddleware.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok && id.UserID != ""
}

// RequireRole aborts with 403 unless the caller holds one of roles.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			responses.Unauthorized(c, "User not authenticated")
			c.Abort()
			return
		}
		if !slices.Contains(roles, id.Role) {
			responses.Forbidden(c, "role "+string(id.Role)+" is not allowed here")
			c.Abort()
			return
		}
		c.Next()
	}
}
