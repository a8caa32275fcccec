// internal/middleware/auth.go
package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/apporbit/apporbit-backend/internal/auth"
	"github.com/apporbit/apporbit-backend/internal/i18n"
	"github.com/apporbit/apporbit-backend/internal/store"
	"github.com/apporbit/apporbit-backend/internal/utils"
)

const identityKey = "identity"

// Authenticate verifies the bearer token and stores the caller identity in
// the context. A missing or malformed header is 401; a token the provider
// rejects is 403.
func Authenticate(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			utils.UnauthorizedResponse(c, "")
			c.Abort()
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrVerifierTimeout):
			logrus.WithField("path", c.FullPath()).Warn("Identity verification timed out")
			utils.GatewayTimeoutResponse(c, "")
			c.Abort()
			return
		default:
			logrus.WithError(err).Debug("Rejected bearer token")
			utils.ForbiddenResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func GetIdentityFromContext(c *gin.Context) (*auth.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*auth.Identity)
	return identity, ok && identity != nil
}

// Scope fills the request-specific parts of a requirement.
type Scope func(c *gin.Context, req *auth.Requirement) error

// SubjectParam names the path parameter that holds the subject email.
func SubjectParam(name string) Scope {
	return func(c *gin.Context, req *auth.Requirement) error {
		req.SubjectEmail = c.Param(name)
		return nil
	}
}

// OwnerLookup resolves the owner email of the record addressed by the route.
type OwnerLookup func(ctx context.Context, id uuid.UUID) (string, error)

// OwnerParam resolves the owner of the record whose id is in the named path
// parameter.
func OwnerParam(name string, lookup OwnerLookup) Scope {
	return func(c *gin.Context, req *auth.Requirement) error {
		id, err := uuid.Parse(c.Param(name))
		if err != nil {
			return store.ErrNotFound
		}
		owner, err := lookup(c.Request.Context(), id)
		if err != nil {
			return err
		}
		req.OwnerEmail = owner
		return nil
	}
}

// Require gates a route on a capability. It must run after Authenticate.
func Require(engine *auth.Engine, capability auth.Capability, scopes ...Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentityFromContext(c)
		if !ok {
			utils.UnauthorizedResponse(c, "")
			c.Abort()
			return
		}

		req := auth.Requirement{Capability: capability}
		for _, scope := range scopes {
			if err := scope(c, &req); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					utils.NotFoundResponse(c, "product")
				} else {
					logrus.WithError(err).Error("Failed to resolve authorization scope")
					utils.InternalErrorResponse(c, "")
				}
				c.Abort()
				return
			}
		}

		decision, err := engine.Authorize(c.Request.Context(), identity, req)
		if err != nil {
			logrus.WithError(err).WithField("email", identity.Email).Error("Authorization failed")
			utils.InternalErrorResponse(c, "")
			c.Abort()
			return
		}
		if !decision.Allowed {
			logrus.WithFields(logrus.Fields{
				"email":      identity.Email,
				"capability": capability,
				"role":       decision.Role,
				"reason":     decision.Reason,
			}).Info("Access denied")
			utils.ForbiddenResponse(c, "")
			c.Abort()
			return
		}

		c.Next()
	}
}
