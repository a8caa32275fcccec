// internal/handlers/errors.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/apporbit/apporbit-backend/internal/i18n"
	"github.com/apporbit/apporbit-backend/internal/middleware"
	"github.com/apporbit/apporbit-backend/internal/services"
	"github.com/apporbit/apporbit-backend/internal/utils"
)

// respondError maps service errors onto HTTP responses. resource names the
// record kind used in not-found messages.
func respondError(c *gin.Context, err error, resource string) {
	lang := utils.GetLangFromContext(c)

	var verr *services.ValidationError
	switch {
	case errors.Is(err, services.ErrUnsupportedFileType):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileInvalidType), err.Error())
	case errors.Is(err, services.ErrFileTooLarge):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileTooLarge), err.Error())
	case errors.Is(err, services.ErrStorageUnavailable):
		utils.ServiceUnavailableResponse(c, i18n.T(lang, i18n.KeyStorageUnavailable))
	case errors.As(err, &verr):
		if len(verr.Fields) > 0 {
			utils.ValidationErrorResponse(c, "", verr.Fields)
		} else {
			utils.BadRequestResponse(c, verr.Error(), nil)
		}
	case errors.Is(err, services.ErrValidation):
		utils.BadRequestResponse(c, err.Error(), nil)
	case errors.Is(err, services.ErrUnauthenticated):
		utils.UnauthorizedResponse(c, "")
	case errors.Is(err, services.ErrForbidden):
		utils.ForbiddenResponse(c, "")
	case errors.Is(err, services.ErrNotFound):
		utils.NotFoundResponse(c, resource)
	case errors.Is(err, services.ErrAlreadyVoted):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyProductAlreadyVoted))
	case errors.Is(err, services.ErrDuplicate):
		utils.ConflictResponse(c, i18n.T(lang, i18n.DuplicateKey(resource)))
	case errors.Is(err, services.ErrGatewayTimeout):
		utils.GatewayTimeoutResponse(c, "")
	default:
		logrus.WithError(err).WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"request_id": c.GetString("request_id"),
		}).Error("Request failed")
		utils.InternalErrorResponse(c, "")
	}
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}
	return true
}

// paramID parses a uuid path parameter. An unparseable id cannot name a
// stored record, so it is reported as not found.
func paramID(c *gin.Context, name, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.NotFoundResponse(c, resource)
		return uuid.Nil, false
	}
	return id, true
}

func currentIdentityEmail(c *gin.Context) (string, bool) {
	identity, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return "", false
	}
	return identity.Email, true
}

func actorFrom(c *gin.Context) services.Actor {
	actor := services.Actor{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if identity, ok := middleware.GetIdentityFromContext(c); ok {
		actor.Email = identity.Email
	}
	return actor
}
