package handler

import (
	"context"
	stderrors "errors"

	"github.com/gin-gonic/gin"

	"github.com/minndara/site-admin/internal/service/auth"
	"github.com/minndara/site-admin/internal/service/catalog"
	"github.com/minndara/site-admin/internal/service/settings"
	jwtauth "github.com/minndara/site-admin/pkg/auth"
	"github.com/minndara/site-admin/pkg/errors"
	"github.com/minndara/site-admin/pkg/httputil"
)

// AppError maps service errors onto API errors. Anything unrecognised is an
// internal error.
func AppError(err error) *errors.AppError {
	if appErr, ok := errors.As(err); ok {
		return appErr
	}

	switch {
	case stderrors.Is(err, catalog.ErrNotFound):
		return errors.NotFound("service", err)
	case stderrors.Is(err, catalog.ErrInvalidCategory),
		stderrors.Is(err, catalog.ErrInvalidDirection),
		stderrors.Is(err, settings.ErrInvalidVariant):
		return errors.BadRequest(err.Error(), err)
	case stderrors.Is(err, catalog.ErrConfirmationRequired):
		return errors.PreconditionRequired("deleting a service requires confirm=true", err)
	case stderrors.Is(err, catalog.ErrConflict):
		return errors.Conflict(err.Error(), err)
	case stderrors.Is(err, auth.ErrInvalidCredentials):
		return &errors.AppError{Code: errors.ErrUnauthorized, Message: "invalid credentials", Err: err}
	case stderrors.Is(err, auth.ErrTokenRevoked), stderrors.Is(err, jwtauth.ErrInvalidToken):
		return errors.Unauthorized(err)
	case stderrors.Is(err, auth.ErrNotAllowed):
		return errors.Forbidden(err.Error(), err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Unavailable("the document store did not answer in time", err)
	}
	return errors.Internal(err)
}

// RespondWithError writes err in the response envelope.
func RespondWithError(c *gin.Context, err error) {
	httputil.RespondWithError(c, AppError(err))
}
