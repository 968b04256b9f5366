package main

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/goatkit/darxrun/internal/darx/deploy"
	"github.com/goatkit/darxrun/internal/darx/exports"
	"github.com/goatkit/darxrun/internal/darx/routebuild"
	"github.com/goatkit/darxrun/internal/darx/vars"
	"github.com/goatkit/darxrun/internal/platform/apierrors"
)

// respondDeployError maps a deploy/vars store error onto the darx error
// taxonomy, falling back to darx:internal for anything unrecognized.
func respondDeployError(c *gin.Context, err error) {
	var tenantNotFound *deploy.TenantNotFoundError
	var reservedPath *deploy.ReservedPathError
	var varTenantNotFound *vars.TenantNotFoundError
	var scopeDelete *vars.DeploymentScopeDeleteError
	var parseErr *exports.ParseError
	var sigErr *exports.BadSignatureError
	var suffixErr *routebuild.ErrNoRecognizedSuffix

	switch {
	case errors.As(err, &tenantNotFound), errors.As(err, &varTenantNotFound):
		apierrors.Error(c, apierrors.CodeTenantNotFound)
	case errors.As(err, &reservedPath), errors.As(err, &scopeDelete), errors.As(err, &suffixErr):
		apierrors.ErrorWithMessage(c, apierrors.CodeBadRequest, err.Error())
	case errors.As(err, &parseErr):
		apierrors.ErrorWithMessage(c, apierrors.CodeParseError, err.Error())
	case errors.As(err, &sigErr):
		apierrors.ErrorWithMessage(c, apierrors.CodeBadSignature, err.Error())
	default:
		apierrors.ErrorWithMessage(c, apierrors.CodeInternal, err.Error())
	}
}
