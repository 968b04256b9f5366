package main

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/goatkit/darxrun/internal/darx/exec"
	"github.com/goatkit/darxrun/internal/platform/apierrors"
)

// respondInvokeError maps an executor error to the darx error taxonomy
// of §7.
func respondInvokeError(c *gin.Context, err error) {
	var deployNotFound *exec.DeployNotFoundError
	var ioErr *exec.IOError
	var runtimeErr *exec.RuntimeError
	var timeoutErr *exec.TimeoutError
	var notAllowed *exec.NotAllowedError

	switch {
	case errors.As(err, &deployNotFound):
		apierrors.Error(c, apierrors.CodeDeployNotFound)
	case errors.As(err, &timeoutErr):
		apierrors.Error(c, apierrors.CodeTimeout)
	case errors.As(err, &ioErr):
		apierrors.ErrorWithMessage(c, apierrors.CodeIO, err.Error())
	case errors.As(err, &notAllowed):
		apierrors.ErrorWithMessage(c, apierrors.CodeBadRequest, err.Error())
	case errors.As(err, &runtimeErr):
		apierrors.ErrorWithMessage(c, apierrors.CodeRuntime, err.Error())
	default:
		apierrors.ErrorWithMessage(c, apierrors.CodeInternal, err.Error())
	}
}
