package main

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goatkit/darxrun/internal/darx/deploy"
	"github.com/goatkit/darxrun/internal/darx/models"
	"github.com/goatkit/darxrun/internal/darx/notify"
	"github.com/goatkit/darxrun/internal/darx/vars"
	"github.com/goatkit/darxrun/internal/platform/apierrors"
)

// app is the control plane's composition root: every handler is a
// method so each gets the store/client wiring without package globals.
type app struct {
	deploys *deploy.Store
	vars    *vars.Store
	notify  *notify.Client // nil when no data-plane address is configured
	log     *slog.Logger
}

type deployCodeRequest struct {
	Codes       []models.Code `json:"codes" binding:"required"`
	Tag         *string       `json:"tag"`
	Description *string       `json:"description"`
}

type deployResponse struct {
	DeploySeq int64          `json:"deploy_seq"`
	Codes     []models.Code  `json:"codes"`
	Routes    []models.Route `json:"routes"`
}

// handleDeployCode implements POST /deploy_code/:env_id.
func (a *app) handleDeployCode(c *gin.Context) {
	envID := c.Param("env_id")
	var req deployCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeBadRequest, err.Error())
		return
	}

	result, err := a.deploys.DeployCode(c.Request.Context(), envID, req.Codes, req.Tag, req.Description)
	if err != nil {
		respondDeployError(c, err)
		return
	}

	a.notifyCodeDeploy(c, envID, result)
	c.JSON(http.StatusOK, deployResponse{DeploySeq: result.DeploySeq, Codes: result.Codes, Routes: result.Routes})
}

type deployPluginRequest struct {
	OwningEnvID string        `json:"owning_env_id" binding:"required"`
	Codes       []models.Code `json:"codes" binding:"required"`
	Tag         *string       `json:"tag"`
	Description *string       `json:"description"`
}

// handleDeployPlugin implements POST /deploy_plugin/:plugin_name.
func (a *app) handleDeployPlugin(c *gin.Context) {
	pluginName := c.Param("plugin_name")
	var req deployPluginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeBadRequest, err.Error())
		return
	}

	result, err := a.deploys.DeployPlugin(c.Request.Context(), pluginName, req.OwningEnvID, req.Codes, req.Tag, req.Description)
	if err != nil {
		respondDeployError(c, err)
		return
	}

	if a.notify != nil {
		payload := notify.PluginDeployPayload{
			PluginName: pluginName,
			CodeDeployPayload: notify.CodeDeployPayload{
				EnvID:     req.OwningEnvID,
				DeploySeq: result.DeploySeq,
				Codes:     result.Codes,
				Routes:    result.Routes,
			},
		}
		if err := a.notify.NotifyPluginDeploy(c.Request.Context(), payload); err != nil {
			a.log.Error("failed to notify data plane of plugin deploy", "plugin_name", pluginName, "error", err)
		}
	}

	c.JSON(http.StatusOK, deployResponse{DeploySeq: result.DeploySeq, Codes: result.Codes, Routes: result.Routes})
}

type deployVarRequest struct {
	Vars        map[string]string `json:"vars"`
	Description *string           `json:"description"`
}

// handleDeployVar implements POST /deploy_var/:env_id.
func (a *app) handleDeployVar(c *gin.Context) {
	envID := c.Param("env_id")
	var req deployVarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeBadRequest, err.Error())
		return
	}

	effective, err := a.vars.DeployVar(c.Request.Context(), envID, req.Vars, req.Description)
	if err != nil {
		respondDeployError(c, err)
		return
	}

	if a.notify != nil {
		if err := a.notify.NotifyVarDeploy(c.Request.Context(), notify.VarDeployPayload{EnvID: envID}); err != nil {
			a.log.Error("failed to notify data plane of var deploy", "env_id", envID, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"effective": effective})
}

// handleListCode implements GET /list_code/:env_id.
func (a *app) handleListCode(c *gin.Context) {
	envID := c.Param("env_id")
	codes, routes, err := a.deploys.ListCode(c.Request.Context(), envID)
	if err != nil {
		respondDeployError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"codes": codes, "routes": routes})
}

// handleListAPI implements GET /list_api/:env_id, merging the tenant's
// own routes with every plugin's routes under "_plugins/<name>/".
func (a *app) handleListAPI(c *gin.Context) {
	envID := c.Param("env_id")
	routes, err := a.deploys.ListAPI(c.Request.Context(), envID)
	if err != nil {
		respondDeployError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"routes": routes})
}

func (a *app) notifyCodeDeploy(c *gin.Context, envID string, result *deploy.Result) {
	if a.notify == nil {
		return
	}
	payload := notify.CodeDeployPayload{EnvID: envID, DeploySeq: result.DeploySeq, Codes: result.Codes, Routes: result.Routes}
	if err := a.notify.NotifyCodeDeploy(c.Request.Context(), payload); err != nil {
		a.log.Error("failed to notify data plane of code deploy", "env_id", envID, "error", err)
	}
}
