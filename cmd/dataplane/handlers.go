package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/goatkit/darxrun/internal/darx/exec"
	"github.com/goatkit/darxrun/internal/darx/materialize"
	"github.com/goatkit/darxrun/internal/darx/models"
	"github.com/goatkit/darxrun/internal/darx/notify"
	"github.com/goatkit/darxrun/internal/darx/plugins"
	"github.com/goatkit/darxrun/internal/darx/router"
	"github.com/goatkit/darxrun/internal/darx/vars"
	"github.com/goatkit/darxrun/internal/darx/workerpool"
	"github.com/goatkit/darxrun/internal/platform/apierrors"
)

// app is the data plane's composition root.
type app struct {
	db           *sql.DB
	vars         *vars.Store
	router       *router.Router
	plugins      *plugins.Registry
	materializer *materialize.Materializer
	pool         *workerpool.Pool
	log          *slog.Logger
}

// handleInvoke implements POST /invoke/*url (§4.F + §4.H): resolve the
// tenant from the leftmost Host label, match the route (following
// _plugins/<name>/ indirection when present), merge effective
// variables, and dispatch to the worker pool.
func (a *app) handleInvoke(c *gin.Context) {
	envID := tenantFromHost(c.Request.Host)
	if envID == "" {
		apierrors.Error(c, apierrors.CodeTenantNotFound)
		return
	}

	url := strings.TrimPrefix(c.Param("url"), "/")
	match, ok := a.router.MatchRoute(envID, url, http.MethodPost)
	if !ok {
		a.respondRouteMiss(c, url)
		return
	}

	var body map[string]json.RawMessage
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			apierrors.ErrorWithMessage(c, apierrors.CodeBadRequest, err.Error())
			return
		}
	}

	tenantVars, err := a.vars.EffectiveTenantVars(c.Request.Context(), match.EffectiveEnvID)
	if err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeIO, err.Error())
		return
	}
	deployVars, err := a.vars.HeadDeploymentVars(c.Request.Context(), match.EffectiveEnvID)
	if err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeIO, err.Error())
		return
	}
	merged := make(map[string]string, len(tenantVars)+len(deployVars))
	for k, v := range tenantVars {
		merged[k] = v
	}
	for k, v := range deployVars {
		merged[k] = v
	}

	deployDir := a.materializer.DeployDir(match.EffectiveEnvID, match.DeploySeq)
	reply := a.pool.Send(c.Request.Context(), workerpool.InvokeRequest{
		EnvID:       match.EffectiveEnvID,
		DeploySeq:   match.DeploySeq,
		DeployDir:   deployDir,
		Route:       match.Route,
		RequestBody: body,
		Env: exec.HostEnv{
			EnvID:     match.EffectiveEnvID,
			DeploySeq: match.DeploySeq,
			Vars:      merged,
			DB:        a.db,
		},
	})

	select {
	case r := <-reply:
		if r.Err != nil {
			respondInvokeError(c, r.Err)
			return
		}
		c.Data(http.StatusOK, "application/json", r.JSON)
	case <-c.Request.Context().Done():
		apierrors.Error(c, apierrors.CodeTimeout)
	}
}

// respondRouteMiss distinguishes an invalid/unknown plugin url from a
// plain function-not-found miss (§9.3: "numeric error code shape").
func (a *app) respondRouteMiss(c *gin.Context, url string) {
	if !strings.HasPrefix(url, models.PluginRoutePrefix) {
		apierrors.Error(c, apierrors.CodeFunctionNotFound)
		return
	}
	parts := strings.Split(url, "/")
	if len(parts) < 3 {
		apierrors.Error(c, apierrors.CodeInvalidPluginURL)
		return
	}
	if _, ok := a.plugins.Resolve(parts[1]); !ok {
		apierrors.Error(c, apierrors.CodePluginNotFound)
		return
	}
	apierrors.Error(c, apierrors.CodeFunctionNotFound)
}

// tenantFromHost extracts the leftmost label of a request's Host header
// as the tenant env_id, e.g. "env1.darx.example.com:8081" -> "env1".
func tenantFromHost(host string) string {
	host = strings.SplitN(host, ":", 2)[0]
	if host == "" {
		return ""
	}
	return strings.SplitN(host, ".", 2)[0]
}

// handleAddCodeDeploy implements POST /add_code_deploy, the control
// plane's notification of a completed deploy_code (§5).
func (a *app) handleAddCodeDeploy(c *gin.Context) {
	var payload notify.CodeDeployPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeBadRequest, err.Error())
		return
	}
	if err := a.materializer.Materialize(c.Request.Context(), payload.EnvID, payload.DeploySeq, payload.Codes, payload.Routes); err != nil {
		a.respondMaterializeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleAddPluginDeploy implements POST /add_plugin_deploy: materialize
// like a code deploy, then bind the plugin name in the registry so the
// router's _plugins/<name>/ indirection resolves (§4.J).
func (a *app) handleAddPluginDeploy(c *gin.Context) {
	var payload notify.PluginDeployPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeBadRequest, err.Error())
		return
	}
	if err := a.materializer.Materialize(c.Request.Context(), payload.EnvID, payload.DeploySeq, payload.Codes, payload.Routes); err != nil {
		a.respondMaterializeError(c, err)
		return
	}
	a.plugins.Register(payload.PluginName, payload.EnvID)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleAddVarDeploy implements POST /add_var_deploy. Effective
// variables are read straight from the store on every /invoke (§4.K),
// so there is no in-memory state here to update; the handler exists to
// satisfy §6's declared control-to-data notification surface and to
// log receipt for operational visibility.
func (a *app) handleAddVarDeploy(c *gin.Context) {
	var payload notify.VarDeployPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeBadRequest, err.Error())
		return
	}
	a.log.Info("received var deploy notification", "env_id", payload.EnvID, "var_seq", payload.VarSeq)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *app) respondMaterializeError(c *gin.Context, err error) {
	var notAllowed *materialize.NotAllowedError
	if errors.As(err, &notAllowed) {
		apierrors.ErrorWithMessage(c, apierrors.CodeBadRequest, err.Error())
		return
	}
	apierrors.ErrorWithMessage(c, apierrors.CodeIO, err.Error())
}
