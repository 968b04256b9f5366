// Package notify carries a deployment's persisted result from the
// control plane to the data plane over HTTP, the wire format for the
// post-deploy step of deploy_code and deploy_plugin that lets the data
// plane pick up a new deployment without a shared cache. Grounded on
// internal/service/genericinterface/transport_rest.go's plain
// *http.Client + json.Marshal request-building style, since there is
// no dedicated REST client library in scope here.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goatkit/darxrun/internal/darx/models"
)

// CodeDeployPayload is the body of POST /add_code_deploy.
type CodeDeployPayload struct {
	EnvID     string         `json:"env_id"`
	DeploySeq int64          `json:"deploy_seq"`
	Codes     []models.Code  `json:"codes"`
	Routes    []models.Route `json:"routes"`
}

// PluginDeployPayload is the body of POST /add_plugin_deploy: a
// CodeDeployPayload scoped to the plugin's owning tenant, plus the
// plugin name the data plane's registry should bind.
type PluginDeployPayload struct {
	PluginName string `json:"plugin_name"`
	CodeDeployPayload
}

// VarDeployPayload is the body of POST /add_var_deploy. The data plane
// reads effective variables straight from the store on every /invoke
// (§4.K), so there is no in-memory state for this RPC to update; it
// exists as an explicit acknowledgement hook in the same shape as the
// other two notifications, matching §6's declared external surface.
type VarDeployPayload struct {
	EnvID  string `json:"env_id"`
	VarSeq int64  `json:"var_seq"`
}

// Client posts deployment notifications to a data-plane address.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

func (c *Client) NotifyCodeDeploy(ctx context.Context, payload CodeDeployPayload) error {
	return c.post(ctx, "/add_code_deploy", payload)
}

func (c *Client) NotifyPluginDeploy(ctx context.Context, payload PluginDeployPayload) error {
	return c.post(ctx, "/add_plugin_deploy", payload)
}

func (c *Client) NotifyVarDeploy(ctx context.Context, payload VarDeployPayload) error {
	return c.post(ctx, "/add_var_deploy", payload)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("notify %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notify %s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return nil
}
