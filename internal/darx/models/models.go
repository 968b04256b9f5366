// Package models holds the data shapes shared across the darx
// packages: Tenant, Deployment, Code, Route, Variable, and Plugin.
package models

import "time"

// RegistryFileName is the reserved Code path injected by the registry
// generator. Deploying a file with this path is rejected.
const RegistryFileName = "__registry.js"

// FunctionsPrefix is the only Code path prefix the parser treats as
// routable; everything else is persisted but ignored.
const FunctionsPrefix = "functions/"

// PluginRoutePrefix addresses plugin indirection: a URL of the form
// "_plugins/<name>/<rest>" is rewritten before routing.
const PluginRoutePrefix = "_plugins/"

// Tenant is an opaque isolation unit owning deployments and variables.
type Tenant struct {
	EnvID         string
	NextDeploySeq int64
	NextVarSeq    int64
	CreatedAt     time.Time
}

// Code is one source file uploaded as part of a deployment.
type Code struct {
	FsPath  string `json:"fs_path"`
	Content string `json:"content"`
	Size    int
}

// Signature is the parsed shape of one exported function.
type Signature struct {
	Version    int
	ExportName string
	ParamNames []string
}

// Route maps a URL to an exported function of a deployment.
type Route struct {
	HTTPPath   string
	Method     string // always "POST" in this design
	EntryFile  string
	ExportName string
	Signature  Signature
}

// Deployment is the atomic, immutable unit of code release.
type Deployment struct {
	DeployID   string
	EnvID      string
	DeploySeq  int64
	Tag        string
	Desc       string
	CreatedAt  time.Time
	Codes      []Code
	Routes     []Route
}

// VarScope distinguishes tenant-scope (soft-deletable) from
// deployment-scope (write-once) variables.
type VarScope string

const (
	ScopeTenant     VarScope = "tenant"
	ScopeDeployment VarScope = "deployment"
)

// Variable is one key/value binding at tenant or deployment scope.
type Variable struct {
	Scope     VarScope
	OwnerID   string // env_id for tenant scope, deploy_id for deployment scope
	Key       string
	Value     string
	Deleted   bool
	UpdatedAt time.Time
}

// Plugin registers a globally unique name against its owning tenant.
type Plugin struct {
	Name        string
	OwningEnvID string
	CreatedAt   time.Time
}
