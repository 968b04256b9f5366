// Package apierrors provides structured API error codes and responses.
// All codes are namespaced (e.g., "darx:tenant_not_found").
package apierrors

import "net/http"

// Darx error codes.
const (
	CodeAuth             = "darx:auth"
	CodeTenantNotFound   = "darx:tenant_not_found"
	CodeDeployNotFound   = "darx:deploy_not_found"
	CodeFunctionNotFound = "darx:function_not_found"
	CodePluginNotFound   = "darx:plugin_not_found"
	CodeBadRequest       = "darx:bad_request"
	CodeParseError       = "darx:parse_error"
	CodeBadSignature     = "darx:bad_signature"
	CodeInvalidPluginURL = "darx:invalid_plugin_url"
	CodeRuntime          = "darx:runtime"
	CodeIO               = "darx:io"
	CodeTimeout          = "darx:timeout"
	CodeInternal         = "darx:internal"
)

// coreErrors defines all core error codes with their default messages,
// HTTP status, and the numeric wire code carried over from the Rust
// original's ApiError::error_code() scheme (3-digit HTTP + 2-digit
// suffix).
var coreErrors = []ErrorCode{
	{Code: CodeAuth, Message: "authentication required", HTTPStatus: http.StatusUnauthorized, NumericCode: 40100},
	{Code: CodeTenantNotFound, Message: "tenant not found", HTTPStatus: http.StatusNotFound, NumericCode: 40401},
	{Code: CodeDeployNotFound, Message: "deployment not found", HTTPStatus: http.StatusNotFound, NumericCode: 40402},
	{Code: CodeFunctionNotFound, Message: "function not found", HTTPStatus: http.StatusNotFound, NumericCode: 40403},
	{Code: CodePluginNotFound, Message: "plugin not found", HTTPStatus: http.StatusNotFound, NumericCode: 40404},
	{Code: CodeBadRequest, Message: "bad request", HTTPStatus: http.StatusBadRequest, NumericCode: 40001},
	{Code: CodeParseError, Message: "could not parse module exports", HTTPStatus: http.StatusBadRequest, NumericCode: 40002},
	{Code: CodeBadSignature, Message: "unsupported export parameter pattern", HTTPStatus: http.StatusBadRequest, NumericCode: 40003},
	{Code: CodeInvalidPluginURL, Message: "invalid plugin url", HTTPStatus: http.StatusBadRequest, NumericCode: 40004},
	{Code: CodeRuntime, Message: "guest runtime error", HTTPStatus: http.StatusInternalServerError, NumericCode: 50001},
	{Code: CodeIO, Message: "storage or filesystem error", HTTPStatus: http.StatusInternalServerError, NumericCode: 50002},
	{Code: CodeTimeout, Message: "invocation timed out", HTTPStatus: http.StatusRequestTimeout, NumericCode: 40800},
	{Code: CodeInternal, Message: "internal error", HTTPStatus: http.StatusInternalServerError, NumericCode: 50099},
}

func init() {
	for _, e := range coreErrors {
		Registry.Register(e)
	}
}
