package apierrors

import (
	"net/http"
	"testing"
)

func TestRegistry_CoreCodesRegistered(t *testing.T) {
	// Core codes should be registered via init()
	codes := Registry.All()
	if len(codes) == 0 {
		t.Fatal("No codes registered")
	}

	mustExist := []string{
		CodeTenantNotFound,
		CodeDeployNotFound,
		CodeFunctionNotFound,
		CodePluginNotFound,
		CodeParseError,
		CodeBadSignature,
		CodeInvalidPluginURL,
		CodeTimeout,
	}

	for _, code := range mustExist {
		if _, ok := Registry.Get(code); !ok {
			t.Errorf("core code %q not registered", code)
		}
	}
}

func TestRegistry_Namespacing(t *testing.T) {
	darxCodes := Registry.ByNamespace("darx")
	if len(darxCodes) == 0 {
		t.Fatal("No codes in 'darx' namespace")
	}

	for _, code := range darxCodes {
		if len(code.Code) < 5 || code.Code[:5] != "darx:" {
			t.Errorf("Code %q should have 'darx:' prefix", code.Code)
		}
	}
}

func TestRegistry_HTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{CodeTenantNotFound, http.StatusNotFound},
		{CodeDeployNotFound, http.StatusNotFound},
		{CodeBadRequest, http.StatusBadRequest},
		{CodeParseError, http.StatusBadRequest},
		{CodeTimeout, http.StatusRequestTimeout},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := Registry.HTTPStatus(tt.code); got != tt.status {
				t.Errorf("HTTPStatus(%q) = %d, want %d", tt.code, got, tt.status)
			}
		})
	}
}

func TestRegistry_UnknownCode(t *testing.T) {
	status := Registry.HTTPStatus("unknown:code")
	if status != http.StatusInternalServerError {
		t.Errorf("HTTPStatus for unknown code = %d, want %d", status, http.StatusInternalServerError)
	}

	msg := Registry.Message("unknown:code")
	if msg != "unknown:code" {
		t.Errorf("Message for unknown code = %q, want %q", msg, "unknown:code")
	}
}

func TestRegistry_RegisterPlugin(t *testing.T) {
	mockPlugin := &mockEnumerator{
		codes: []ErrorCode{
			{Code: "test_error", Message: "Test error", HTTPStatus: 400},
			{Code: "another_error", Message: "Another error", HTTPStatus: 500},
		},
	}

	Registry.RegisterPlugin("testplugin", mockPlugin)

	code, ok := Registry.Get("testplugin:test_error")
	if !ok {
		t.Fatal("Plugin code not registered")
	}
	if code.Message != "Test error" {
		t.Errorf("Message = %q, want %q", code.Message, "Test error")
	}
	if code.HTTPStatus != 400 {
		t.Errorf("HTTPStatus = %d, want %d", code.HTTPStatus, 400)
	}

	pluginCodes := Registry.ByNamespace("testplugin")
	if len(pluginCodes) != 2 {
		t.Errorf("ByNamespace(testplugin) returned %d codes, want 2", len(pluginCodes))
	}
}

type mockEnumerator struct {
	codes []ErrorCode
}

func (m *mockEnumerator) EnumerateErrors() []ErrorCode {
	return m.codes
}
