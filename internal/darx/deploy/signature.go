package deploy

import (
	"encoding/json"

	"github.com/goatkit/darxrun/internal/darx/models"
)

// signatureWire is the {version, export_name, param_names[]} shape
// persisted to http_routes.signature_json (§3.1) so the data plane
// never has to re-parse source at lookup time.
type signatureWire struct {
	Version    int      `json:"version"`
	ExportName string   `json:"export_name"`
	ParamNames []string `json:"param_names"`
}

func marshalSignature(sig models.Signature) (string, error) {
	b, err := json.Marshal(signatureWire{
		Version:    sig.Version,
		ExportName: sig.ExportName,
		ParamNames: sig.ParamNames,
	})
	return string(b), err
}

func unmarshalSignature(raw string) (models.Signature, error) {
	var w signatureWire
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return models.Signature{}, err
	}
	return models.Signature{Version: w.Version, ExportName: w.ExportName, ParamNames: w.ParamNames}, nil
}
