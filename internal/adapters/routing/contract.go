package routing

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// Schema names in the embedded API document.
const (
	SchemaSession     = "Session"
	SchemaSessionList = "SessionList"
	SchemaJob         = "Job"
	SchemaJobList     = "JobList"
	SchemaJobRequest  = "JobRequest"
	SchemaFilePayload = "FilePayload"
)

//go:embed openapi.yaml
var apiDocument []byte

// Contract checks engine payloads against the embedded OpenAPI document.
type Contract struct {
	doc *openapi3.T
}

// LoadContract parses and validates the embedded document.
func LoadContract() (*Contract, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(apiDocument)
	if err != nil {
		return nil, fmt.Errorf("load api document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid api document: %w", err)
	}
	return &Contract{doc: doc}, nil
}

// Validate decodes body as JSON and checks it against the named component schema.
func (c *Contract) Validate(schema string, body []byte) error {
	ref, ok := c.doc.Components.Schemas[schema]
	if !ok || ref == nil || ref.Value == nil {
		return fmt.Errorf("unknown schema %q", schema)
	}

	var value interface{}
	if err := json.Unmarshal(body, &value); err != nil {
		return fmt.Errorf("decode %s: %w", schema, err)
	}
	if err := ref.Value.VisitJSON(value); err != nil {
		return fmt.Errorf("%s does not match contract: %w", schema, err)
	}
	return nil
}

// Operations lists the operation ids the document declares, keyed by "METHOD path".
func (c *Contract) Operations() map[string]string {
	ops := make(map[string]string)
	for path, item := range c.doc.Paths.Map() {
		for method, op := range item.Operations() {
			ops[method+" "+path] = op.OperationID
		}
	}
	return ops
}
