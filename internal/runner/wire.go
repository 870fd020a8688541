package runner

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"github.com/roach88/zkfuzz/internal/ir"
)

//go:embed schema/result.schema.json
var resultSchemaJSON []byte

var (
	resultSchemaOnce sync.Once
	resultSchema     *jsonschema.Schema
	resultSchemaErr  error
)

// ResultSchema returns the JSON Schema of the execution result document.
func ResultSchema() []byte {
	return resultSchemaJSON
}

// DecodeResult validates data against the result schema and decodes it.
func DecodeResult(data []byte) (ir.Result, error) {
	resultSchemaOnce.Do(func() {
		resultSchema, resultSchemaErr = jsonschema.NewCompiler().Compile(resultSchemaJSON)
	})
	if resultSchemaErr != nil {
		return ir.Result{}, fmt.Errorf("compile result schema: %w", resultSchemaErr)
	}
	if !json.Valid(data) {
		return ir.Result{}, errors.New("result document is not JSON")
	}
	if res := resultSchema.ValidateJSON(data); !res.IsValid() {
		return ir.Result{}, fmt.Errorf("schema validation failed: %v", res.Errors)
	}
	var r ir.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return ir.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return r, nil
}
