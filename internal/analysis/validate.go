package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	billSchemaOnce sync.Once
	billSchema     *jsonschema.Schema
	billSchemaErr  error
)

func compiledBillSchema() (*jsonschema.Schema, error) {
	billSchemaOnce.Do(func() {
		b, err := json.Marshal(BuildBillJSONSchema())
		if err != nil {
			billSchemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("bill.schema.json", bytes.NewReader(b)); err != nil {
			billSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		billSchema, billSchemaErr = compiler.Compile("bill.schema.json")
	})
	return billSchema, billSchemaErr
}

// ValidateBillJSON validates data against the bill schema.
func ValidateBillJSON(data []byte) error {
	schema, err := compiledBillSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
