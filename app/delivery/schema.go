package delivery

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed record.schema.json
var recordSchemaJSON string

var recordSchema = mustLoadSchema(recordSchemaJSON)

func mustLoadSchema(source string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("invalid record schema: %v", err))
	}
	return schema
}

// Validate checks a record against the downstream wire contract.
func Validate(record Record) error {
	result, err := recordSchema.Validate(gojsonschema.NewGoLoader(record))
	if err != nil {
		return fmt.Errorf("failed to validate record: %w", err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		problems = append(problems, resultErr.String())
	}
	return fmt.Errorf("record violates schema: %s", strings.Join(problems, "; "))
}
