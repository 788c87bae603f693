package compiler

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var documentSchema string

var ErrInvalidDocument = errors.New("invalid workflow document")

var schemaLoader = gojsonschema.NewStringLoader(documentSchema)

// ValidateDocument checks the structure of a raw JSON specification document.
func ValidateDocument(raw []byte) error {
	return validateLoader(gojsonschema.NewBytesLoader(raw))
}

// ValidateValue checks the structure of an already decoded document, e.g. one read from YAML.
func ValidateValue(document any) error {
	return validateLoader(gojsonschema.NewGoLoader(document))
}

func validateLoader(loader gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(schemaLoader, loader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if !result.Valid() {
		var messages []string
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(messages, "; "))
	}

	return nil
}
