package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hydromis/wfengine/pkg/compiler"
	"github.com/hydromis/wfengine/pkg/models"
	"gopkg.in/yaml.v3"
)

var errCheckFailed = errors.New("specification has errors")

// lint validates the document at path, prints every check issue to w and optionally the compiled table.
func lint(w io.Writer, path string, printCompiled bool) error {
	raw, err := os.ReadFile(path) // #nosec G304 -- path is supplied by the operator
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	spec, err := decodeSpec(path, raw)
	if err != nil {
		return err
	}

	report := compiler.Check(spec)

	for _, issue := range report.Issues {
		if _, err := fmt.Fprintln(w, issue.String()); err != nil {
			return err
		}
	}

	if report.HasErrors() {
		return fmt.Errorf("%w: %d error(s)", errCheckFailed, len(report.Errors()))
	}

	compiled := compiler.Compile(spec)

	if printCompiled {
		out, err := json.MarshalIndent(compiled, "", "  ")
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(w, string(out))

		return err
	}

	_, err = fmt.Fprintf(w, "%s: ok (%d states, initial %q)\n", spec.Key, compiled.Len(), compiled.Initial)

	return err
}

func decodeSpec(path string, raw []byte) (*models.Spec, error) {
	var spec models.Spec

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var document any
		if err := yaml.Unmarshal(raw, &document); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}

		if err := compiler.ValidateValue(document); err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(raw, &spec); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		if err := compiler.ValidateDocument(raw); err != nil {
			return nil, err
		}

		if err := json.Unmarshal(raw, &spec); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}

	return &spec, nil
}
