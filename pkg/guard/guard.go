// Package guard evaluates transition guard expressions.
//
// A guard is a JMESPath expression evaluated against a document with three members:
//
//	context   the instance's free-form context
//	payload   the payload supplied with the trigger
//	instance  {"state", "entity_type", "entity_id"}
//
// For example `payload.amount > ` + "`1000`" + ` && context.department == 'water'`.
package guard

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jmespath/go-jmespath"
)

// ErrInvalidGuard is returned when a guard expression cannot be compiled.
var ErrInvalidGuard = errors.New("invalid guard expression")

// Env is the data a guard is evaluated against.
type Env struct {
	Context    map[string]any
	Payload    map[string]any
	State      string
	EntityType string
	EntityID   string
}

// Compile checks that the expression is syntactically valid.
func Compile(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return nil
	}

	if _, err := jmespath.Compile(expression); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidGuard, expression, err)
	}

	return nil
}

// Evaluator evaluates guards, caching compiled expressions.
type Evaluator struct {
	mu       sync.RWMutex
	compiled map[string]*jmespath.JMESPath
}

// NewEvaluator creates an evaluator with an empty expression cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{compiled: make(map[string]*jmespath.JMESPath)}
}

// Evaluate reports whether the guard holds for env. An empty guard always holds.
func (e *Evaluator) Evaluate(expression string, env Env) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return true, nil
	}

	program, err := e.program(expression)
	if err != nil {
		return false, err
	}

	document, err := env.document()
	if err != nil {
		return false, err
	}

	result, err := program.Search(document)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate guard %q: %w", expression, err)
	}

	ok, err := Truthy(result)
	if err != nil {
		return false, fmt.Errorf("guard %q: %w", expression, err)
	}

	return ok, nil
}

func (e *Evaluator) program(expression string) (*jmespath.JMESPath, error) {
	e.mu.RLock()
	program, ok := e.compiled[expression]
	e.mu.RUnlock()

	if ok {
		return program, nil
	}

	program, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidGuard, expression, err)
	}

	e.mu.Lock()
	e.compiled[expression] = program
	e.mu.Unlock()

	return program, nil
}

// document normalizes env through JSON so numbers compare as float64, as JMESPath expects.
func (env Env) document() (any, error) {
	raw, err := json.Marshal(map[string]any{
		"context": emptyIfNil(env.Context),
		"payload": emptyIfNil(env.Payload),
		"instance": map[string]any{
			"state":       env.State,
			"entity_type": env.EntityType,
			"entity_id":   env.EntityID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal guard data: %w", err)
	}

	var document any
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("failed to unmarshal guard data: %w", err)
	}

	return document, nil
}

func emptyIfNil(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}

	return in
}
