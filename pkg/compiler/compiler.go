// Package compiler turns workflow specification documents into an indexed, queryable state table.
package compiler

import (
	"strings"

	"github.com/hydromis/wfengine/pkg/models"
)

// Transition is a compiled outgoing edge. Guards are carried verbatim and evaluated by the engine.
type Transition struct {
	Trigger string `json:"trigger"`
	To      string `json:"to"`
	Guard   string `json:"guard,omitempty"`
}

// State is a compiled state table entry.
type State struct {
	Name        string       `json:"-"`
	OnEnter     []string     `json:"on_enter"`
	OnExit      []string     `json:"on_exit"`
	Transitions []Transition `json:"transitions"`
}

// Terminal reports whether no transition leaves the state.
func (s *State) Terminal() bool {
	return len(s.Transitions) == 0
}

// CompiledDefinition maps state names to their compiled entries.
type CompiledDefinition struct {
	Key     string            `json:"key"`
	Initial string            `json:"initial,omitempty"`
	States  map[string]*State `json:"states"`
}

// State looks up a state by name.
func (c *CompiledDefinition) State(name string) (*State, bool) {
	state, ok := c.States[name]

	return state, ok
}

// Len returns the number of states in the table.
func (c *CompiledDefinition) Len() int {
	return len(c.States)
}

// Validate is a presence check: the spec needs a non-empty key and a states field.
func Validate(spec *models.Spec) bool {
	if spec == nil {
		return false
	}

	return strings.TrimSpace(spec.Key) != "" && spec.States != nil
}

// Compile builds the state table for spec. It is total over any spec accepted by Validate.
// Transition targets are not checked; a state declared twice keeps its last declaration.
func Compile(spec *models.Spec) *CompiledDefinition {
	compiled := &CompiledDefinition{
		States: make(map[string]*State),
	}

	if spec == nil {
		return compiled
	}

	compiled.Key = spec.Key

	for i, stateSpec := range spec.States {
		if i == 0 {
			compiled.Initial = stateSpec.Name
		}

		state := &State{
			Name:        stateSpec.Name,
			OnEnter:     listOrEmpty(stateSpec.OnEnter),
			OnExit:      listOrEmpty(stateSpec.OnExit),
			Transitions: make([]Transition, 0, len(stateSpec.Transitions)),
		}

		for _, transition := range stateSpec.Transitions {
			state.Transitions = append(state.Transitions, Transition{
				Trigger: transition.Trigger,
				To:      transition.To,
				Guard:   transition.Guard,
			})
		}

		compiled.States[stateSpec.Name] = state
	}

	return compiled
}

func listOrEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}

	return append([]string(nil), in...)
}
