// Package models defines the core domain models for tenant-defined workflow state machines.
package models

import "time"

// WorkflowDefinition is a named, versioned workflow specification owned by a tenant.
type WorkflowDefinition struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"  validate:"required"`
	Key       string    `json:"key"        validate:"required"`
	Name      string    `json:"name"`
	Version   int       `json:"version"    validate:"min=1"`
	Spec      *Spec     `json:"spec"       validate:"required"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InitialState returns the first state declared in the spec, which new instances start in.
func (d *WorkflowDefinition) InitialState() (string, bool) {
	if d == nil || d.Spec == nil || len(d.Spec.States) == 0 {
		return "", false
	}

	return d.Spec.States[0].Name, true
}

// Spec is the workflow specification document authored by tenant administrators.
type Spec struct {
	Key    string      `json:"key"            yaml:"key"`
	Name   string      `json:"name,omitempty" yaml:"name,omitempty"`
	States []StateSpec `json:"states"         yaml:"states"`
}

// StateSpec declares one state, its entry/exit actions and its outgoing transitions.
type StateSpec struct {
	Name        string           `json:"name"                  yaml:"name"`
	OnEnter     []string         `json:"on_enter,omitempty"    yaml:"on_enter,omitempty"`
	OnExit      []string         `json:"on_exit,omitempty"     yaml:"on_exit,omitempty"`
	Transitions []TransitionSpec `json:"transitions,omitempty" yaml:"transitions,omitempty"`
}

// TransitionSpec is a trigger-to-target edge, optionally guarded by an expression.
type TransitionSpec struct {
	Trigger string `json:"trigger"         yaml:"trigger"`
	To      string `json:"to"              yaml:"to"`
	Guard   string `json:"guard,omitempty" yaml:"guard,omitempty"`
}

// Clone returns a deep copy of the spec.
func (s *Spec) Clone() *Spec {
	if s == nil {
		return nil
	}

	clone := &Spec{Key: s.Key, Name: s.Name}

	if s.States != nil {
		clone.States = make([]StateSpec, len(s.States))

		for i, state := range s.States {
			clone.States[i] = StateSpec{
				Name:        state.Name,
				OnEnter:     cloneStrings(state.OnEnter),
				OnExit:      cloneStrings(state.OnExit),
				Transitions: append([]TransitionSpec(nil), state.Transitions...),
			}
		}
	}

	return clone
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}

	return append([]string(nil), in...)
}
