package compiler

import (
	"fmt"
	"strings"

	"github.com/hydromis/wfengine/pkg/guard"
	"github.com/hydromis/wfengine/pkg/models"
)

// Severity classifies a check issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue codes reported by Check.
const (
	CodeMissingKey       = "missing_key"
	CodeMissingStates    = "missing_states"
	CodeEmptyStateName   = "empty_state_name"
	CodeDuplicateState   = "duplicate_state"
	CodeEmptyTrigger     = "empty_trigger"
	CodeDanglingTarget   = "dangling_target"
	CodeInvalidGuard     = "invalid_guard"
	CodeUnreachableState = "unreachable_state"
)

// Issue is one finding reported by Check.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Path     string   `json:"path"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s [%s] %s: %s", i.Severity, i.Code, i.Path, i.Message)
}

// Report is the result of Check.
type Report struct {
	Issues []Issue `json:"issues"`
}

// HasErrors reports whether any issue blocks authoring.
func (r *Report) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}

	return false
}

// Errors returns the blocking issues.
func (r *Report) Errors() []Issue {
	var errs []Issue

	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			errs = append(errs, issue)
		}
	}

	return errs
}

// Error joins the blocking issues into one message.
func (r *Report) Error() string {
	messages := make([]string, 0, len(r.Issues))
	for _, issue := range r.Errors() {
		messages = append(messages, issue.String())
	}

	return strings.Join(messages, "; ")
}

// Check is the strict authoring-time validation. Unlike Validate it inspects every state and
// transition: duplicate or empty state names, dangling targets and bad guards are errors,
// states no transition can reach are warnings. It never stops at the first finding.
func Check(spec *models.Spec) *Report {
	report := &Report{}

	if spec == nil || strings.TrimSpace(spec.Key) == "" {
		report.add(SeverityError, CodeMissingKey, "key", "key is required")
	}

	if spec == nil || spec.States == nil {
		report.add(SeverityError, CodeMissingStates, "states", "states is required")

		return report
	}

	declared := make(map[string]int, len(spec.States))

	for i, state := range spec.States {
		path := fmt.Sprintf("states[%d]", i)

		if strings.TrimSpace(state.Name) == "" {
			report.add(SeverityError, CodeEmptyStateName, path+".name", "state name is required")

			continue
		}

		if first, ok := declared[state.Name]; ok {
			report.add(SeverityError, CodeDuplicateState, path+".name",
				fmt.Sprintf("state %q already declared at states[%d]", state.Name, first))

			continue
		}

		declared[state.Name] = i
	}

	for i, state := range spec.States {
		for j, transition := range state.Transitions {
			path := fmt.Sprintf("states[%d].transitions[%d]", i, j)

			if strings.TrimSpace(transition.Trigger) == "" {
				report.add(SeverityError, CodeEmptyTrigger, path+".trigger", "trigger is required")
			}

			if _, ok := declared[transition.To]; !ok {
				report.add(SeverityError, CodeDanglingTarget, path+".to",
					fmt.Sprintf("target %q is not a declared state", transition.To))
			}

			if err := guard.Compile(transition.Guard); err != nil {
				report.add(SeverityError, CodeInvalidGuard, path+".guard", err.Error())
			}
		}
	}

	for _, name := range unreachable(spec) {
		report.add(SeverityWarning, CodeUnreachableState, fmt.Sprintf("states[%d]", declared[name]),
			fmt.Sprintf("state %q cannot be reached from %q", name, spec.States[0].Name))
	}

	return report
}

func (r *Report) add(severity Severity, code, path, message string) {
	r.Issues = append(r.Issues, Issue{Severity: severity, Code: code, Path: path, Message: message})
}

// unreachable walks the transition graph from the initial state, in declaration order.
func unreachable(spec *models.Spec) []string {
	if len(spec.States) == 0 {
		return nil
	}

	edges := make(map[string][]string, len(spec.States))
	for _, state := range spec.States {
		for _, transition := range state.Transitions {
			edges[state.Name] = append(edges[state.Name], transition.To)
		}
	}

	visited := map[string]bool{spec.States[0].Name: true}
	queue := []string{spec.States[0].Name}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range edges[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	var names []string

	seen := make(map[string]bool, len(spec.States))
	for _, state := range spec.States {
		if state.Name == "" || visited[state.Name] || seen[state.Name] {
			continue
		}

		seen[state.Name] = true
		names = append(names, state.Name)
	}

	return names
}
