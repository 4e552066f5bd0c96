package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/bassline/internal/compiler"
	"github.com/roach88/bassline/internal/ir"
)

// Error codes reported in the JSON envelope.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeLoadFailed  = "E004"
	ErrCodeNotFound    = "E005"
	ErrCodeInvalid     = "E006"
	ErrCodeRuntime     = "E007"
	ErrCodeMismatch    = "E008"
	ErrCodeBadArgument = "E009"
)

// LoadError represents an error that occurred while loading an input file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// loadNetwork reads a network file or CUE package directory.
func loadNetwork(path string) (ir.Bassline, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ir.Bassline{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("network not found: %s", path)}
	}
	b, err := compiler.LoadFile(path)
	if err != nil {
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			return ir.Bassline{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("%s: %s", ce.Field, ce.Message), Pos: ce.Pos}
		}
		return ir.Bassline{}, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
	return b, nil
}

// loadActions reads an action set from a YAML or JSON file. The document is
// either a list of actions or a mapping with an "actions" list.
func loadActions(path string) (ir.ActionSet, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("actions file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}

	// YAML is a superset of JSON, so one decoder reads both.
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("parse %s: %v", path, err)}
	}
	if doc, ok := raw.(map[string]any); ok {
		raw = doc["actions"]
	}
	if raw == nil {
		return ir.ActionSet{}, nil
	}

	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("%s: %v", path, err)}
	}
	set, err := ir.ActionsFromIR(v)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("%s: %v", path, err)}
	}
	return set, nil
}

// assignment is one --set flag.
type assignment struct {
	ContactID string
	Value     ir.IRValue
}

// parseAssignment splits "id=value". The value is read as JSON; anything
// that is not valid JSON is taken as a plain string.
func parseAssignment(s string) (assignment, error) {
	id, raw, ok := strings.Cut(s, "=")
	if !ok || id == "" {
		return assignment{}, fmt.Errorf("invalid assignment %q: want contact=value", s)
	}
	v, err := ir.UnmarshalIRValue([]byte(raw))
	if err != nil {
		if strings.Contains(err.Error(), "float") {
			return assignment{}, fmt.Errorf("invalid assignment %q: %w", s, err)
		}
		v = ir.IRString(raw)
	}
	return assignment{ContactID: id, Value: v}, nil
}

func parseAssignments(raw []string) ([]assignment, error) {
	out := make([]assignment, 0, len(raw))
	for _, s := range raw {
		a, err := parseAssignment(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
