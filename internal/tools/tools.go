// Package tools implements the tool registry: registration-time shape
// validation, per-call parameter schema checking and execution wrapping,
// plus the built-in tool set.
package tools

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"pkt.systems/pslog"

	"github.com/agnt-gg/slop-sub000/internal/jsonval"
	"github.com/agnt-gg/slop-sub000/internal/svcfields"
)

// ErrNotFound is returned when an unknown tool id is requested.
var ErrNotFound = errors.New("tool not found")

// Handler is a tool body. Params have already passed schema validation when
// a handler runs.
type Handler func(ctx context.Context, params map[string]jsonval.Value) (jsonval.Value, error)

// ParamSpec declares one parameter of a tool schema.
type ParamSpec struct {
	Type        string
	Description string
	Required    bool
	Min         *float64
	Max         *float64
	MinLength   *int
	MaxLength   *int
	Pattern     string
	Enum        []string
	Items       *ParamSpec

	rx *regexp.Regexp
}

// Schema maps parameter names to their specs. Parameters not named in the
// schema are rejected at call time.
type Schema map[string]ParamSpec

// Tool is one registered tool. Safe tools may be executed under the
// tools.safe scope carve-out; unsafe tools require an explicit execute
// grant.
type Tool struct {
	ID          string
	Description string
	Safe        bool
	Parameters  Schema
	Handler     Handler
}

// ValidationError reports a caller-supplied parameter set that does not
// match the tool's schema.
type ValidationError struct {
	ToolID string
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("tool %s: %s", e.ToolID, e.Reason)
	}
	return fmt.Sprintf("tool %s: parameter %q %s", e.ToolID, e.Param, e.Reason)
}

// ExecutionError wraps a failure inside a tool body.
type ExecutionError struct {
	ToolID string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.ToolID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Registry holds the tool set. Registration happens at startup; Execute and
// the read paths are safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	tools  map[string]Tool
	logger pslog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger pslog.Logger) *Registry {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: svcfields.WithSubsystem(logger, "tools"),
	}
}

var validParamTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
	"array":   true,
	"object":  true,
}

// Register adds t to the registry. A malformed registration is an error;
// callers treat it as fatal at startup, not as a per-request condition.
func (r *Registry) Register(t Tool) error {
	if t.ID == "" {
		return errors.New("tool registration requires an id")
	}
	if t.Description == "" {
		return fmt.Errorf("tool %s: registration requires a description", t.ID)
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s: registration requires a handler", t.ID)
	}
	compiled := make(Schema, len(t.Parameters))
	for name, spec := range t.Parameters {
		checked, err := compileSpec(spec)
		if err != nil {
			return fmt.Errorf("tool %s: parameter %q: %w", t.ID, name, err)
		}
		compiled[name] = checked
	}
	t.Parameters = compiled

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.ID]; exists {
		return fmt.Errorf("tool %s: already registered", t.ID)
	}
	r.tools[t.ID] = t
	r.logger.Debug("tools.register", "tool_id", t.ID, "safe", t.Safe)
	return nil
}

func compileSpec(spec ParamSpec) (ParamSpec, error) {
	if !validParamTypes[spec.Type] {
		return spec, fmt.Errorf("unknown type %q", spec.Type)
	}
	if spec.Min != nil && spec.Max != nil && *spec.Min > *spec.Max {
		return spec, fmt.Errorf("min %v exceeds max %v", *spec.Min, *spec.Max)
	}
	if spec.MinLength != nil && *spec.MinLength < 0 {
		return spec, errors.New("negative min length")
	}
	if spec.MinLength != nil && spec.MaxLength != nil && *spec.MinLength > *spec.MaxLength {
		return spec, fmt.Errorf("min length %d exceeds max length %d", *spec.MinLength, *spec.MaxLength)
	}
	if spec.Pattern != "" {
		rx, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return spec, fmt.Errorf("invalid pattern: %w", err)
		}
		spec.rx = rx
	}
	if spec.Type == "array" {
		if spec.Items == nil {
			return spec, errors.New("array type requires items")
		}
		items, err := compileSpec(*spec.Items)
		if err != nil {
			return spec, fmt.Errorf("items: %w", err)
		}
		spec.Items = &items
	} else if spec.Items != nil {
		return spec, errors.New("items only applies to array type")
	}
	return spec, nil
}

// Get returns the tool with the given id.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[id]
	return t, ok
}

// List returns every registered tool sorted by id.
func (r *Registry) List() []Tool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Execute validates params against the tool's schema and runs its handler.
// Schema mismatches return a *ValidationError; a failing or panicking
// handler returns a *ExecutionError.
func (r *Registry) Execute(ctx context.Context, id string, params map[string]jsonval.Value) (result jsonval.Value, err error) {
	t, ok := r.Get(id)
	if !ok {
		return jsonval.Null(), fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if verr := validateParams(t, params); verr != nil {
		return jsonval.Null(), verr
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = &ExecutionError{ToolID: id, Err: fmt.Errorf("panic: %v", rec)}
			r.logger.Error("tools.execute.panic", "tool_id", id, "panic", fmt.Sprint(rec))
		}
	}()
	out, herr := t.Handler(ctx, params)
	if herr != nil {
		return jsonval.Null(), &ExecutionError{ToolID: id, Err: herr}
	}
	r.logger.Trace("tools.execute", "tool_id", id)
	return out, nil
}

func validateParams(t Tool, params map[string]jsonval.Value) error {
	for name := range params {
		if _, declared := t.Parameters[name]; !declared {
			return &ValidationError{ToolID: t.ID, Param: name, Reason: "is not declared by the tool"}
		}
	}
	for name, spec := range t.Parameters {
		val, present := params[name]
		if !present {
			if spec.Required {
				return &ValidationError{ToolID: t.ID, Param: name, Reason: "is required"}
			}
			continue
		}
		if reason := checkValue(spec, val); reason != "" {
			return &ValidationError{ToolID: t.ID, Param: name, Reason: reason}
		}
	}
	return nil
}

func checkValue(spec ParamSpec, val jsonval.Value) string {
	switch spec.Type {
	case "string":
		if val.Kind() != jsonval.KindString {
			return "must be a string"
		}
		s := val.Str()
		if spec.MinLength != nil && len(s) < *spec.MinLength {
			return fmt.Sprintf("must be at least %d characters", *spec.MinLength)
		}
		if spec.MaxLength != nil && len(s) > *spec.MaxLength {
			return fmt.Sprintf("must be at most %d characters", *spec.MaxLength)
		}
		if spec.rx != nil && !spec.rx.MatchString(s) {
			return fmt.Sprintf("must match pattern %s", spec.Pattern)
		}
		if len(spec.Enum) > 0 && !containsString(spec.Enum, s) {
			return fmt.Sprintf("must be one of %v", spec.Enum)
		}
	case "number", "integer":
		if val.Kind() != jsonval.KindNumber {
			return "must be a number"
		}
		n := val.Num()
		if spec.Type == "integer" && n != float64(int64(n)) {
			return "must be an integer"
		}
		if spec.Min != nil && n < *spec.Min {
			return fmt.Sprintf("must be at least %s", jsonval.FormatNumber(*spec.Min))
		}
		if spec.Max != nil && n > *spec.Max {
			return fmt.Sprintf("must be at most %s", jsonval.FormatNumber(*spec.Max))
		}
	case "boolean":
		if val.Kind() != jsonval.KindBool {
			return "must be a boolean"
		}
	case "array":
		if val.Kind() != jsonval.KindArray {
			return "must be an array"
		}
		elems := val.Elems()
		if spec.MinLength != nil && len(elems) < *spec.MinLength {
			return fmt.Sprintf("must have at least %d items", *spec.MinLength)
		}
		if spec.MaxLength != nil && len(elems) > *spec.MaxLength {
			return fmt.Sprintf("must have at most %d items", *spec.MaxLength)
		}
		for i, elem := range elems {
			if reason := checkValue(*spec.Items, elem); reason != "" {
				return fmt.Sprintf("item %d %s", i, reason)
			}
		}
	case "object":
		if val.Kind() != jsonval.KindObject {
			return "must be an object"
		}
	}
	return ""
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
