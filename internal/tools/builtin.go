package tools

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/agnt-gg/slop-sub000/internal/jsonval"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// RegisterBuiltins installs the gateway's built-in tool set. The rng feeds
// random_number; pass a seeded source in tests for determinism. A nil rng
// uses the shared global source.
func RegisterBuiltins(r *Registry, rng *rand.Rand) error {
	intn := rand.Intn
	if rng != nil {
		intn = rng.Intn
	}
	builtins := []Tool{
		{
			ID:          "calculator",
			Description: "Evaluates a basic arithmetic expression.",
			Safe:        true,
			Parameters: Schema{
				"expression": {
					Type:        "string",
					Description: "Arithmetic expression, e.g. 15*7 or (2+3)/4.",
					Required:    true,
					MinLength:   intPtr(1),
					MaxLength:   intPtr(256),
				},
			},
			Handler: func(_ context.Context, params map[string]jsonval.Value) (jsonval.Value, error) {
				result, err := evalExpression(params["expression"].Str())
				if err != nil {
					return jsonval.Null(), fmt.Errorf("evaluate expression: %w", err)
				}
				return jsonval.Object(map[string]jsonval.Value{
					"result": jsonval.Number(result),
				}), nil
			},
		},
		{
			ID:          "greet",
			Description: "Returns a greeting for the given name.",
			Safe:        true,
			Parameters: Schema{
				"name": {
					Type:      "string",
					Required:  true,
					MinLength: intPtr(1),
					MaxLength: intPtr(128),
				},
			},
			Handler: func(_ context.Context, params map[string]jsonval.Value) (jsonval.Value, error) {
				return jsonval.Object(map[string]jsonval.Value{
					"result": jsonval.String(fmt.Sprintf("Hello, %s!", params["name"].Str())),
				}), nil
			},
		},
		{
			ID:          "random_number",
			Description: "Returns a random integer in [min, max].",
			Safe:        true,
			Parameters: Schema{
				"min": {Type: "integer", Min: floatPtr(0)},
				"max": {Type: "integer", Min: floatPtr(0), Max: floatPtr(1_000_000)},
			},
			Handler: func(_ context.Context, params map[string]jsonval.Value) (jsonval.Value, error) {
				lo, hi := 0, 100
				if v, ok := params["min"]; ok {
					lo = int(v.Num())
				}
				if v, ok := params["max"]; ok {
					hi = int(v.Num())
				}
				if lo > hi {
					return jsonval.Null(), fmt.Errorf("min %d exceeds max %d", lo, hi)
				}
				return jsonval.Object(map[string]jsonval.Value{
					"result": jsonval.Number(float64(lo + intn(hi-lo+1))),
				}), nil
			},
		},
		{
			ID:          "echo",
			Description: "Returns the supplied text unchanged.",
			Safe:        false,
			Parameters: Schema{
				"text": {
					Type:      "string",
					Required:  true,
					MaxLength: intPtr(4096),
				},
			},
			Handler: func(_ context.Context, params map[string]jsonval.Value) (jsonval.Value, error) {
				return jsonval.Object(map[string]jsonval.Value{
					"result": params["text"],
				}), nil
			},
		},
	}
	for _, t := range builtins {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
