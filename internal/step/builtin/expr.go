package builtin

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/Little-Star888/agenttask/internal/step"
)

type exprConfig struct {
	Expression string `json:"expression" validate:"required"`
}

// Expr evaluates an expr-lang expression against the run's variables.
// Undefined variables evaluate to nil; defined("name") tells absence apart
// from a nil value.
type Expr struct{}

func (e *Expr) Info() step.Info {
	return step.Info{
		Description: "Evaluate an expression over the variables published so far",
		ConfigKeys:  []string{"expression"},
	}
}

func (e *Expr) ValidateConfig(config map[string]any) error {
	var cfg exprConfig
	if err := step.DecodeConfig(config, &cfg); err != nil {
		return err
	}
	if _, err := expr.Compile(cfg.Expression, expr.AllowUndefinedVariables(), definedFunc(nil)); err != nil {
		return fmt.Errorf("compile expression: %w", err)
	}
	return nil
}

func (e *Expr) Execute(_ context.Context, config map[string]any, vars step.Variables) (any, error) {
	var cfg exprConfig
	if err := step.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	env := vars.Snapshot()
	program, err := expr.Compile(cfg.Expression,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
		definedFunc(env),
	)
	if err != nil {
		return nil, fmt.Errorf("compile expression: %w", err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression: %w", err)
	}
	return out, nil
}

func definedFunc(env map[string]any) expr.Option {
	return expr.Function(
		"defined",
		func(params ...any) (any, error) {
			name, ok := params[0].(string)
			if !ok {
				return false, fmt.Errorf("defined() expects a string, got %T", params[0])
			}
			_, exists := env[name]
			return exists, nil
		},
		new(func(string) bool),
	)
}
