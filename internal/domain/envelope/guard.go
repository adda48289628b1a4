package envelope

import (
	"errors"
	"strings"

	"github.com/Knetic/govaluate"
)

// EvaluateGuard evaluates a guard expression against machine parameters.
// Empty guard returns true. Supports "true"/"false" literals.
func EvaluateGuard(guard string, params map[string]interface{}) (bool, error) {
	g := strings.TrimSpace(guard)
	if g == "" {
		return true, nil
	}
	switch strings.ToLower(g) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	expr, err := govaluate.NewEvaluableExpression(g)
	if err != nil {
		return false, err
	}
	result, err := expr.Evaluate(params)
	if err != nil {
		return false, err
	}
	switch v := result.(type) {
	case bool:
		return v, nil
	default:
		return false, errors.New("guard did not evaluate to boolean")
	}
}
