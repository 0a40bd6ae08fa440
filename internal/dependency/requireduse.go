package dependency

import (
	"fmt"
	"strings"

	"crosbuild.dev/alchemist/internal/dependency/internal/grammar"
)

// EvalRequiredUse parses and evaluates a REQUIRED_USE string against a
// resolved USE map. Unlike DEPEND/RDEPEND expressions, REQUIRED_USE leaves
// are bare (optionally "!"-negated) flag names rather than package atoms,
// so it gets its own small evaluator instead of going through Atom/Package.
func EvalRequiredUse(raw string, use map[string]bool) (bool, error) {
	tree, err := grammar.Parse(raw)
	if err != nil {
		return false, fmt.Errorf("invalid REQUIRED_USE %q: %w", raw, err)
	}
	return evalRequiredUseAllOf(tree, use)
}

func evalRequiredUseAllOf(g *grammar.AllOf, use map[string]bool) (bool, error) {
	for _, child := range g.Children {
		ok, err := evalRequiredUseExpr(child, use)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalRequiredUseExpr(g *grammar.Expr, use map[string]bool) (bool, error) {
	switch {
	case g.AllOf != nil:
		return evalRequiredUseAllOf(g.AllOf, use)
	case g.AnyOf != nil:
		for _, child := range g.AnyOf.Children {
			ok, err := evalRequiredUseExpr(child, use)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return len(g.AnyOf.Children) == 0, nil
	case g.ExactlyOneOf != nil:
		count := 0
		for _, child := range g.ExactlyOneOf.Children {
			ok, err := evalRequiredUseExpr(child, use)
			if err != nil {
				return false, err
			}
			if ok {
				count++
			}
		}
		return count == 1, nil
	case g.AtMostOneOf != nil:
		count := 0
		for _, child := range g.AtMostOneOf.Children {
			ok, err := evalRequiredUseExpr(child, use)
			if err != nil {
				return false, err
			}
			if ok {
				count++
			}
		}
		return count <= 1, nil
	case g.UseConditional != nil:
		cond := g.UseConditional.Condition
		negate := strings.HasPrefix(cond, "!")
		name := strings.TrimSuffix(strings.TrimPrefix(cond, "!"), "?")
		enabled := use[name]
		if negate {
			enabled = !enabled
		}
		if !enabled {
			return true, nil
		}
		return evalRequiredUseAllOf(g.UseConditional.Child, use)
	case g.Package != nil:
		name := g.Package.Raw
		negate := strings.HasPrefix(name, "!")
		name = strings.TrimPrefix(name, "!")
		enabled := use[name]
		if negate {
			enabled = !enabled
		}
		return enabled, nil
	default:
		return false, fmt.Errorf("unreachable REQUIRED_USE node")
	}
}
