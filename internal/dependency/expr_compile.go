package dependency

import (
	"errors"
	"strings"

	"crosbuild.dev/alchemist/internal/dependency/internal/grammar"
)

// Parse parses a package-atom dependency expression (DEPEND, RDEPEND,
// PDEPEND, BDEPEND, IDEPEND). REQUIRED_USE, whose leaves are USE flag
// names rather than atoms, is handled by EvalRequiredUse instead.
func Parse(s string) (*Deps[*Package], error) {
	g, err := grammar.Parse(s)
	if err != nil {
		return nil, err
	}
	expr, err := compileAllOf(g)
	if err != nil {
		return nil, err
	}
	return NewDeps(expr), nil
}

func compileAllOf(g *grammar.AllOf) (*AllOf[*Package], error) {
	var children []Expr[*Package]
	for _, c := range g.Children {
		child, err := compileExpr(c)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return NewAllOf(children), nil
}

func compileAnyOf(g *grammar.AnyOf) (*AnyOf[*Package], error) {
	var children []Expr[*Package]
	for _, c := range g.Children {
		child, err := compileExpr(c)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return NewAnyOf(children), nil
}

func compileExactlyOneOf(g *grammar.ExactlyOneOf) (*ExactlyOneOf[*Package], error) {
	var children []Expr[*Package]
	for _, c := range g.Children {
		child, err := compileExpr(c)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return NewExactlyOneOf(children), nil
}

func compileAtMostOneOf(g *grammar.AtMostOneOf) (*AtMostOneOf[*Package], error) {
	var children []Expr[*Package]
	for _, c := range g.Children {
		child, err := compileExpr(c)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return NewAtMostOneOf(children), nil
}

func compileUseConditional(g *grammar.UseConditional) (*UseConditional[*Package], error) {
	expect := !strings.HasPrefix(g.Condition, "!")
	name := strings.TrimSuffix(strings.TrimPrefix(g.Condition, "!"), "?")
	child, err := compileAllOf(g.Child)
	if err != nil {
		return nil, err
	}
	return NewUseConditional(name, expect, child), nil
}

func compilePackage(g *grammar.Package) (*LeafExpr[*Package], error) {
	const mark = "!"
	rest := g.Raw
	blocks := 0
	for strings.HasPrefix(rest, mark) {
		rest = strings.TrimPrefix(rest, mark)
		blocks++
	}
	a, err := ParseAtom(rest)
	if err != nil {
		return nil, err
	}
	return NewLeafExpr(NewPackage(a, blocks)), nil
}

func compileExpr(g *grammar.Expr) (Expr[*Package], error) {
	switch {
	case g.AllOf != nil:
		return compileAllOf(g.AllOf)
	case g.AnyOf != nil:
		return compileAnyOf(g.AnyOf)
	case g.ExactlyOneOf != nil:
		return compileExactlyOneOf(g.ExactlyOneOf)
	case g.AtMostOneOf != nil:
		return compileAtMostOneOf(g.AtMostOneOf)
	case g.UseConditional != nil:
		return compileUseConditional(g.UseConditional)
	case g.Package != nil:
		return compilePackage(g.Package)
	default:
		return nil, errors.New("dependency: unknown expression node")
	}
}

// ParseURI parses a SRC_URI-style expression.
func ParseURI(s string) (*Deps[*Uri], error) {
	g, err := grammar.ParseURI(s)
	if err != nil {
		return nil, err
	}
	expr, err := compileURIAllOf(g)
	if err != nil {
		return nil, err
	}
	return NewDeps(expr), nil
}

func compileURIAllOf(g *grammar.URIAllOf) (*AllOf[*Uri], error) {
	var children []Expr[*Uri]
	for _, c := range g.Children {
		child, err := compileURIExpr(c)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return NewAllOf(children), nil
}

func compileURIUseConditional(g *grammar.URIUseConditional) (*UseConditional[*Uri], error) {
	expect := !strings.HasPrefix(g.Condition, "!")
	name := strings.TrimSuffix(strings.TrimPrefix(g.Condition, "!"), "?")
	child, err := compileURIAllOf(g.Child)
	if err != nil {
		return nil, err
	}
	return NewUseConditional(name, expect, child), nil
}

func compileURIExpr(g *grammar.URIExpr) (Expr[*Uri], error) {
	switch {
	case g.AllOf != nil:
		return compileURIAllOf(g.AllOf)
	case g.UseConditional != nil:
		return compileURIUseConditional(g.UseConditional)
	case g.Uri != nil:
		return NewLeafExpr(NewUri(g.Uri.Uri, g.Uri.FileName)), nil
	default:
		return nil, errors.New("dependency: unknown URI expression node")
	}
}
