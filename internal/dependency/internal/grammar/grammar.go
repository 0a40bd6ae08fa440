// Package grammar implements the participle grammars for the two flavors
// of Portage dependency expression syntax: package-atom expressions (used
// by DEPEND/RDEPEND/...) and URI expressions (used by SRC_URI, which adds
// "-> renamed-filename" but drops the ||/^^/?? group operators that never
// appear in practice for source lists).
package grammar

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var atomLex = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "whitespace", Pattern: `\s+`},
	{Name: "Parentheses", Pattern: `[()]`},
	{Name: "Operators", Pattern: `\|\||\^\^|\?\?`},
	{Name: "Condition", Pattern: `!?[A-Za-z0-9][A-Za-z0-9+_@-]*\?`},
	{Name: "Token", Pattern: `\S+`},
})

var atomParser = participle.MustBuild[AllOf](participle.Lexer(atomLex))

// Parse parses a package-atom dependency expression, as used by
// DEPEND/RDEPEND/PDEPEND/BDEPEND/IDEPEND/REQUIRED_USE.
func Parse(s string) (*AllOf, error) {
	return atomParser.ParseString("", s)
}

type Expr struct {
	AllOf          *AllOf          `parser:"'(' @@ ')'"`
	AnyOf          *AnyOf          `parser:"| '||' '(' @@ ')'"`
	ExactlyOneOf   *ExactlyOneOf   `parser:"| '^^' '(' @@ ')'"`
	AtMostOneOf    *AtMostOneOf    `parser:"| '??' '(' @@ ')'"`
	UseConditional *UseConditional `parser:"| @@"`
	Package        *Package        `parser:"| @@"`
}

type AllOf struct {
	Children []*Expr `parser:"@@*"`
}

type AnyOf struct {
	Children []*Expr `parser:"@@*"`
}

type ExactlyOneOf struct {
	Children []*Expr `parser:"@@*"`
}

type AtMostOneOf struct {
	Children []*Expr `parser:"@@*"`
}

type UseConditional struct {
	Condition string `parser:"@Condition"`
	Child     *AllOf `parser:"'(' @@ ')'"`
}

type Package struct {
	Raw string `parser:"@Token"`
}

var uriLex = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "whitespace", Pattern: `\s+`},
	{Name: "Parentheses", Pattern: `[()]`},
	{Name: "Arrow", Pattern: `->`},
	{Name: "Condition", Pattern: `!?[A-Za-z0-9][A-Za-z0-9+_@-]*\?`},
	{Name: "Token", Pattern: `\S+`},
})

var uriParser = participle.MustBuild[URIAllOf](participle.Lexer(uriLex))

// ParseURI parses a SRC_URI-style expression: use-conditional groups of
// "uri" or "uri -> filename" tokens.
func ParseURI(s string) (*URIAllOf, error) {
	return uriParser.ParseString("", s)
}

type URIExpr struct {
	AllOf          *URIAllOf          `parser:"'(' @@ ')'"`
	UseConditional *URIUseConditional `parser:"| @@"`
	Uri            *Uri               `parser:"| @@"`
}

type URIAllOf struct {
	Children []*URIExpr `parser:"@@*"`
}

type URIUseConditional struct {
	Condition string     `parser:"@Condition"`
	Child     *URIAllOf  `parser:"'(' @@ ')'"`
}

type Uri struct {
	Uri      string  `parser:"@Token"`
	FileName *string `parser:"('->' @Token)?"`
}
