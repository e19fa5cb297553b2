// File: internal/expr/expr.go

// Package expr compiles user-constructed condition clauses into the
// expression structure stored on a hyperedge. Compilation is pure string
// assembly; evaluation is owned by the backend engine.
package expr

import (
	"fmt"

	"github.com/vantagesec/hypergraph-cli/api/schemas"
)

// Kind discriminates the clause variants.
type Kind string

const (
	KindFreeExpr      Kind = "free_expr"      // Raw expression text, passed through untouched.
	KindTimeBefore    Kind = "time_before"    // Evaluation time is before the given value.
	KindTimeAfter     Kind = "time_after"     // Evaluation time is after the given value.
	KindVertexCompare Kind = "vertex_compare" // Compare a vertex field against a literal.
)

// Comparison operators accepted by a VertexCompare clause.
const (
	OpMatches  = "matches"
	OpNoMatch  = "no-match"
	OpEqual    = "equal"
	OpNotEqual = "not-equal"
	OpGreater  = "greater"
	OpLesser   = "lesser"
)

// Boolean operators joining adjacent clauses.
const (
	OpAnd = "&&"
	OpOr  = "||"
)

// opSymbols maps the form-level operator names to the engine's syntax.
var opSymbols = map[string]string{
	OpMatches:  "=~",
	OpNoMatch:  "!~",
	OpEqual:    "==",
	OpNotEqual: "!=",
	OpGreater:  ">",
	OpLesser:   "<",
}

// VertexFields lists the vertex fields offered for comparison clauses.
var VertexFields = []string{"id", "name", "kind", "fitness", "actions.status_code"}

// Clause is one boolean sub-expression under construction. Which fields
// are read depends on Kind: FreeExpr uses Expr, the time kinds use Value,
// and VertexCompare uses Vertex/Field/Operator/Value.
type Clause struct {
	Kind     Kind
	Expr     string
	Vertex   string
	Field    string
	Operator string
	Value    string
}

// Compile turns an ordered clause list plus interleaved boolean operators
// into the hyperedge expression structure. Ops[i] joins clause i and i+1,
// so len(ops) must be len(clauses)-1 (or zero for a single clause).
// Unknown clause kinds and unknown operators are validation errors.
func Compile(clauses []Clause, ops []string) (schemas.Expressions, error) {
	if len(clauses) == 0 {
		return schemas.Expressions{}, fmt.Errorf("expression needs at least one clause")
	}
	if len(clauses) == 1 {
		if len(ops) != 0 {
			return schemas.Expressions{}, fmt.Errorf("single clause takes no operators, got %d", len(ops))
		}
	} else if len(ops) != len(clauses)-1 {
		return schemas.Expressions{}, fmt.Errorf("%d clauses need %d operators, got %d",
			len(clauses), len(clauses)-1, len(ops))
	}
	for i, op := range ops {
		if op != OpAnd && op != OpOr {
			return schemas.Expressions{}, fmt.Errorf("operator %d: unknown boolean operator %q", i, op)
		}
	}

	exprs := make([]string, 0, len(clauses))
	for i, c := range clauses {
		compiled, err := compileClause(c)
		if err != nil {
			return schemas.Expressions{}, fmt.Errorf("clause %d: %w", i, err)
		}
		exprs = append(exprs, compiled)
	}

	out := schemas.Expressions{
		Exprs: exprs,
		Ops:   append([]string{}, ops...),
		// The expected outcome is a fixed placeholder; the engine
		// computes the actual verdict.
		Result:     "true",
		ResultType: "bool",
	}
	return out, nil
}

func compileClause(c Clause) (string, error) {
	switch c.Kind {
	case KindFreeExpr:
		if c.Expr == "" {
			return "", fmt.Errorf("free expression is empty")
		}
		return c.Expr, nil
	case KindTimeBefore:
		if c.Value == "" {
			return "", fmt.Errorf("time clause needs a value")
		}
		return "[$time.now] < " + c.Value, nil
	case KindTimeAfter:
		if c.Value == "" {
			return "", fmt.Errorf("time clause needs a value")
		}
		return "[$time.now] > " + c.Value, nil
	case KindVertexCompare:
		if c.Vertex == "" || c.Field == "" {
			return "", fmt.Errorf("vertex comparison needs a vertex and a field")
		}
		sym, ok := opSymbols[c.Operator]
		if !ok {
			return "", fmt.Errorf("unknown comparison operator %q", c.Operator)
		}
		// An empty value deliberately renders as ''.
		return fmt.Sprintf("[$%s.%s] %s '%s'", c.Vertex, c.Field, sym, c.Value), nil
	default:
		return "", fmt.Errorf("unknown clause kind %q", c.Kind)
	}
}
