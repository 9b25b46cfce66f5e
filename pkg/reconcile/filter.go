package reconcile

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
)

// Reviewers narrow comparison listings with small filter expressions such as
//
//	status = dispute and similarity < 0.8
//
// The grammar is a conjunction of field/operator/value conditions. String
// fields support = and !=; numeric fields support the full comparison set.

type filterExpr struct {
	Conditions []*filterCond `parser:"@@ ( ( 'and' | 'AND' ) @@ )*"`
}

type filterCond struct {
	Field string      `parser:"@Ident"`
	Op    string      `parser:"@( '<' '=' | '>' '=' | '!' '=' | '<' | '>' | '=' )"`
	Value filterValue `parser:"@@"`
}

type filterValue struct {
	Number *float64 `parser:"@Float | @Int"`
	Text   *string  `parser:"| @String | @Ident"`
}

var filterParser = participle.MustBuild[filterExpr](participle.Unquote("String"))

// Predicate is a compiled filter applied to comparison records.
type Predicate func(*ComparisonRecord) bool

// CompileFilter parses a filter expression into a predicate. An empty
// expression compiles to a predicate that accepts everything.
func CompileFilter(expression string) (Predicate, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return func(*ComparisonRecord) bool { return true }, nil
	}

	expr, err := filterParser.ParseString("", expression)
	if err != nil {
		return nil, fmt.Errorf("parse filter %q: %w", expression, err)
	}

	evaluators := make([]Predicate, 0, len(expr.Conditions))
	for _, cond := range expr.Conditions {
		eval, err := compileCondition(cond)
		if err != nil {
			return nil, err
		}
		evaluators = append(evaluators, eval)
	}

	return func(r *ComparisonRecord) bool {
		for _, eval := range evaluators {
			if !eval(r) {
				return false
			}
		}
		return true
	}, nil
}

func compileCondition(cond *filterCond) (Predicate, error) {
	field := strings.ToLower(cond.Field)
	switch field {
	case "status", "orgao", "sigla", "dtmnfr":
		if cond.Value.Text == nil {
			return nil, fmt.Errorf("filter field %q requires a string value", field)
		}
		if cond.Op != "=" && cond.Op != "!=" {
			return nil, fmt.Errorf("filter field %q supports only = and !=", field)
		}
		want := strings.ToLower(*cond.Value.Text)
		equal := cond.Op == "="
		return func(r *ComparisonRecord) bool {
			return (strings.ToLower(stringField(r, field)) == want) == equal
		}, nil
	case "similarity", "confidence", "distance", "ordinal":
		if cond.Value.Number == nil {
			return nil, fmt.Errorf("filter field %q requires a numeric value", field)
		}
		want := *cond.Value.Number
		op := cond.Op
		return func(r *ComparisonRecord) bool {
			return compareNumber(numberField(r, field), op, want)
		}, nil
	default:
		return nil, fmt.Errorf("unknown filter field %q", cond.Field)
	}
}

func stringField(r *ComparisonRecord, field string) string {
	switch field {
	case "status":
		return string(r.Status)
	case "orgao":
		return r.Orgao
	case "sigla":
		return r.Sigla
	case "dtmnfr":
		return r.DTMNFR
	}
	return ""
}

func numberField(r *ComparisonRecord, field string) float64 {
	switch field {
	case "similarity":
		return r.Similarity
	case "confidence":
		return r.Confidence
	case "distance":
		return float64(r.Distance)
	case "ordinal":
		return float64(r.Ordinal)
	}
	return 0
}

func compareNumber(have float64, op string, want float64) bool {
	switch op {
	case "=":
		return have == want
	case "!=":
		return have != want
	case "<":
		return have < want
	case "<=":
		return have <= want
	case ">":
		return have > want
	case ">=":
		return have >= want
	}
	return false
}
