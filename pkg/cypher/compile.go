package cypher

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CompileExpression lowers the narrow subset of expression syntax that can
// appear inside a pattern's inline property map or a MATCH clause's WHERE
// into a parameterized SQL boolean/scalar fragment (spec.md §4.3.1, §4.3.2).
// Every literal and parameter value is bound positionally; nothing is ever
// interpolated as SQL text (spec.md §4.3.7, §8 property 3).
//
// This compiler only needs to reason about variables bound by the pattern
// currently being translated (sc), because MATCH is the one clause whose
// WHERE the translator folds directly into its own SELECT. Everything that
// follows a completed phase (RETURN, WITH, SET's right-hand side, REMOVE,
// UNWIND, standalone WHERE after WITH) instead runs against fully
// materialized row values via eval.go's Go-side evaluator, not this
// compiler — see DESIGN.md's "translator / evaluator split" entry.
func CompileExpression(expr Expression, sc scope, params map[string]any) (string, []any, error) {
	switch e := expr.(type) {
	case *Literal:
		return "?", []any{bindValue(e.Value)}, nil

	case *ParameterRef:
		v, ok := params[e.Name]
		if !ok {
			return "", nil, &SemanticError{Message: fmt.Sprintf("unbound parameter $%s", e.Name)}
		}
		return "?", []any{bindValue(v)}, nil

	case *VariableRef:
		sv, ok := sc[e.Name]
		if !ok {
			return "", nil, &SemanticError{Message: fmt.Sprintf("unknown variable %q", e.Name)}
		}
		return sv.Alias + ".id", nil, nil

	case *PropertyAccess:
		base, ok := e.Base.(*VariableRef)
		if !ok {
			return "", nil, &TranslateError{Message: "property access on a non-variable base is not supported in this context"}
		}
		sv, ok := sc[base.Name]
		if !ok {
			return "", nil, &SemanticError{Message: fmt.Sprintf("unknown variable %q", base.Name)}
		}
		col := "properties"
		return fmt.Sprintf("json_extract(%s.%s, '$.%s')", sv.Alias, col, e.Property), nil, nil

	case *FunctionCall:
		return compileFunctionCall(e, sc, params)

	case *BinaryOp:
		return compileBinaryOp(e, sc, params)

	case *UnaryOp:
		inner, args, err := CompileExpression(e.Operand, sc, params)
		if err != nil {
			return "", nil, err
		}
		switch e.Op {
		case "NOT":
			return "(NOT " + inner + ")", args, nil
		case "-":
			return "(-" + inner + ")", args, nil
		}
		return "", nil, &TranslateError{Message: "unsupported unary operator " + e.Op}

	case *NullCheck:
		inner, args, err := CompileExpression(e.Operand, sc, params)
		if err != nil {
			return "", nil, err
		}
		if e.Negated {
			return "(" + inner + " IS NOT NULL)", args, nil
		}
		return "(" + inner + " IS NULL)", args, nil

	case *InPredicate:
		return compileInPredicate(e, sc, params)

	case *StringPredicate:
		return compileStringPredicate(e, sc, params)

	default:
		return "", nil, &TranslateError{Message: fmt.Sprintf("construct %T is only supported in RETURN/WITH projections, not in a MATCH predicate", expr)}
	}
}

func compileBinaryOp(e *BinaryOp, sc scope, params map[string]any) (string, []any, error) {
	lsql, largs, err := CompileExpression(e.Left, sc, params)
	if err != nil {
		return "", nil, err
	}
	rsql, rargs, err := CompileExpression(e.Right, sc, params)
	if err != nil {
		return "", nil, err
	}
	args := append(largs, rargs...)
	op := e.Op
	if op == "<>" {
		op = "!="
	}
	return fmt.Sprintf("(%s %s %s)", lsql, op, rsql), args, nil
}

func compileInPredicate(e *InPredicate, sc scope, params map[string]any) (string, []any, error) {
	itemSQL, itemArgs, err := CompileExpression(e.Item, sc, params)
	if err != nil {
		return "", nil, err
	}
	if list, ok := e.List.(*ListLiteral); ok {
		var placeholders []string
		args := append([]any{}, itemArgs...)
		for _, item := range list.Items {
			isql, iargs, err := CompileExpression(item, sc, params)
			if err != nil {
				return "", nil, err
			}
			placeholders = append(placeholders, isql)
			args = append(args, iargs...)
		}
		sql := fmt.Sprintf("(%s IN (%s))", itemSQL, strings.Join(placeholders, ", "))
		if e.Negated {
			sql = "(NOT " + sql + ")"
		}
		return sql, args, nil
	}
	listSQL, listArgs, err := CompileExpression(e.List, sc, params)
	if err != nil {
		return "", nil, err
	}
	args := append(append([]any{}, itemArgs...), listArgs...)
	sql := fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) WHERE value = %s)", listSQL, itemSQL)
	if e.Negated {
		sql = "(NOT " + sql + ")"
	}
	return sql, args, nil
}

// compileStringPredicate renders CONTAINS / STARTS WITH / ENDS WITH as LIKE
// with a hand-escaped pattern, per spec.md §4.3.2 ("String predicates
// compile to LIKE with escaped patterns").
func compileStringPredicate(e *StringPredicate, sc scope, params map[string]any) (string, []any, error) {
	lsql, largs, err := CompileExpression(e.Haystack, sc, params)
	if err != nil {
		return "", nil, err
	}
	rsql, rargs, err := CompileExpression(e.Needle, sc, params)
	if err != nil {
		return "", nil, err
	}
	args := append(largs, rargs...)
	escaped := fmt.Sprintf("replace(replace(replace(%s, '\\', '\\\\'), '%%', '\\%%'), '_', '\\_')", rsql)
	switch e.Op {
	case "CONTAINS":
		return fmt.Sprintf("(%s LIKE '%%' || %s || '%%' ESCAPE '\\')", lsql, escaped), args, nil
	case "STARTS WITH":
		return fmt.Sprintf("(%s LIKE %s || '%%' ESCAPE '\\')", lsql, escaped), args, nil
	case "ENDS WITH":
		return fmt.Sprintf("(%s LIKE '%%' || %s ESCAPE '\\')", lsql, escaped), args, nil
	}
	return "", nil, &TranslateError{Message: "unsupported string predicate " + e.Op}
}

// bindValue converts a Go value that may be bound as a SQL parameter into
// the form the driver and the storage schema's JSON columns expect: slices
// and maps are encoded as JSON text so they can be compared against/stored
// into `properties`/`label` columns via SQLite's JSON functions.
func bindValue(v any) any {
	switch v.(type) {
	case []any, map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return string(b)
	default:
		return v
	}
}
