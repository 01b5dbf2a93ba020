package cypher

import "fmt"

// aggregateFunctions is the set of function names whose presence in a
// RETURN/WITH projection triggers implicit GROUP BY detection (spec.md
// §4.3.3).
var aggregateFunctions = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"collect": true, "percentiledisc": true, "percentilecont": true,
}

// compileFunctionCall renders the narrow set of functions that can appear
// inside a MATCH pattern's property map or its WHERE clause, i.e. ones that
// only need a single bound row's SQL alias (spec.md §4.3.1/§4.3.2). The
// full function surface (spec.md §6.3) is evaluated in Go against
// materialized row values by eval.go's evalFunctionCall — that is where
// aggregate functions, path functions, and the string/list/date helpers
// that don't map cleanly onto a single-alias SQL fragment live.
func compileFunctionCall(fc *FunctionCall, sc scope, params map[string]any) (string, []any, error) {
	if aggregateFunctions[lower(fc.Name)] {
		return "", nil, &TranslateError{Message: "aggregate function " + fc.Name + " is only valid in a RETURN/WITH projection"}
	}

	switch lower(fc.Name) {
	case "id":
		v, ok := fc.Args[0].(*VariableRef)
		if !ok {
			return "", nil, &TranslateError{Message: "id() requires a bound variable"}
		}
		sv, ok := sc[v.Name]
		if !ok {
			return "", nil, &SemanticError{Message: fmt.Sprintf("unknown variable %q", v.Name)}
		}
		return sv.Alias + ".id", nil, nil

	case "labels":
		sv, err := soleNodeArg(fc, sc)
		if err != nil {
			return "", nil, err
		}
		return sv.Alias + ".label", nil, nil

	case "type":
		sv, err := soleNodeArg(fc, sc)
		if err != nil {
			return "", nil, err
		}
		return sv.Alias + ".type", nil, nil

	case "properties":
		sv, err := soleNodeArg(fc, sc)
		if err != nil {
			return "", nil, err
		}
		return sv.Alias + ".properties", nil, nil

	case "coalesce":
		var parts []string
		var args []any
		for _, a := range fc.Args {
			s, as, err := CompileExpression(a, sc, params)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, s)
			args = append(args, as...)
		}
		return "coalesce(" + joinComma(parts) + ")", args, nil

	case "abs":
		return compileUnaryMathFunc("abs", fc, sc, params)
	case "ceil":
		return compileUnaryMathFunc("ceil", fc, sc, params)
	case "floor":
		return compileUnaryMathFunc("floor", fc, sc, params)
	case "sqrt":
		return compileUnaryMathFunc("sqrt", fc, sc, params)
	case "round":
		return compileUnaryMathFunc("round", fc, sc, params)
	case "tostring":
		return compileCast(fc, sc, params, "TEXT")
	case "tointeger":
		return compileCast(fc, sc, params, "INTEGER")
	case "tofloat":
		return compileCast(fc, sc, params, "REAL")

	default:
		return "", nil, &TranslateError{Message: fmt.Sprintf("function %s() is only supported in a RETURN/WITH projection", fc.Name)}
	}
}

func soleNodeArg(fc *FunctionCall, sc scope) (sqlVar, error) {
	if len(fc.Args) != 1 {
		return sqlVar{}, &TranslateError{Message: fc.Name + "() takes exactly one argument"}
	}
	v, ok := fc.Args[0].(*VariableRef)
	if !ok {
		return sqlVar{}, &TranslateError{Message: fc.Name + "() requires a bound variable"}
	}
	sv, ok := sc[v.Name]
	if !ok {
		return sqlVar{}, &SemanticError{Message: fmt.Sprintf("unknown variable %q", v.Name)}
	}
	return sv, nil
}

func compileUnaryMathFunc(sqlName string, fc *FunctionCall, sc scope, params map[string]any) (string, []any, error) {
	if len(fc.Args) != 1 {
		return "", nil, &TranslateError{Message: fc.Name + "() takes exactly one argument"}
	}
	s, args, err := CompileExpression(fc.Args[0], sc, params)
	if err != nil {
		return "", nil, err
	}
	return sqlName + "(" + s + ")", args, nil
}

func compileCast(fc *FunctionCall, sc scope, params map[string]any, sqlType string) (string, []any, error) {
	if len(fc.Args) != 1 {
		return "", nil, &TranslateError{Message: fc.Name + "() takes exactly one argument"}
	}
	s, args, err := CompileExpression(fc.Args[0], sc, params)
	if err != nil {
		return "", nil, err
	}
	return "CAST(" + s + " AS " + sqlType + ")", args, nil
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}
