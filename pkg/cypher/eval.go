package cypher

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/orneryd/leangraph/pkg/convert"
	"github.com/orneryd/leangraph/pkg/storage"
)

// NodeValue, EdgeValue and PathValue are the materialized forms a bound
// node/edge/path variable takes once the Go-side evaluator resolves it —
// the shapes the result shaper later renders (spec.md §4.5).
type NodeValue struct {
	ID         string
	Labels     []string
	Properties map[string]any
}

type EdgeValue struct {
	ID         string
	Type       string
	SourceID   string
	TargetID   string
	Properties map[string]any
}

type PathValue struct {
	Nodes []NodeValue
	Edges []EdgeValue
}

// evalCtx threads everything evalExpression needs to resolve a value that
// the narrow SQL compiler (compile.go) cannot reach: materialized
// node/edge properties (through the per-query cache), query parameters,
// and a storage handle for EXISTS subqueries.
type evalCtx struct {
	ctx          context.Context
	tx           *storage.Tx
	cache        *propCache
	params       map[string]any
	maxPathDepth int
}

// evalExpression evaluates expr against one row of a row-set, materializing
// node/edge/path variables through the property cache as needed. This is
// the counterpart to compile.go's CompileExpression for every construct
// that follows a completed MATCH phase — RETURN/WITH projections, SET/
// REMOVE right-hand sides, UNWIND sources, post-WITH WHERE, list
// comprehensions/predicates, CASE, and the full scalar function surface
// (spec.md §6.3) — per the translator/evaluator split recorded in
// DESIGN.md.
func evalExpression(expr Expression, row Row, ec *evalCtx) (any, error) {
	switch e := expr.(type) {
	case *Literal:
		return e.Value, nil

	case *ParameterRef:
		v, ok := ec.params[e.Name]
		if !ok {
			return nil, &SemanticError{Message: fmt.Sprintf("unbound parameter $%s", e.Name)}
		}
		return v, nil

	case *VariableRef:
		return resolveVariable(e.Name, row, ec)

	case *ListLiteral:
		out := make([]any, 0, len(e.Items))
		for _, item := range e.Items {
			v, err := evalExpression(item, row, ec)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case *MapLiteral:
		out := make(map[string]any, len(e.Keys))
		for i, k := range e.Keys {
			v, err := evalExpression(e.Values[i], row, ec)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	case *PropertyAccess:
		base, err := evalExpression(e.Base, row, ec)
		if err != nil {
			return nil, err
		}
		return propertyOf(base, e.Property)

	case *IndexAccess:
		base, err := evalExpression(e.Base, row, ec)
		if err != nil {
			return nil, err
		}
		idx, err := evalExpression(e.Index, row, ec)
		if err != nil {
			return nil, err
		}
		return indexInto(base, idx)

	case *FunctionCall:
		return evalFunctionCall(e, row, ec)

	case *BinaryOp:
		return evalBinaryOp(e, row, ec)

	case *UnaryOp:
		v, err := evalExpression(e.Operand, row, ec)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case "NOT":
			b, _ := asBool(v)
			return !b, nil
		case "-":
			f, ok := convert.ToFloat64(v)
			if !ok {
				return nil, &SemanticError{Message: "unary - requires a numeric operand"}
			}
			if isIntLike(v) {
				return -int64(f), nil
			}
			return -f, nil
		}
		return nil, &InternalError{Message: "unknown unary operator " + e.Op}

	case *NullCheck:
		v, err := evalExpression(e.Operand, row, ec)
		if err != nil {
			return nil, err
		}
		isNull := v == nil
		if e.Negated {
			return !isNull, nil
		}
		return isNull, nil

	case *InPredicate:
		item, err := evalExpression(e.Item, row, ec)
		if err != nil {
			return nil, err
		}
		list, err := evalExpression(e.List, row, ec)
		if err != nil {
			return nil, err
		}
		found := false
		if l, ok := list.([]any); ok {
			for _, v := range l {
				if valuesEqual(item, v) {
					found = true
					break
				}
			}
		}
		if e.Negated {
			return !found, nil
		}
		return found, nil

	case *StringPredicate:
		return evalStringPredicate(e, row, ec)

	case *CaseExpr:
		return evalCase(e, row, ec)

	case *ListComprehension:
		return evalListComprehension(e, row, ec)

	case *ListPredicate:
		return evalListPredicate(e, row, ec)

	case *ExistsSubquery:
		return evalExistsSubquery(e, row, ec)

	default:
		return nil, &InternalError{Message: fmt.Sprintf("no evaluator for %T", expr)}
	}
}

func resolveVariable(name string, row Row, ec *evalCtx) (any, error) {
	rv, ok := row[name]
	if !ok {
		return nil, &SemanticError{Message: fmt.Sprintf("unknown variable %q", name)}
	}
	switch rv.Kind {
	case VarNode:
		if rv.ID == "" {
			return nil, nil // OPTIONAL MATCH null-fill
		}
		n, err := ec.cache.node(rv.ID)
		if err != nil {
			return nil, err
		}
		return NodeValue{ID: n.ID, Labels: n.Labels, Properties: n.Properties}, nil
	case VarEdge:
		if rv.ID == "" {
			return nil, nil
		}
		e, err := ec.cache.edge(rv.ID)
		if err != nil {
			return nil, err
		}
		return EdgeValue{ID: e.ID, Type: e.Type, SourceID: e.SourceID, TargetID: e.TargetID, Properties: e.Properties}, nil
	case VarPath:
		return materializePath(rv, ec)
	default:
		return rv.Value, nil
	}
}

func materializePath(rv RowVal, ec *evalCtx) (PathValue, error) {
	var pv PathValue
	for _, id := range rv.PathNodes {
		n, err := ec.cache.node(id)
		if err != nil {
			return pv, err
		}
		pv.Nodes = append(pv.Nodes, NodeValue{ID: n.ID, Labels: n.Labels, Properties: n.Properties})
	}
	for _, id := range rv.PathEdges {
		e, err := ec.cache.edge(id)
		if err != nil {
			return pv, err
		}
		pv.Edges = append(pv.Edges, EdgeValue{ID: e.ID, Type: e.Type, SourceID: e.SourceID, TargetID: e.TargetID, Properties: e.Properties})
	}
	return pv, nil
}

func propertyOf(base any, prop string) (any, error) {
	switch b := base.(type) {
	case NodeValue:
		return b.Properties[prop], nil
	case EdgeValue:
		return b.Properties[prop], nil
	case map[string]any:
		return b[prop], nil
	case nil:
		return nil, nil
	default:
		return nil, &SemanticError{Message: fmt.Sprintf("cannot access property %q on %T", prop, base)}
	}
}

func indexInto(base, idx any) (any, error) {
	if base == nil {
		return nil, nil
	}
	list, ok := base.([]any)
	if !ok {
		return nil, &SemanticError{Message: "[] index requires a list"}
	}
	i64, ok := convert.ToInt64(idx)
	if !ok {
		return nil, &SemanticError{Message: "[] index requires an integer"}
	}
	i := int(i64)
	if i < 0 {
		i += len(list)
	}
	if i < 0 || i >= len(list) {
		return nil, nil
	}
	return list[i], nil
}

func evalBinaryOp(e *BinaryOp, row Row, ec *evalCtx) (any, error) {
	if e.Op == "AND" || e.Op == "OR" {
		l, err := evalExpression(e.Left, row, ec)
		if err != nil {
			return nil, err
		}
		lb, _ := asBool(l)
		if e.Op == "AND" && !lb {
			return false, nil
		}
		if e.Op == "OR" && lb {
			return true, nil
		}
		r, err := evalExpression(e.Right, row, ec)
		if err != nil {
			return nil, err
		}
		rb, _ := asBool(r)
		return rb, nil
	}

	l, err := evalExpression(e.Left, row, ec)
	if err != nil {
		return nil, err
	}
	r, err := evalExpression(e.Right, row, ec)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case "=":
		return valuesEqual(l, r), nil
	case "<>":
		return !valuesEqual(l, r), nil
	case "<", ">", "<=", ">=":
		return compareValues(l, r, e.Op)
	case "+":
		if ls, ok := l.(string); ok {
			return ls + fmt.Sprint(r), nil
		}
		if rs, ok := r.(string); ok {
			return fmt.Sprint(l) + rs, nil
		}
		if ll, ok := l.([]any); ok {
			if rl, ok := r.([]any); ok {
				return append(append([]any{}, ll...), rl...), nil
			}
			return append(append([]any{}, ll...), r), nil
		}
		return arith(l, r, e.Op)
	case "-", "*", "/", "%":
		return arith(l, r, e.Op)
	}
	return nil, &InternalError{Message: "unknown binary operator " + e.Op}
}

func arith(l, r any, op string) (any, error) {
	lf, lok := convert.ToFloat64(l)
	rf, rok := convert.ToFloat64(r)
	if !lok || !rok {
		return nil, &SemanticError{Message: fmt.Sprintf("operator %s requires numeric operands", op)}
	}
	var result float64
	switch op {
	case "+":
		result = lf + rf
	case "-":
		result = lf - rf
	case "*":
		result = lf * rf
	case "/":
		if rf == 0 {
			return nil, &SemanticError{Message: "division by zero"}
		}
		result = lf / rf
	case "%":
		if rf == 0 {
			return nil, &SemanticError{Message: "modulo by zero"}
		}
		result = math.Mod(lf, rf)
	}
	if isIntLike(l) && isIntLike(r) && op != "/" {
		return int64(result), nil
	}
	return result, nil
}

func isIntLike(v any) bool {
	switch v.(type) {
	case int, int32, int64:
		return true
	}
	return false
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := convert.ToFloat64(a)
	bf, bok := convert.ToFloat64(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compareValues(a, b any, op string) (bool, error) {
	af, aok := convert.ToFloat64(a)
	bf, bok := convert.ToFloat64(b)
	var cmp int
	if aok && bok {
		switch {
		case af < bf:
			cmp = -1
		case af > bf:
			cmp = 1
		}
	} else {
		as, bs := fmt.Sprint(a), fmt.Sprint(b)
		cmp = strings.Compare(as, bs)
	}
	switch op {
	case "<":
		return cmp < 0, nil
	case ">":
		return cmp > 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">=":
		return cmp >= 0, nil
	}
	return false, &InternalError{Message: "unknown comparison operator " + op}
}

func evalStringPredicate(e *StringPredicate, row Row, ec *evalCtx) (any, error) {
	h, err := evalExpression(e.Haystack, row, ec)
	if err != nil {
		return nil, err
	}
	n, err := evalExpression(e.Needle, row, ec)
	if err != nil {
		return nil, err
	}
	hs, hok := h.(string)
	ns, nok := n.(string)
	if !hok || !nok {
		return false, nil
	}
	switch e.Op {
	case "CONTAINS":
		return strings.Contains(hs, ns), nil
	case "STARTS WITH":
		return strings.HasPrefix(hs, ns), nil
	case "ENDS WITH":
		return strings.HasSuffix(hs, ns), nil
	}
	return nil, &InternalError{Message: "unknown string predicate " + e.Op}
}

func evalCase(e *CaseExpr, row Row, ec *evalCtx) (any, error) {
	var testVal any
	var err error
	if e.Test != nil {
		testVal, err = evalExpression(e.Test, row, ec)
		if err != nil {
			return nil, err
		}
	}
	for i, when := range e.Whens {
		whenVal, err := evalExpression(when, row, ec)
		if err != nil {
			return nil, err
		}
		matched := false
		if e.Test != nil {
			matched = valuesEqual(testVal, whenVal)
		} else {
			matched, _ = asBool(whenVal)
		}
		if matched {
			return evalExpression(e.Thens[i], row, ec)
		}
	}
	if e.Else != nil {
		return evalExpression(e.Else, row, ec)
	}
	return nil, nil
}

func evalListComprehension(e *ListComprehension, row Row, ec *evalCtx) (any, error) {
	src, err := evalExpression(e.Source, row, ec)
	if err != nil {
		return nil, err
	}
	list, _ := src.([]any)
	out := make([]any, 0, len(list))
	for _, item := range list {
		sub := row.Clone()
		sub[e.Variable] = RowVal{Kind: VarValue, Value: item}
		if e.Where != nil {
			cond, err := evalExpression(e.Where, sub, ec)
			if err != nil {
				return nil, err
			}
			if ok, _ := asBool(cond); !ok {
				continue
			}
		}
		if e.Project != nil {
			v, err := evalExpression(e.Project, sub, ec)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		} else {
			out = append(out, item)
		}
	}
	return out, nil
}

func evalListPredicate(e *ListPredicate, row Row, ec *evalCtx) (any, error) {
	src, err := evalExpression(e.Source, row, ec)
	if err != nil {
		return nil, err
	}
	list, _ := src.([]any)
	matchCount := 0
	for _, item := range list {
		sub := row.Clone()
		sub[e.Variable] = RowVal{Kind: VarValue, Value: item}
		cond, err := evalExpression(e.Where, sub, ec)
		if err != nil {
			return nil, err
		}
		ok, _ := asBool(cond)
		if !ok {
			if e.Kind == PredAll {
				return false, nil
			}
			continue
		}
		matchCount++
		switch e.Kind {
		case PredAny:
			return true, nil
		case PredNone:
			return false, nil
		}
	}
	switch e.Kind {
	case PredAll, PredNone:
		return true, nil
	case PredAny:
		return false, nil
	case PredSingle:
		return matchCount == 1, nil
	}
	return nil, &InternalError{Message: "unknown list predicate kind"}
}

// evalExistsSubquery runs the pattern as a standalone existence check
// against the row currently bound, reusing the pattern compiler so label/
// type/property filters and variable-length edges behave identically to a
// MATCH (spec.md §4.3's treatment of EXISTS as a correlated subquery).
func evalExistsSubquery(e *ExistsSubquery, row Row, ec *evalCtx) (any, error) {
	psql, err := buildMatchSQL([]Pattern{e.Pattern}, e.Where, false, row, ec.params, ec.maxPathDepth, 0)
	if err != nil {
		return nil, err
	}
	existsSQL := "SELECT EXISTS(" + psql.SQL + ")"
	rows, err := ec.tx.QueryContext(ec.ctx, existsSQL, psql.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return false, nil
	}
	var found bool
	if err := rows.Scan(&found); err != nil {
		return nil, &InternalError{Message: err.Error()}
	}
	return found, nil
}

// evalAggregate reduces an aggregate FunctionCall's argument over every row
// in a group, per spec.md §4.3.3. Non-aggregate projections never reach
// here; the translator's GROUP BY detection (driven by aggregateFunctions,
// functions.go) routes aggregate ReturnItems through this instead of
// evalExpression.
func evalAggregate(fc *FunctionCall, rows []Row, ec *evalCtx) (any, error) {
	name := lower(fc.Name)

	var values []any
	seen := map[string]bool{}
	for _, row := range rows {
		v, err := evalArg(fc, row, ec)
		if err != nil {
			return nil, err
		}
		if name != "count" && v == nil {
			continue
		}
		if fc.Distinct {
			key := fmt.Sprint(v)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		values = append(values, v)
	}

	switch name {
	case "count":
		return int64(len(values)), nil
	case "sum":
		var total float64
		for _, v := range values {
			f, _ := convert.ToFloat64(v)
			total += f
		}
		return total, nil
	case "avg":
		if len(values) == 0 {
			return nil, nil
		}
		var total float64
		for _, v := range values {
			f, _ := convert.ToFloat64(v)
			total += f
		}
		return total / float64(len(values)), nil
	case "min":
		return reduceMinMax(values, true)
	case "max":
		return reduceMinMax(values, false)
	case "collect":
		if values == nil {
			return []any{}, nil
		}
		return values, nil
	case "percentilecont", "percentiledisc":
		return percentile(values, fc, row0(rows), ec, name == "percentiledisc")
	}
	return nil, &TranslateError{Message: "unsupported aggregate function " + fc.Name}
}

func row0(rows []Row) Row {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

func evalArg(fc *FunctionCall, row Row, ec *evalCtx) (any, error) {
	if len(fc.Args) == 0 {
		return true, nil // count(*) is parsed with no arguments: every row counts
	}
	return evalExpression(fc.Args[0], row, ec)
}

func reduceMinMax(values []any, wantMin bool) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	best := values[0]
	for _, v := range values[1:] {
		op := ">"
		if wantMin {
			op = "<"
		}
		better, err := compareValues(v, best, op)
		if err != nil {
			return nil, err
		}
		if better {
			best = v
		}
	}
	return best, nil
}

func percentile(values []any, fc *FunctionCall, row Row, ec *evalCtx, discrete bool) (any, error) {
	if len(fc.Args) < 2 {
		return nil, &TranslateError{Message: fc.Name + "() requires a percentile argument"}
	}
	pctVal, err := evalExpression(fc.Args[1], row, ec)
	if err != nil {
		return nil, err
	}
	pct, _ := convert.ToFloat64(pctVal)
	floats := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := convert.ToFloat64(v); ok {
			floats = append(floats, f)
		}
	}
	if len(floats) == 0 {
		return nil, nil
	}
	sort.Float64s(floats)
	if discrete {
		idx := int(math.Ceil(pct*float64(len(floats)))) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(floats) {
			idx = len(floats) - 1
		}
		return floats[idx], nil
	}
	pos := pct * float64(len(floats)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return floats[lo], nil
	}
	frac := pos - float64(lo)
	return floats[lo]*(1-frac) + floats[hi]*frac, nil
}

// evalFunctionCall covers the full scalar function surface spec.md §6.3
// names, beyond the narrow set compile.go/functions.go can lower to SQL.
func evalFunctionCall(fc *FunctionCall, row Row, ec *evalCtx) (any, error) {
	if aggregateFunctions[lower(fc.Name)] {
		return nil, &SemanticError{Message: fc.Name + "() is only valid as a RETURN/WITH projection term, not nested in an expression"}
	}

	args := make([]any, len(fc.Args))
	for i, a := range fc.Args {
		v, err := evalExpression(a, row, ec)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch lower(fc.Name) {
	case "id":
		return idOf(row, fc.Args)
	case "labels":
		if nv, ok := args[0].(NodeValue); ok {
			return toAnySlice(nv.Labels), nil
		}
		return nil, nil
	case "type":
		if ev, ok := args[0].(EdgeValue); ok {
			return ev.Type, nil
		}
		return nil, nil
	case "properties":
		switch v := args[0].(type) {
		case NodeValue:
			return v.Properties, nil
		case EdgeValue:
			return v.Properties, nil
		}
		return nil, nil
	case "keys":
		return keysOf(args[0]), nil
	case "coalesce":
		for _, a := range args {
			if a != nil {
				return a, nil
			}
		}
		return nil, nil
	case "size":
		return sizeOf(args[0])
	case "length":
		if pv, ok := args[0].(PathValue); ok {
			return int64(len(pv.Edges)), nil
		}
		return sizeOf(args[0])
	case "nodes":
		if pv, ok := args[0].(PathValue); ok {
			return nodeValuesToAny(pv.Nodes), nil
		}
		return nil, nil
	case "relationships":
		if pv, ok := args[0].(PathValue); ok {
			return edgeValuesToAny(pv.Edges), nil
		}
		return nil, nil
	case "head":
		return listIndex(args[0], 0)
	case "last":
		return listIndex(args[0], -1)
	case "tail":
		l, _ := args[0].([]any)
		if len(l) == 0 {
			return []any{}, nil
		}
		return append([]any{}, l[1:]...), nil
	case "range":
		return evalRange(args)
	case "abs":
		f, _ := convert.ToFloat64(args[0])
		return math.Abs(f), nil
	case "ceil":
		f, _ := convert.ToFloat64(args[0])
		return math.Ceil(f), nil
	case "floor":
		f, _ := convert.ToFloat64(args[0])
		return math.Floor(f), nil
	case "round":
		f, _ := convert.ToFloat64(args[0])
		return math.Round(f), nil
	case "sqrt":
		f, _ := convert.ToFloat64(args[0])
		return math.Sqrt(f), nil
	case "rand":
		return rand.Float64(), nil
	case "toupper":
		s, _ := args[0].(string)
		return strings.ToUpper(s), nil
	case "tolower":
		s, _ := args[0].(string)
		return strings.ToLower(s), nil
	case "trim":
		s, _ := args[0].(string)
		return strings.TrimSpace(s), nil
	case "ltrim":
		s, _ := args[0].(string)
		return strings.TrimLeft(s, " \t\n\r"), nil
	case "rtrim":
		s, _ := args[0].(string)
		return strings.TrimRight(s, " \t\n\r"), nil
	case "left":
		s, _ := args[0].(string)
		n, _ := convert.ToInt64(args[1])
		if int(n) >= len(s) {
			return s, nil
		}
		if n < 0 {
			n = 0
		}
		return s[:n], nil
	case "right":
		s, _ := args[0].(string)
		n, _ := convert.ToInt64(args[1])
		if int(n) >= len(s) {
			return s, nil
		}
		if n < 0 {
			n = 0
		}
		return s[len(s)-int(n):], nil
	case "reverse":
		switch v := args[0].(type) {
		case string:
			return reverseString(v), nil
		case []any:
			out := make([]any, len(v))
			for i, x := range v {
				out[len(v)-1-i] = x
			}
			return out, nil
		}
		return args[0], nil
	case "substring":
		return evalSubstring(args)
	case "replace":
		s, _ := args[0].(string)
		search, _ := args[1].(string)
		repl, _ := args[2].(string)
		return strings.ReplaceAll(s, search, repl), nil
	case "split":
		s, _ := args[0].(string)
		sep, _ := args[1].(string)
		parts := strings.Split(s, sep)
		return toAnySlice(parts), nil
	case "tostring":
		return toStringValue(args[0]), nil
	case "tointeger":
		i, ok := convert.ToInt64(args[0])
		if !ok {
			return nil, nil
		}
		return i, nil
	case "tofloat":
		f, ok := convert.ToFloat64(args[0])
		if !ok {
			return nil, nil
		}
		return f, nil
	case "toboolean":
		return toBooleanValue(args[0]), nil
	case "timestamp":
		return time.Now().UnixMilli(), nil
	case "date":
		return formatTemporal(args, "2006-01-02")
	case "datetime":
		return formatTemporal(args, time.RFC3339)
	default:
		return nil, &TranslateError{Message: "unknown function " + fc.Name + "()"}
	}
}

func idOf(row Row, argExprs []Expression) (any, error) {
	v, ok := argExprs[0].(*VariableRef)
	if !ok {
		return nil, &SemanticError{Message: "id() requires a bound variable"}
	}
	rv, ok := row[v.Name]
	if !ok {
		return nil, &SemanticError{Message: fmt.Sprintf("unknown variable %q", v.Name)}
	}
	if rv.ID == "" {
		return nil, nil
	}
	return rv.ID, nil
}

func keysOf(v any) []any {
	var m map[string]any
	switch x := v.(type) {
	case NodeValue:
		m = x.Properties
	case EdgeValue:
		m = x.Properties
	case map[string]any:
		m = x
	default:
		return []any{}
	}
	out := make([]any, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].(string) < out[j].(string) })
	return out
}

func sizeOf(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return int64(len([]rune(x))), nil
	case []any:
		return int64(len(x)), nil
	case nil:
		return nil, nil
	default:
		return nil, &SemanticError{Message: "size() requires a string or list"}
	}
}

func listIndex(v any, idx int) (any, error) {
	l, ok := v.([]any)
	if !ok || len(l) == 0 {
		return nil, nil
	}
	if idx < 0 {
		idx += len(l)
	}
	if idx < 0 || idx >= len(l) {
		return nil, nil
	}
	return l[idx], nil
}

func evalRange(args []any) (any, error) {
	if len(args) < 2 {
		return nil, &TranslateError{Message: "range() requires start and end arguments"}
	}
	start, _ := convert.ToInt64(args[0])
	end, _ := convert.ToInt64(args[1])
	step := int64(1)
	if len(args) > 2 {
		step, _ = convert.ToInt64(args[2])
	}
	if step == 0 {
		return nil, &SemanticError{Message: "range() step must not be zero"}
	}
	var out []any
	if step > 0 {
		for i := start; i <= end; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i >= end; i += step {
			out = append(out, i)
		}
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

func evalSubstring(args []any) (any, error) {
	s, _ := args[0].(string)
	r := []rune(s)
	start, _ := convert.ToInt64(args[1])
	if start < 0 {
		start = 0
	}
	if int(start) > len(r) {
		return "", nil
	}
	if len(args) > 2 {
		length, _ := convert.ToInt64(args[2])
		end := int(start) + int(length)
		if end > len(r) {
			end = len(r)
		}
		return string(r[start:end]), nil
	}
	return string(r[start:]), nil
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func toAnySlice[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func nodeValuesToAny(nv []NodeValue) []any {
	out := make([]any, len(nv))
	for i, v := range nv {
		out[i] = v
	}
	return out
}

func edgeValuesToAny(ev []EdgeValue) []any {
	out := make([]any, len(ev))
	for i, v := range ev {
		out[i] = v
	}
	return out
}

func toStringValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	default:
		if f, ok := convert.ToFloat64(x); ok {
			if isIntLike(x) {
				return strconv.FormatInt(int64(f), 10)
			}
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		return fmt.Sprint(x)
	}
}

func toBooleanValue(v any) any {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.ToLower(x))
		if err != nil {
			return nil
		}
		return b
	default:
		return nil
	}
}

func formatTemporal(args []any, layout string) (any, error) {
	if len(args) == 0 {
		return time.Now().UTC().Format(layout), nil
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, &SemanticError{Message: "date()/datetime() requires a string argument"}
	}
	return s, nil
}
