package cypher

import "fmt"

// ParseError reports the first unexpected token, positioned per spec.md
// §4.2/§7: "the error carries exact source coordinates."
type ParseError struct {
	Message string
	Offset  int
	Line    int
	Column  int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d (offset %d): %s", e.Line, e.Column, e.Offset, e.Message)
}

// TranslateError reports a construct the translator cannot lower to SQL
// (spec.md §7, §9). Aggregation grouping never raises it: projection.go
// treats every non-aggregate item as a grouping key.
type TranslateError struct {
	Message string
}

func (e *TranslateError) Error() string {
	return fmt.Sprintf("unsupported construct: %s", e.Message)
}

// SemanticError reports an unknown variable, a type mismatch, or a
// DELETE-without-DETACH on a connected node (spec.md §7).
type SemanticError struct {
	Message string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("semantic error: %s", e.Message)
}

// InternalError marks a condition the pipeline's invariants say cannot
// happen; callers should treat it as fatal (spec.md §7).
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s", e.Message)
}
