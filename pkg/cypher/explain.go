package cypher

import (
	"fmt"

	"github.com/orneryd/leangraph/pkg/config"
)

// PlanOperator is one node in an EXPLAIN tree (SPEC_FULL.md §C.1). Unlike the
// teacher's regex-driven plan (nornicdb/pkg/cypher/explain.go), LeanGraph
// already has a real AST and a real SQL compiler by the time EXPLAIN runs, so
// each operator carries the statement that clause would actually issue
// instead of a heuristic row-count guess.
type PlanOperator struct {
	OperatorType string         `json:"operatorType"`
	Description  string         `json:"description"`
	SQL          string         `json:"sql,omitempty"`
	Args         []any          `json:"args,omitempty"`
	Children     []*PlanOperator `json:"children,omitempty"`
}

// ExecutionPlan is the EXPLAIN result: spec.md §4.3's "plan consisting of
// {statements, shape}" made into an observable, testable value.
type ExecutionPlan struct {
	Query string        `json:"query"`
	Root  *PlanOperator `json:"root"`
}

// buildExplainPlan walks the clause list bottom-up, compiling MATCH patterns
// through the same pattern.go path execMatch would use, without running
// anything against storage.
func buildExplainPlan(queryText string, q *Query, cfg *config.Config) (*ExecutionPlan, error) {
	var chain []*PlanOperator
	carried := Row{}
	limitHint := staticQueryLimit(q, &evalCtx{params: q.Parameters})

	for _, clause := range q.Clauses {
		switch c := clause.(type) {
		case *MatchClause:
			psql, err := buildMatchSQL(c.Patterns, c.Where, c.Optional, carried, nil, cfg.MaxPathDepth, limitHint)
			if err != nil {
				return nil, err
			}
			opType := "Expand"
			if c.Optional {
				opType = "OptionalExpand"
			}
			for v := range psql.Vars {
				carried[v] = RowVal{}
			}
			chain = append(chain, &PlanOperator{
				OperatorType: opType,
				Description:  fmt.Sprintf("%d pattern(s)", len(c.Patterns)),
				SQL:          psql.SQL,
				Args:         psql.Args,
			})
		case *CreateClause:
			chain = append(chain, &PlanOperator{
				OperatorType: "CreateEntities",
				Description:  fmt.Sprintf("create %d pattern(s)", len(c.Patterns)),
			})
		case *MergeClause:
			chain = append(chain, &PlanOperator{
				OperatorType: "Merge",
				Description:  "match-or-create pattern, apply ON CREATE/ON MATCH",
			})
		case *SetClause:
			chain = append(chain, &PlanOperator{OperatorType: "SetProperty", Description: fmt.Sprintf("%d item(s)", len(c.Items))})
		case *RemoveClause:
			chain = append(chain, &PlanOperator{OperatorType: "RemoveProperty", Description: fmt.Sprintf("%d item(s)", len(c.Items))})
		case *DeleteClause:
			opType := "Delete"
			if c.Detach {
				opType = "DetachDelete"
			}
			chain = append(chain, &PlanOperator{OperatorType: opType, Description: fmt.Sprintf("%v", c.Variables)})
		case *UnwindClause:
			chain = append(chain, &PlanOperator{OperatorType: "Unwind", Description: "As " + c.As})
		case *WithClause:
			chain = append(chain, &PlanOperator{OperatorType: "Projection", Description: fmt.Sprintf("%d item(s)", len(c.Items))})
		case *ReturnClause:
			chain = append(chain, &PlanOperator{OperatorType: "ProduceResults", Description: fmt.Sprintf("%d item(s)", len(c.Items))})
		case *CallClause:
			chain = append(chain, &PlanOperator{OperatorType: "ProcedureCall", Description: c.Procedure})
		default:
			return nil, &InternalError{Message: fmt.Sprintf("unhandled clause type %T in EXPLAIN", clause)}
		}
	}

	if len(chain) == 0 {
		return &ExecutionPlan{Query: queryText, Root: &PlanOperator{OperatorType: "EmptyResult", Description: "no operations"}}, nil
	}
	for i := len(chain) - 1; i > 0; i-- {
		chain[i].Children = []*PlanOperator{chain[i-1]}
	}
	return &ExecutionPlan{Query: queryText, Root: chain[len(chain)-1]}, nil
}
