package tracking

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Knetic/govaluate"

	"github.com/execution-hub/execution-tracker/internal/domain/execution"
)

// Filter is a compiled `where` expression over execution fields.
// Nested payload fields are addressed with dotted names, e.g.
// [meta.tenant] == "acme".
type Filter struct {
	expr *govaluate.EvaluableExpression
}

// CompileFilter parses where. An empty expression yields a nil Filter that
// matches everything. Expressions that cannot yield a boolean for a fully
// populated execution are rejected here, so the error does not depend on
// which rows happen to exist.
func CompileFilter(where string) (*Filter, error) {
	cond := strings.TrimSpace(where)
	if cond == "" {
		return nil, nil
	}
	expr, err := govaluate.NewEvaluableExpression(cond)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	f := &Filter{expr: expr}
	if result, err := expr.Evaluate(executionParams(sampleExecution())); err == nil {
		if _, ok := result.(bool); !ok {
			return nil, fmt.Errorf("%w: expression did not evaluate to boolean", ErrInvalidFilter)
		}
	}
	return f, nil
}

// Match reports whether exec satisfies the filter. An evaluation error, such
// as a field the execution does not carry or a null compared with a number,
// is a non-match. A non-boolean result is an error.
func (f *Filter) Match(exec execution.Execution) (bool, error) {
	if f == nil {
		return true, nil
	}
	result, err := f.expr.Evaluate(executionParams(exec))
	if err != nil {
		return false, nil
	}
	v, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w: expression did not evaluate to boolean", ErrInvalidFilter)
	}
	return v, nil
}

// sampleExecution has every optional top-level field set, so a type check
// only fails on fields inside opaque payloads.
func sampleExecution() execution.Execution {
	s, n, now := "", int64(0), time.Unix(0, 0).UTC()
	return execution.Execution{
		Status:         execution.StatusRunning,
		RequestID:      &s,
		ConversationID: &s,
		UserID:         &s,
		Channel:        &s,
		StartedAt:      now,
		EndedAt:        &now,
		DurationMs:     &n,
		ErrorCode:      &s,
		ErrorMessage:   &s,
	}
}

// executionParams exposes the execution's JSON form as expression
// parameters. Objects are flattened to dotted keys; scalars and arrays are
// leaves.
func executionParams(exec execution.Execution) map[string]interface{} {
	params := map[string]interface{}{}
	raw, err := json.Marshal(exec)
	if err != nil {
		return params
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return params
	}
	addParams("", decoded, params)
	return params
}

func addParams(prefix string, m map[string]interface{}, out map[string]interface{}) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			addParams(key, nested, out)
			continue
		}
		out[key] = v
	}
}
