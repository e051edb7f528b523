package action

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Expr compiles an expr-lang expression into a Matcher.
//
// The expression sees:
//
//	action          string  the action type
//	payload         any     the payload (wire payloads are decoded to generic JSON)
//	correlation_id  string
//	timestamp       int
//
// Example:
//
//	action startsWith "todos/" && payload.id != ""
//
// A runtime failure or a non-bool result is a non-match.
func Expr(src string) (Matcher, error) {
	if src == "" {
		return nil, fmt.Errorf("compile matcher: expression must not be empty")
	}
	program, err := expr.Compile(src,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile matcher %q: %w", src, err)
	}
	return &exprMatcher{src: src, program: program}, nil
}

// MustExpr is like Expr but panics on a compile error.
// Intended for package-level matcher declarations.
func MustExpr(src string) Matcher {
	m, err := Expr(src)
	if err != nil {
		panic(err)
	}
	return m
}

type exprMatcher struct {
	src     string
	program *vm.Program
}

func (m *exprMatcher) Match(a Action) bool {
	out, err := expr.Run(m.program, exprEnv(a))
	if err != nil {
		slog.Debug("matcher expression failed", "expr", m.src, "action", a.Type, "error", err)
		return false
	}
	ok, isBool := out.(bool)
	return isBool && ok
}

func (m *exprMatcher) String() string {
	return m.src
}

func exprEnv(a Action) map[string]any {
	return map[string]any{
		"action":         a.Type,
		"payload":        genericPayload(a.Payload),
		"correlation_id": a.Meta.CorrelationID,
		"timestamp":      a.Meta.Timestamp,
	}
}

// genericPayload converts wire payloads into maps and slices expr can index.
func genericPayload(p any) any {
	raw, ok := p.(json.RawMessage)
	if !ok {
		return p
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
