// SPDX-License-Identifier: Apache-2.0

package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/butaneorm/butane/pkg/backend"
	"github.com/butaneorm/butane/pkg/value"
)

// Compiled is a parametrized SQL statement ready for execution.
type Compiled struct {
	SQL  string
	Args []value.SqlVal
}

// Compiler compiles Query/BoolExpr trees to backend-specific parametrized
// SQL (spec §4.4).
type Compiler struct {
	be backend.Backend
}

func NewCompiler(be backend.Backend) *Compiler { return &Compiler{be: be} }

// compileCtx threads the running placeholder counter through a single
// statement's compilation; dollar-style backends need a running count
// since every compiled fragment is concatenated left to right.
type compileCtx struct {
	n int
}

func (cx *compileCtx) next(be backend.Backend) string {
	cx.n++
	return backend.Placeholder(be.PlaceholderStyle(), cx.n)
}

// CompileSelect compiles q to a SELECT statement.
func (c *Compiler) CompileSelect(q *Query) (Compiled, error) {
	q, err := c.rewriteSubqueries(q)
	if err != nil {
		return Compiled{}, err
	}

	cx := &compileCtx{}
	var sb strings.Builder
	var args []value.SqlVal

	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(quoteAll(q.Cols, c.be), ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(backend.QuoteIdentifier(q.Table, c.be.QuoteChar()))

	if q.FilterExpr != nil {
		whereSQL, whereArgs, err := c.compileBool(cx, *q.FilterExpr)
		if err != nil {
			return Compiled{}, err
		}
		if whereSQL != "" {
			sb.WriteString(" WHERE ")
			sb.WriteString(whereSQL)
			args = append(args, whereArgs...)
		}
	}

	if len(q.Order) > 0 {
		sb.WriteString(" ORDER BY ")
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "ASC"
			if o.Direction == Desc {
				dir = "DESC"
			}
			parts[i] = backend.QuoteIdentifier(o.Column, c.be.QuoteChar()) + " " + dir
		}
		sb.WriteString(strings.Join(parts, ", "))
	}

	// SQLite and libSQL require a LIMIT clause before OFFSET (spec §4.4):
	// synthesize an effectively-unbounded LIMIT when only OFFSET is set.
	needsSyntheticLimit := q.Offset != nil && q.Limit == nil &&
		(c.be.Name() == backend.NameSQLite || c.be.Name() == backend.NameTurso || c.be.Name() == backend.NameLibSQL)

	switch {
	case q.Limit != nil:
		sb.WriteString(fmt.Sprintf(" LIMIT %d", *q.Limit))
	case needsSyntheticLimit:
		sb.WriteString(fmt.Sprintf(" LIMIT %d", int64(math.MaxInt64)))
	}
	if q.Offset != nil {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", *q.Offset))
	}

	sb.WriteString(";")
	return Compiled{SQL: sb.String(), Args: args}, nil
}

// CompileDelete compiles q to a DELETE statement (spec §4.4 delete()).
func (c *Compiler) CompileDelete(q *Query) (Compiled, error) {
	q, err := c.rewriteSubqueries(q)
	if err != nil {
		return Compiled{}, err
	}

	cx := &compileCtx{}
	var sb strings.Builder
	var args []value.SqlVal

	sb.WriteString("DELETE FROM ")
	sb.WriteString(backend.QuoteIdentifier(q.Table, c.be.QuoteChar()))

	if q.FilterExpr != nil {
		whereSQL, whereArgs, err := c.compileBool(cx, *q.FilterExpr)
		if err != nil {
			return Compiled{}, err
		}
		if whereSQL != "" {
			sb.WriteString(" WHERE ")
			sb.WriteString(whereSQL)
			args = append(args, whereArgs...)
		}
	}
	sb.WriteString(";")
	return Compiled{SQL: sb.String(), Args: args}, nil
}

func quoteAll(cols []string, be backend.Backend) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = backend.QuoteIdentifier(c, be.QuoteChar())
	}
	return out
}

func (c *Compiler) compileBool(cx *compileCtx, b BoolExpr) (string, []value.SqlVal, error) {
	q := c.be.QuoteChar()
	switch b.Kind {
	case ExprTrue:
		return "1=1", nil, nil
	case ExprEq, ExprNe, ExprLt, ExprLe, ExprGt, ExprGe, ExprLike:
		lhs := backend.QuoteIdentifier(b.Col, q)
		if (b.Kind == ExprEq || b.Kind == ExprNe) && b.Expr.Kind == ExprVal && b.Expr.Val.Kind == value.KindNull {
			if b.Kind == ExprEq {
				return fmt.Sprintf("%s IS NULL", lhs), nil, nil
			}
			return fmt.Sprintf("%s IS NOT NULL", lhs), nil, nil
		}
		op := map[BoolExprKind]string{
			ExprEq: "=", ExprNe: "<>", ExprLt: "<", ExprLe: "<=", ExprGt: ">", ExprGe: ">=", ExprLike: "LIKE",
		}[b.Kind]
		rhs, args, err := c.compileExpr(cx, b.Expr)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s %s %s", lhs, op, rhs), args, nil
	case ExprIn:
		if len(b.InVals) == 0 {
			return "1=0", nil, nil
		}
		parts := make([]string, len(b.InVals))
		var args []value.SqlVal
		for i, v := range b.InVals {
			frag, a := c.inlineOrBind(cx, v)
			parts[i] = frag
			args = append(args, a...)
		}
		return fmt.Sprintf("%s IN (%s)", backend.QuoteIdentifier(b.Col, q), strings.Join(parts, ", ")), args, nil
	case ExprAnd:
		l, la, err := c.compileBool(cx, *b.Left)
		if err != nil {
			return "", nil, err
		}
		r, ra, err := c.compileBool(cx, *b.Right)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(%s AND %s)", l, r), append(la, ra...), nil
	case ExprOr:
		l, la, err := c.compileBool(cx, *b.Left)
		if err != nil {
			return "", nil, err
		}
		r, ra, err := c.compileBool(cx, *b.Right)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(%s OR %s)", l, r), append(la, ra...), nil
	case ExprNot:
		inner, args, err := c.compileBool(cx, *b.Operand)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("NOT (%s)", inner), args, nil
	case ExprAllOf:
		if len(b.All) == 0 {
			return "1=1", nil, nil
		}
		var parts []string
		var args []value.SqlVal
		for _, e := range b.All {
			s, a, err := c.compileBool(cx, e)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, s)
			args = append(args, a...)
		}
		return "(" + strings.Join(parts, " AND ") + ")", args, nil
	case ExprSubquery, ExprSubqueryJoin:
		return "", nil, fmt.Errorf("query: subquery BoolExpr reached compileBool unrewritten")
	default:
		return "", nil, fmt.Errorf("query: unknown BoolExpr kind %d", b.Kind)
	}
}

// inlineOrBind renders v as a literal inlined directly into the SQL text
// when v is an integer (spec §4.3 "Literal emission"), and otherwise
// consumes a placeholder slot and returns v as a bound argument.
func (c *Compiler) inlineOrBind(cx *compileCtx, v value.SqlVal) (string, []value.SqlVal) {
	switch v.Kind {
	case value.KindInt:
		return strconv.FormatInt(int64(v.IntVal), 10), nil
	case value.KindBigInt:
		return strconv.FormatInt(v.BigVal, 10), nil
	default:
		return cx.next(c.be), []value.SqlVal{v}
	}
}

func (c *Compiler) compileExpr(cx *compileCtx, e Expr) (string, []value.SqlVal, error) {
	switch e.Kind {
	case ExprVal:
		frag, args := c.inlineOrBind(cx, e.Val)
		return frag, args, nil
	case ExprPlaceholder:
		return cx.next(c.be), nil, nil
	case ExprColumn:
		return backend.QuoteIdentifier(e.Column, c.be.QuoteChar()), nil, nil
	case ExprCondition:
		return c.compileBool(cx, *e.Condition)
	default:
		return "", nil, fmt.Errorf("query: unknown Expr kind %d", e.Kind)
	}
}
