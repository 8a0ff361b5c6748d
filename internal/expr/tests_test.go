package expr_test

import (
	"context"
	"testing"
	"time"

	"github.com/deepwalk/deepwalk/internal/expr"
	"github.com/deepwalk/deepwalk/internal/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envWithProps(values map[string]node.Value) *expr.Env {
	return &expr.Env{Node: &node.Node{Props: node.Root().WithValues(values)}}
}

func TestGlobExpr(t *testing.T) {
	env := envWithProps(map[string]node.Value{"name": node.StringOf("report.class")})

	v, err := expr.GlobExpr{Property: "name", Pattern: "*.class"}.Eval(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = expr.GlobExpr{Property: "name", Pattern: "*.txt"}.Eval(context.Background(), env)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestSizeExpr_ParseAndEval(t *testing.T) {
	cmp, n, unit, err := expr.ParseSizeLiteral("+1K")
	require.NoError(t, err)
	assert.Equal(t, expr.CmpGreater, cmp)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, expr.SizeKilo, unit)

	env := envWithProps(map[string]node.Value{"size": node.LongOf(2048)})
	v, err := (expr.SizeExpr{Cmp: cmp, N: n, Unit: unit}).Eval(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, v)

	small := envWithProps(map[string]node.Value{"size": node.LongOf(500)})
	v, err = (expr.SizeExpr{Cmp: cmp, N: n, Unit: unit}).Eval(context.Background(), small)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestSizeExpr_MissingSizeIsFalse(t *testing.T) {
	env := envWithProps(nil)

	v, err := (expr.SizeExpr{Cmp: expr.CmpExact, N: 0}).Eval(context.Background(), env)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestAgeExpr(t *testing.T) {
	fixedNow := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	tenDaysAgo := fixedNow.AddDate(0, 0, -10)

	env := envWithProps(map[string]node.Value{"lastModifiedDate": node.DateOf(tenDaysAgo)})

	e := expr.AgeExpr{Cmp: expr.CmpExact, N: 10, Unit: expr.AgeDays, Now: func() time.Time { return fixedNow }}

	v, err := e.Eval(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestParseAgeLiteral(t *testing.T) {
	cmp, n, err := expr.ParseAgeLiteral("-7")
	require.NoError(t, err)
	assert.Equal(t, expr.CmpLess, cmp)
	assert.Equal(t, int64(7), n)
}

func TestPropBoolExpr(t *testing.T) {
	env := envWithProps(map[string]node.Value{"flag": node.BoolOf(true)})

	v, err := expr.PropBoolExpr{Name: "flag"}.Eval(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = expr.PropBoolExpr{Name: "missing"}.Eval(context.Background(), env)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestReadableWritableExecutable(t *testing.T) {
	env := envWithProps(map[string]node.Value{"mode": node.LongOf(0o644)})

	v, err := expr.Readable().Eval(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = expr.Executable().Eval(context.Background(), env)
	require.NoError(t, err)
	assert.False(t, v)
}
