package expr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileAndEvalBoolTrue(t *testing.T) {
	env, err := NewEnvironment()
	require.NoError(t, err)

	prog, err := env.Compile(`uri_lower.contains("union")`)
	require.NoError(t, err)

	ok, err := prog.EvalBool(map[string]any{
		"uri":              "/api?x=UNION",
		"uri_lower":        "/api?x=union",
		"user_agent_lower": "",
		"headers":          map[string]any{},
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCompileAndEvalBoolFalse(t *testing.T) {
	env, err := NewEnvironment()
	require.NoError(t, err)

	prog, err := env.Compile(`uri_lower.contains("union")`)
	require.NoError(t, err)

	ok, err := prog.EvalBool(map[string]any{
		"uri":              "/api",
		"uri_lower":        "/api",
		"user_agent_lower": "",
		"headers":          map[string]any{},
	})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompileRejectsNonBoolExpression(t *testing.T) {
	env, err := NewEnvironment()
	require.NoError(t, err)

	_, err = env.Compile(`uri_lower`)
	require.Error(t, err)
}

func TestCompileRejectsMalformedExpression(t *testing.T) {
	env, err := NewEnvironment()
	require.NoError(t, err)

	_, err = env.Compile(`uri_lower.contains(`)
	require.Error(t, err)
}

func TestCompileRejectsEmptyExpression(t *testing.T) {
	env, err := NewEnvironment()
	require.NoError(t, err)

	_, err = env.Compile("   ")
	require.Error(t, err)
}

func TestHeadersLookupViaFunction(t *testing.T) {
	env, err := NewEnvironment()
	require.NoError(t, err)

	prog, err := env.Compile(`lookup(headers, "x-custom") == "bad"`)
	require.NoError(t, err)

	ok, err := prog.EvalBool(map[string]any{
		"uri":              "/",
		"uri_lower":        "/",
		"user_agent_lower": "",
		"headers":          map[string]any{"x-custom": "bad"},
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCompileValueReturnsRawResult(t *testing.T) {
	env, err := NewEnvironment()
	require.NoError(t, err)

	prog, err := env.CompileValue(`uri`)
	require.NoError(t, err)

	val, err := prog.Eval(map[string]any{
		"uri":              "/path",
		"uri_lower":        "/path",
		"user_agent_lower": "",
		"headers":          map[string]any{},
	})
	require.NoError(t, err)
	require.Equal(t, "/path", val)
}
