package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polydep/internal/ir"
)

func compileScopSource(t *testing.T, src, path string) (*ir.ScopSpec, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("test.cue"))
	require.NoError(t, v.Err())
	return CompileScop(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileScopBasic(t *testing.T) {
	src := `
scop: stencil: {
	params: N: 8
	statement: {
		S1: {
			domain: [{iter: "i", lower: 1, upper: "N - 1"}]
			schedule: ["i", 0]
			access: {
				r0: {kind: "read", array: "A", index: ["i - 1"]}
				w0: {kind: "must_write", array: "B", index: ["i"]}
			}
		}
		S2: {
			domain: [{iter: "i", lower: 1, upper: "N - 1"}]
			schedule: ["i", 1]
			call: true
			access: r1: {kind: "read", array: "B", index: ["i"]}
		}
	}
	independence: [{from: "S1", to: "S2"}]
}
`
	spec, err := compileScopSource(t, src, "scop.stencil")
	require.NoError(t, err)

	assert.Equal(t, "stencil", spec.Name)
	assert.Equal(t, map[string]int64{"N": 8}, spec.Params)
	require.Len(t, spec.Statements, 2)

	s1 := spec.Statements[0]
	assert.Equal(t, "S1", s1.Name)
	assert.Equal(t, []ir.LoopBound{{Iter: "i", Lower: "1", Upper: "N - 1"}}, s1.Domain)
	assert.Equal(t, []string{"i", "0"}, s1.Schedule)
	assert.False(t, s1.Call)
	require.Len(t, s1.Accesses, 2)
	assert.Equal(t, ir.AccessSpec{Ref: "r0", Kind: ir.AccessRead, Array: "A", Index: []string{"i - 1"}}, s1.Accesses[0])
	assert.Equal(t, "w0", s1.Accesses[1].Ref)
	assert.Equal(t, ir.AccessMustWrite, s1.Accesses[1].Kind)

	s2 := spec.Statements[1]
	assert.True(t, s2.Call)
	require.Len(t, s2.Accesses, 1)

	assert.Equal(t, []ir.IndependenceSpec{{From: "S1", To: "S2"}}, spec.Independence)
	assert.Empty(t, Validate(spec))
}

func TestCompileScopScalarAccess(t *testing.T) {
	src := `
scop: s: statement: S: {
	schedule: [0]
	access: w: {kind: "must_write", array: "t"}
}
`
	spec, err := compileScopSource(t, src, "scop.s")
	require.NoError(t, err)
	require.Len(t, spec.Statements, 1)
	assert.Empty(t, spec.Statements[0].Domain)
	assert.Empty(t, spec.Statements[0].Accesses[0].Index)
	assert.Nil(t, spec.Params)
}

func TestCompileScopNoStatements(t *testing.T) {
	src := `scop: empty: params: N: 4`
	_, err := compileScopSource(t, src, "scop.empty")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "statement", ce.Field)
}

func TestCompileScopMissingSchedule(t *testing.T) {
	src := `scop: s: statement: S: access: w: {kind: "must_write", array: "t"}`
	_, err := compileScopSource(t, src, "scop.s")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "statement.S.schedule", ce.Field)
}

func TestCompileScopRejectsFloat(t *testing.T) {
	src := `
scop: s: statement: S: {
	domain: [{iter: "i", lower: 0, upper: 2.5}]
	schedule: ["i"]
}
`
	_, err := compileScopSource(t, src, "scop.s")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "statement.S.domain.upper", ce.Field)
	assert.Contains(t, ce.Message, "float")
}

func TestCompileScopRejectsFloatParam(t *testing.T) {
	src := `
scop: s: {
	params: N: 1.5
	statement: S: schedule: [0]
}
`
	_, err := compileScopSource(t, src, "scop.s")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "params.N", ce.Field)
}

func TestCompileScopMissingAccessKind(t *testing.T) {
	src := `
scop: s: statement: S: {
	schedule: [0]
	access: w: {array: "t"}
}
`
	_, err := compileScopSource(t, src, "scop.s")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "statement.S.access.w.kind", ce.Field)
}

func TestCompileScopErrorPosition(t *testing.T) {
	src := `scop: s: {
	statement: S: {
		schedule: [1.5]
	}
}
`
	_, err := compileScopSource(t, src, "scop.s")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Pos.IsValid())
	assert.Equal(t, 3, ce.Pos.Line())
	assert.Contains(t, err.Error(), "test.cue:3:")
}

func TestCompileScopNonExistentPath(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`scop: s: statement: S: schedule: [0]`)
	require.NoError(t, v.Err())

	scopVal := v.LookupPath(cue.ParsePath("scop.missing"))
	assert.False(t, scopVal.Exists())
}

func TestCompileScopInvalidCUESyntax(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`scop: s: { statement: `)
	_, err := CompileScop(v)
	require.Error(t, err)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "statement.S", Message: "bad"}
	assert.Equal(t, "statement.S: bad", err.Error())
}
