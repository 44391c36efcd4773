package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAffine(t *testing.T) {
	vars := []string{"N", "i", "j"}
	tests := []struct {
		src   string
		terms map[string]int64
		cst   int64
		str   string
	}{
		{"0", nil, 0, "0"},
		{"i", map[string]int64{"i": 1}, 0, "i"},
		{"i + 1", map[string]int64{"i": 1}, 1, "i + 1"},
		{"N - 1", map[string]int64{"N": 1}, -1, "N - 1"},
		{"2*i - j + N + 1", map[string]int64{"i": 2, "j": -1, "N": 1}, 1, "N + 2*i - j + 1"},
		{"-(i - 3)", map[string]int64{"i": -1}, 3, "-i + 3"},
		{"3 * (i + 2)", map[string]int64{"i": 3}, 6, "3*i + 6"},
		{"i - i", map[string]int64{"i": 0}, 0, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			a, err := ParseAffine(tt.src, vars)
			require.NoError(t, err)
			for v, c := range tt.terms {
				assert.Equal(t, c, a.Coeff(v), v)
			}
			assert.Equal(t, tt.cst, a.Const)
			assert.Equal(t, tt.str, a.String())
		})
	}
}

func TestParseAffineRejects(t *testing.T) {
	vars := []string{"N", "i"}
	tests := []struct {
		src  string
		want string
	}{
		{"i*i", "product of variables"},
		{"i*N", "product of variables"},
		{"A[i]", "data-dependent subscript"},
		{"f(i)", "function call"},
		{"k + 1", "unknown identifier k"},
		{"i / 2", "unsupported operator"},
		{"1.5", "not an integer"},
		{"i +", ""},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := ParseAffine(tt.src, vars)
			require.Error(t, err)

			var ae *AffineError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, tt.src, ae.Expr)
			assert.Contains(t, ae.Message, tt.want)
		})
	}
}

func TestAffineSubstitute(t *testing.T) {
	a, err := ParseAffine("N - i + 2", []string{"N", "i"})
	require.NoError(t, err)

	s := a.Substitute(map[string]int64{"N": 10})
	assert.Equal(t, int64(12), s.Const)
	assert.Equal(t, int64(-1), s.Coeff("i"))
	assert.Equal(t, int64(0), s.Coeff("N"))
	assert.False(t, s.IsConstant())
	assert.True(t, s.Substitute(map[string]int64{"i": 12}).IsConstant())
}

func TestStatementSpecIsKill(t *testing.T) {
	kill := StatementSpec{Accesses: []AccessSpec{{Kind: AccessKill}}}
	mixed := StatementSpec{Accesses: []AccessSpec{{Kind: AccessKill}, {Kind: AccessRead}}}
	assert.True(t, kill.IsKill())
	assert.False(t, mixed.IsKill())
	assert.False(t, StatementSpec{}.IsKill())
}
