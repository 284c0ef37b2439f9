package auth_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-authflow"
)

func TestNumericCodeGenerator(t *testing.T) {
	gen := auth.NumericCodeGenerator{}

	for i := 0; i < 200; i++ {
		code, err := gen.Generate()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestCodeGeneratorFunc(t *testing.T) {
	gen := auth.CodeGeneratorFunc(func() (string, error) { return "123456", nil })

	code, err := gen.Generate()
	require.NoError(t, err)
	assert.Equal(t, "123456", code)
}
