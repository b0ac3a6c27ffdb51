package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}

	a := gen.Generate()
	b := gen.Generate()

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("claim-1", "claim-2")

	assert.Equal(t, "claim-1", gen.Generate())
	assert.Equal(t, "claim-2", gen.Generate())
	assert.PanicsWithValue(t, "FixedGenerator: all tokens exhausted", func() { gen.Generate() })
}
