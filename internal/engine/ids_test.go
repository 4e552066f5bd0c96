package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()

	assert.NotEqual(t, a, b)
	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestSequenceGenerator(t *testing.T) {
	gen := NewSequenceGenerator("id")
	assert.Equal(t, "id-1", gen.Generate())
	assert.Equal(t, "id-2", gen.Generate())
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("x", "y")
	assert.Equal(t, "x", gen.Generate())
	assert.Equal(t, "y", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}
