package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDeterminism(t *testing.T) {
	v := Object{"component": String("hilt"), "damage": Int(5)}

	h1, err := Hash(DomainSnapshot, v)
	require.NoError(t, err)
	h2, err := Hash(DomainSnapshot, Clone(v))
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestHashDomainSeparation(t *testing.T) {
	v := Object{"damage": Int(5)}
	assert.NotEqual(t, MustHash(DomainSnapshot, v), MustHash(DomainStats, v))
}

func TestHashChangesWithInput(t *testing.T) {
	a := MustHash(DomainStats, Object{"damage": Int(5)})
	b := MustHash(DomainStats, Object{"damage": Int(6)})
	c := MustHash(DomainStats, Object{"damage": Float(5)})

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c, "Int and Float must hash differently")
}
