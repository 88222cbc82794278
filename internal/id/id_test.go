package id

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorMonotonic(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewGenerator(1, func() time.Time { return fixed })

	prev := g.New()
	for i := 0; i < 100; i++ {
		next := g.New()
		assert.Less(t, prev, next)
		prev = next
	}

	parsed, err := ulid.Parse(prev)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(fixed), parsed.Time())
}

func TestNewIsULID(t *testing.T) {
	t.Parallel()

	_, err := ulid.Parse(New())
	assert.NoError(t, err)
	assert.NotEqual(t, New(), New())
}

func TestSequence(t *testing.T) {
	t.Parallel()

	s := Sequence{Prefix: "T"}
	assert.Equal(t, "T000001", s.Next())
	assert.Equal(t, "T000002", s.Next())
	assert.Equal(t, 2, s.Count())
}
