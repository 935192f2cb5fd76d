package rate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/kassa-terminal/internal/money"
)

func TestBoard(t *testing.T) {
	b, err := NewBoard(12180)
	require.NoError(t, err)
	assert.Equal(t, 12180.0, b.Current())

	require.NoError(t, b.Set(12650))
	assert.Equal(t, 12650.0, b.Current())

	assert.ErrorIs(t, b.Set(0), money.ErrInvalidRate)
	assert.Equal(t, 12650.0, b.Current())
}

func TestNewBoard_InvalidRate(t *testing.T) {
	_, err := NewBoard(-5)
	assert.ErrorIs(t, err, money.ErrInvalidRate)
}
