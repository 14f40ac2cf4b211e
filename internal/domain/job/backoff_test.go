package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackoffPolicy(t *testing.T) {
	t.Run("rejects non-positive bounds", func(t *testing.T) {
		_, err := NewBackoffPolicy(0, time.Minute)
		require.ErrorIs(t, err, ErrInvalidBackoff)

		_, err = NewBackoffPolicy(time.Second, -1)
		require.ErrorIs(t, err, ErrInvalidBackoff)
	})

	t.Run("raises cap to base", func(t *testing.T) {
		p, err := NewBackoffPolicy(time.Minute, time.Second)
		require.NoError(t, err)
		assert.Equal(t, time.Minute, p.Delay(5))
	})
}

func TestBackoffPolicy_Delay(t *testing.T) {
	p, err := NewBackoffPolicy(30*time.Second, 15*time.Minute)
	require.NoError(t, err)

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: 0, want: 30 * time.Second},
		{attempts: 1, want: 30 * time.Second},
		{attempts: 2, want: time.Minute},
		{attempts: 3, want: 2 * time.Minute},
		{attempts: 4, want: 4 * time.Minute},
		{attempts: 6, want: 15 * time.Minute}, // would be 16m uncapped
		{attempts: 50, want: 15 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestBackoffPolicy_DelayDoesNotOverflow(t *testing.T) {
	p, err := NewBackoffPolicy(time.Second, time.Hour)
	require.NoError(t, err)

	// Attempt counts far past the cap crossover must stay pinned at the cap.
	assert.Equal(t, time.Hour, p.Delay(1000))
}
