package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPerKeyLimiterAllowsUpToBurst(t *testing.T) {
	limiter := New(1, 2)

	require.True(t, limiter.Allow("peer-a"))
	require.True(t, limiter.Allow("peer-a"))
	require.False(t, limiter.Allow("peer-a"))
}

func TestPerKeyLimiterKeysAreIndependent(t *testing.T) {
	limiter := New(1, 1)

	require.True(t, limiter.Allow("peer-a"))
	require.False(t, limiter.Allow("peer-a"))
	require.True(t, limiter.Allow("peer-b"))
}
