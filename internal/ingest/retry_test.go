package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryPolicyBackoffDoubles(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
	require.Equal(t, time.Second, p.Delay(0))
	require.Equal(t, 2*time.Second, p.Delay(1))
	require.Equal(t, 4*time.Second, p.Delay(2))
	require.Equal(t, 8*time.Second, p.Delay(3))
}

func TestRetryPolicyBackoffCapped(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	require.Equal(t, 4*time.Second, p.Delay(2))
	require.Equal(t, 5*time.Second, p.Delay(3))
	require.Equal(t, 5*time.Second, p.Delay(9))
}

func TestRetryPolicyZeroBase(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3}
	require.Equal(t, time.Duration(0), p.Delay(0))
	require.Equal(t, time.Duration(0), p.Delay(5))
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	require.Equal(t, 3, p.MaxAttempts)
	require.Equal(t, time.Second, p.BaseDelay)
	require.Equal(t, 30*time.Second, p.MaxDelay)
}
