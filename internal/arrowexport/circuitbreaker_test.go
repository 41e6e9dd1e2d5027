package arrowexport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTripsAfterMaxFailuresThenRecovers(t *testing.T) {
	cb := newCircuitBreaker(3, 50*time.Millisecond)

	require.Equal(t, breakerClosed, cb.state)
	require.True(t, cb.allow())

	cb.failure()
	cb.failure()
	require.Equal(t, breakerClosed, cb.state)

	cb.failure()
	require.Equal(t, breakerOpen, cb.state)
	require.False(t, cb.allow())

	time.Sleep(75 * time.Millisecond)
	require.True(t, cb.allow(), "should allow a probe once timeout elapses")
	require.Equal(t, breakerHalfOpen, cb.state)

	cb.failure()
	require.Equal(t, breakerOpen, cb.state, "a failed probe reopens the circuit")

	time.Sleep(75 * time.Millisecond)
	require.True(t, cb.allow())
	cb.success()
	require.Equal(t, breakerClosed, cb.state)
	require.Zero(t, cb.failures)
}
