package lock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopLocker(t *testing.T) {
	unlock, err := NoopLocker{}.Acquire(context.Background(), ReconcileKey("abc12345"))
	require.NoError(t, err)
	assert.NoError(t, unlock(context.Background()))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "lock:reconcile:abc12345", ReconcileKey("abc12345"))
	assert.Equal(t, "lock:subscription:s-1", SubscriptionKey("s-1"))
}
