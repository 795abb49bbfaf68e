package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_Ping(t *testing.T) {
	db, _ := newTestDB(t)

	h := db.Ping(context.Background())
	assert.True(t, h.Healthy)
	assert.NoError(t, h.Err)
	assert.Equal(t, fixedNow, h.CheckedAt)

	// Without a monitor Health probes on demand.
	assert.True(t, db.Health().Healthy)

	require.NoError(t, db.Close())
	h = db.Ping(context.Background())
	assert.False(t, h.Healthy)
	assert.Error(t, h.Err)
}

func TestDB_HealthMonitor(t *testing.T) {
	db, _ := newTestDB(t, WithHealthCheck(10*time.Millisecond))

	require.NotNil(t, db.health)

	assert.Eventually(t, func() bool {
		return db.Health().Healthy
	}, 2*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = db.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the health monitor")
	}
	assert.Nil(t, db.health)
}

func TestWithHealthCheck_Disabled(t *testing.T) {
	db, _ := newTestDB(t, WithHealthCheck(0))
	assert.Nil(t, db.health)
}
