package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildLockKey(t *testing.T) {
	assert.Equal(t, "course-builder:build:u1:backend", BuildLockKey("u1", "Backend"))
	assert.Equal(t, "course-builder:build:u1:data science", BuildLockKey("u1", "  Data Science "))
	assert.Equal(t, "course-builder:build:u1:", BuildLockKey("u1", ""))
}

func TestNewBuildLock_NilClientNeverBlocks(t *testing.T) {
	lock := NewBuildLock(nil, 0, zap.NewNop())
	ctx := context.Background()
	key := BuildLockKey("u1", "backend")

	release, ok, err := lock.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	_, again, err := lock.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, again)

	release()
}
