package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docflow-api/pkg/config"
)

func TestLocalLeaseAlwaysGrants(t *testing.T) {
	release, ok, err := LocalLease{}.Acquire(context.Background(), "sweep", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, release(context.Background()))
}

func TestRedisLeaseSurfacesConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	_, ok, err := NewRedisLease(client).Acquire(context.Background(), "sweep", time.Second)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisDisabled(t *testing.T) {
	client, err := NewRedis(context.Background(), config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, client)
}
