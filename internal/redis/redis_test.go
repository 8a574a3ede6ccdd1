package redis

import (
	"context"
	"testing"

	"github.com/playmatatu/arena/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	ctx := context.Background()
	server := testutil.NewRedis(t)

	client, err := Connect(ctx, "redis://"+server.Options().Addr+"/1")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	v, err := client.Get(ctx, "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not a url")
	assert.Error(t, err)
}
