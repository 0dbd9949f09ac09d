package locks

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/logging"
)

func TestNopLocker(t *testing.T) {
	ctx := context.Background()
	var locker Locker = NopLocker{}

	first, err := locker.Acquire(ctx, ImportKey("Sundsvall"))
	require.NoError(t, err)
	second, err := locker.Acquire(ctx, ImportKey("Sundsvall"))
	require.NoError(t, err)

	assert.NoError(t, first.Release(ctx))
	assert.NoError(t, second.Release(ctx))
}

func TestImportKey(t *testing.T) {
	assert.Equal(t, "import:muni-1", ImportKey("muni-1"))
	assert.Equal(t, "import:sundsvall", ImportKey("Sundsvall"))
	assert.Equal(t, ImportKey("Sundsvall"), ImportKey("  sundsvall "))
}

func TestNewRedisLocker_DefaultPrefix(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer rdb.Close()

	l := NewRedisLocker(rdb, "", time.Minute, logging.NewNopLogger())
	assert.Equal(t, "lock:", l.keyPrefix)
	assert.Equal(t, time.Minute, l.ttl)
}
