package ratelimit

import (
	"testing"
	"time"

	"twirp"
	"twirp/internal/testapi"

	"github.com/go-redis/redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRedisLimiters_Unreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	defer func() {
		_ = rdb.Close()
	}()
	testCases := []struct {
		name    string
		limiter Limiter
	}{
		{name: "slide window", limiter: NewRedisSlideWindowLimiter(rdb, "twirp:ping", 1, time.Second)},
		{name: "fix window", limiter: NewRedisFixWindowLimiter(rdb, "twirp:ping", 1, time.Second)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			next := &countingHandler{}
			_, err := call(tc.limiter.LimitUnary()(next), testapi.PingMethod)
			assert.Equal(t, twirp.Unavailable, twirp.CodeOf(err))
			assert.Equal(t, 0, next.cnt)
		})
	}
}

func TestRedisSlideWindowLimiter_Member(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	a := NewRedisSlideWindowLimiter(nil, "twirp:ping", 1, time.Second)
	b := NewRedisSlideWindowLimiter(nil, "twirp:ping", 1, time.Second)
	assert.NotEqual(t, a.instance, b.instance)

	const n = 64
	members := make([]string, 2*n)
	var eg errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		eg.Go(func() error {
			members[i] = a.member(now)
			members[n+i] = b.member(now)
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		seen[m] = struct{}{}
	}
	assert.Len(t, seen, 2*n)
}
