package redisstream

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestStreamKeyDefaultsPrefix(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()

	p := NewPublisherWithClient(rdb, "")

	assert.Equal(t, "redis", p.Name())
	assert.Equal(t, "tracker:execution:abc", p.StreamKey("abc"))
	assert.Equal(t, "custom:abc", NewPublisherWithClient(rdb, "custom:").StreamKey("abc"))
}
