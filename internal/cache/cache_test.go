package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsWithoutClient(t *testing.T) {
	assert.Nil(t, NewRedisTrackingCache(nil, time.Minute))
	assert.Nil(t, NewRedisIdempotencyStore(nil, time.Hour, time.Minute))
}
