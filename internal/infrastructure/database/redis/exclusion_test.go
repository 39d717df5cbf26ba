package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
)

func TestKeyPrefixing(t *testing.T) {
	c := &Client{keyPrefix: "pg:", logger: logging.NewNopLogger()}

	assert.Equal(t, "pg:exclusion", c.Key("exclusion"))
	assert.Equal(t, "pg:cache:run-1", c.Key("cache", "run-1"))
}

func TestKeyWithoutPrefix(t *testing.T) {
	c := &Client{logger: logging.NewNopLogger()}

	assert.Equal(t, "exclusion", c.Key("exclusion"))
}
