package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresAddr(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	require.Error(t, err)
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Addr: "localhost:6379"}
	cfg.applyDefaults()

	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 15*time.Minute, cfg.DefaultTTL)
	assert.Equal(t, "portcost:", cfg.KeyPrefix)
}

func TestClient_KeyPrefix(t *testing.T) {
	c := &Client{cfg: Config{KeyPrefix: "portcost:"}}
	assert.Equal(t, "portcost:estimate:abc", c.key("estimate:abc"))
}
