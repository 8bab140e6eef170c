package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientCache_CachesClientPerToken(t *testing.T) {
	cache := NewClientCache(false, nil)

	a := cache.ClientFor("token-a")
	b := cache.ClientFor("token-a")
	c := cache.ClientFor("token-b")

	assert.Same(t, a, b, "same token must return the same cached client")
	assert.NotSame(t, a, c, "distinct tokens must get distinct clients")
}
