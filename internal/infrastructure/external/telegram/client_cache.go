package telegram

import (
	"log/slog"
	"sync"
)

// ClientCache lazily builds and caches one Client per bot token — the
// multi-bot seam every outbound-calling package (the dispatcher's per-bot
// handler tables, the scheduler's jobs, the Role Change Propagator) needs
// since the core serves many Telegram bots from one process.
type ClientCache struct {
	mu      sync.Mutex
	clients map[string]*Client
	debug   bool
	logger  *slog.Logger
}

// NewClientCache constructs an empty ClientCache. debug and logger are
// applied to every Client it creates.
func NewClientCache(debug bool, logger *slog.Logger) *ClientCache {
	return &ClientCache{clients: make(map[string]*Client), debug: debug, logger: logger}
}

// ClientFor returns the Client for token, creating and caching one on
// first use.
func (c *ClientCache) ClientFor(token string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[token]; ok {
		return cl
	}
	cfg := DefaultClientConfig(token)
	cfg.Debug = c.debug
	cfg.Logger = c.logger
	cl := NewClient(cfg)
	c.clients[token] = cl
	return cl
}
