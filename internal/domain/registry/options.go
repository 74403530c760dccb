package registry

import "time"

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithShards sets the stripe count of the presence registry and room index.
func WithShards(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.config.shards = n
		}
	}
}

// WithEvictionInterval configures how often the [JANITOR] process runs
// to reclaim memory from offline identities.
func WithEvictionInterval(d time.Duration) Option {
	return func(h *Hub) {
		h.config.evictionInterval = d
	}
}

// WithIdleTimeout defines the [QUIET_PERIOD] after which an offline
// presence record is eligible for eviction.
func WithIdleTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.config.idleTimeout = d
	}
}

// WithMailboxSize sets the [BACKPRESSURE] threshold of every connector.
func WithMailboxSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.config.mailboxSize = size
		}
	}
}
