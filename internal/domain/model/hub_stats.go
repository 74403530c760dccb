package model

import "time"

type HubStats struct {
	TotalUsers       int           `json:"total_users"`
	TotalConnections int           `json:"total_connections"`
	TotalTopics      int           `json:"total_topics"`
	QueuedEvents     int           `json:"queued_events"`
	DroppedEvents    uint64        `json:"dropped_events"`
	Uptime           time.Duration `json:"uptime"`
	Shards           []ShardStats  `json:"shards,omitempty"`
}

// ShardStats describes one stripe of the presence registry.
type ShardStats struct {
	ShardID     int `json:"shard_id"`
	UserCount   int `json:"user_count"`
	Connections int `json:"connections"`
}
