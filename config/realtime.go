package config

// RealtimeConfig contains realtime broadcaster configuration.
type RealtimeConfig struct {
	// ShardCount is the number of subscriber registry shards.
	ShardCount int `env:"REALTIME_SHARD_COUNT" envDefault:"16"`

	// EventBuffer is the per-subscriber delivery channel buffer. A subscriber
	// whose buffer fills misses events (fire-and-forget delivery).
	EventBuffer int `env:"REALTIME_EVENT_BUFFER" envDefault:"16"`

	// BridgeEnabled turns on the Redis cross-process fan-out bridge.
	BridgeEnabled bool `env:"REALTIME_BRIDGE_ENABLED" envDefault:"true"`
}

// Sanitize applies guardrails to realtime configuration values.
func (r *RealtimeConfig) Sanitize() {
	if r.ShardCount < 1 {
		r.ShardCount = 16
	}
	if r.EventBuffer < 1 {
		r.EventBuffer = 16
	}
}
