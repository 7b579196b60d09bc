// Package control implements the Control Channel: the inbound
// kill-switch path polled once per tick, per spec.md §6/§4.D. A
// sentinel file is always active; an optional Redis subscriber feeds
// the same latch when enabled.
package control

import (
	"context"
	"encoding/json"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/brindlecap/option15/internal/observ"
)

// Latch is the single method the channel needs on RiskState.
type Latch interface {
	SetManualKill()
}

// Channel polls for an inbound manual-kill signal from a sentinel file
// and, optionally, a Redis pub/sub channel.
type Channel struct {
	sentinelPath string
	latch        Latch

	redisEnabled bool
	redisMsgs    <-chan *redis.Message
	redisClient  *redis.Client
	redisSub     *redis.PubSub
}

// Config is the Control Channel's external configuration, sourced from
// the environment variables spec.md §6 enumerates.
type Config struct {
	SentinelPath  string
	RedisEnabled  bool
	RedisAddr     string
	RedisChannel  string
}

// New constructs a Channel. If cfg.RedisEnabled, it dials Redis and
// subscribes to cfg.RedisChannel; a dial failure is logged and the
// Redis path is disabled for the life of the process rather than
// failing the run — the sentinel file remains authoritative.
func New(ctx context.Context, cfg Config, latch Latch) *Channel {
	c := &Channel{sentinelPath: cfg.SentinelPath, latch: latch}
	if !cfg.RedisEnabled {
		return c
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		observ.Log("control_redis_unavailable", map[string]any{"error": err.Error()})
		return c
	}

	sub := client.Subscribe(ctx, cfg.RedisChannel)
	c.redisEnabled = true
	c.redisClient = client
	c.redisSub = sub
	c.redisMsgs = sub.Channel()
	return c
}

type manualKillMessage struct {
	ManualKill bool `json:"manual_kill"`
}

// Poll checks the sentinel file and drains any pending Redis messages,
// latching the kill switch on either signal. Called exactly once per
// tick by the Orchestrator.
func (c *Channel) Poll() {
	if _, err := os.Stat(c.sentinelPath); err == nil {
		c.latch.SetManualKill()
	}

	if !c.redisEnabled {
		return
	}
	for {
		select {
		case msg, ok := <-c.redisMsgs:
			if !ok {
				c.redisEnabled = false
				return
			}
			var m manualKillMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				observ.Log("control_redis_decode_error", map[string]any{"error": err.Error()})
				continue
			}
			if m.ManualKill {
				c.latch.SetManualKill()
			}
		default:
			return
		}
	}
}

// Close releases the Redis subscription and client, if any.
func (c *Channel) Close() error {
	if c.redisSub != nil {
		_ = c.redisSub.Close()
	}
	if c.redisClient != nil {
		return c.redisClient.Close()
	}
	return nil
}
