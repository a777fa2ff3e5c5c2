package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/nextlevelcode/meterbill/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyIngestClient = "ingest:client:%s"

// IngestLimiter throttles the usage ingestion endpoint per client.
// When redis is not configured the limiter is disabled and every
// request passes.
type IngestLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewIngestLimiter(cfg config.Config) *IngestLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" || cfg.IngestRate <= 0 || cfg.IngestBurst <= 0 {
		return &IngestLimiter{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &IngestLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.IngestRate,
		burst:   cfg.IngestBurst,
	}
}

func (l *IngestLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowClient consumes one token from the client's bucket. Errors from
// redis fail open so a limiter outage never blocks billing traffic.
func (l *IngestLimiter) AllowClient(ctx context.Context, clientID snowflake.ID) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true, Remaining: -1}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyIngestClient, clientID), l.rate, l.burst)
}
