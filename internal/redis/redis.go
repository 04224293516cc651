// Package redis opens the shared connection behind a startup ping, so a
// bad address fails at boot instead of on the first login.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const pingTimeout = 2 * time.Second

// Client backs the session store and the short-lived state store
// (OAuth states, reset keys). Both layer their own key prefixes on top.
type Client struct {
	*goredis.Client
}

func New(addr, password string) (*Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return &Client{Client: client}, nil
}
