// Package redismirror keeps the remote copy of each user's cart in a Redis hash
// keyed "<namespace>:cart:<userID>", field = product ID, value = quantity.
package redismirror

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	defaultNamespace = "krishi"
	// DefaultTTL drops carts that have not been touched for a week.
	DefaultTTL = 7 * 24 * time.Hour
)

type Mirror struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

type Options struct {
	Namespace string
	TTL       time.Duration
}

func New(client *redis.Client, opts Options) *Mirror {
	if opts.Namespace == "" {
		opts.Namespace = defaultNamespace
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Mirror{client: client, namespace: opts.Namespace, ttl: opts.TTL}
}

// Dial parses a redis:// URL and verifies the connection with a PING.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redismirror: invalid url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redismirror: ping: %w", err)
	}
	return client, nil
}

func (m *Mirror) key(userID string) string {
	return m.namespace + ":cart:" + userID
}

func (m *Mirror) UpsertLine(ctx context.Context, userID, productID string, quantity int) error {
	key := m.key(userID)
	_, err := m.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, productID, quantity)
		p.Expire(ctx, key, m.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redismirror: upsert %s/%s: %w", userID, productID, err)
	}
	return nil
}

func (m *Mirror) DeleteLine(ctx context.Context, userID, productID string) error {
	if err := m.client.HDel(ctx, m.key(userID), productID).Err(); err != nil {
		return fmt.Errorf("redismirror: delete %s/%s: %w", userID, productID, err)
	}
	return nil
}

func (m *Mirror) Clear(ctx context.Context, userID string) error {
	if err := m.client.Del(ctx, m.key(userID)).Err(); err != nil {
		return fmt.Errorf("redismirror: clear %s: %w", userID, err)
	}
	return nil
}

// Lines reads the mirrored cart back; used by operators and tests.
func (m *Mirror) Lines(ctx context.Context, userID string) (map[string]int, error) {
	raw, err := m.client.HGetAll(ctx, m.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redismirror: read %s: %w", userID, err)
	}
	out := make(map[string]int, len(raw))
	for productID, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("redismirror: bad quantity for %s/%s: %w", userID, productID, err)
		}
		out[productID] = n
	}
	return out, nil
}
