// Package redisstore keeps the news cache in Redis.
//
// Each cached row is a JSON value under newsgrade:item:<external id>. A
// sorted set per category, scored by write time in unix millis, indexes
// the rows so freshness reads are a single range query.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/TobiSchelling/NewsGrade/internal/news"
)

const keyPrefix = "newsgrade:"

type record struct {
	Category  string    `json:"category"`
	Item      news.Item `json:"item"`
	CreatedAt int64     `json:"created_at"`
}

// Store is a Redis-backed news cache.
type Store struct {
	rdb *redis.Client
}

// New connects to Redis at addr.
func New(ctx context.Context, addr string) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &Store{rdb: rdb}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func itemKey(externalID string) string { return keyPrefix + "item:" + externalID }
func indexKey(category string) string  { return keyPrefix + "cache:" + category }

// UpsertItems writes items under category, resetting their write time.
func (s *Store) UpsertItems(ctx context.Context, category string, items []news.Item, createdAt time.Time) error {
	if len(items) == 0 {
		return nil
	}

	created := createdAt.UnixMilli()
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, it := range items {
			id := news.ExternalID(category, it.ID)
			data, err := json.Marshal(record{Category: category, Item: it, CreatedAt: created})
			if err != nil {
				return fmt.Errorf("encoding %s: %w", id, err)
			}
			pipe.Set(ctx, itemKey(id), data, 0)
			pipe.ZAdd(ctx, indexKey(category), &redis.Z{Score: float64(created), Member: id})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing news cache: %w", err)
	}
	return nil
}

// FreshItems returns the newest-published items of category written at or
// after since. An empty region matches every region.
func (s *Store) FreshItems(ctx context.Context, category, region string, since time.Time, limit int) ([]news.Item, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, indexKey(category), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("reading cache index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = itemKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading cached items: %w", err)
	}

	items := make([]news.Item, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			continue
		}
		if region != "" && rec.Item.Region != region {
			continue
		}
		items = append(items, rec.Item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
