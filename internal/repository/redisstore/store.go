// Package redisstore persists items and packages as JSON documents in Redis,
// with sets acting as secondary indexes.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ashendes/rental-inventory/internal/apperr"
	"github.com/ashendes/rental-inventory/internal/repository"
	"github.com/go-redis/redis/v8"
)

const Driver = "redis"

// Options configures the connection
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Store is a repository.Store backed by Redis
type Store struct {
	client   *redis.Client
	items    *itemRepository
	packages *packageRepository
}

var _ repository.Store = (*Store)(nil)

// Open connects to Redis and checks the connection
func Open(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	return New(client), nil
}

// New wraps an existing client
func New(client *redis.Client) *Store {
	return &Store{
		client:   client,
		items:    &itemRepository{client: client},
		packages: &packageRepository{client: client},
	}
}

func (s *Store) Items() repository.ItemRepository       { return s.items }
func (s *Store) Packages() repository.PackageRepository { return s.packages }
func (s *Store) Driver() string                         { return Driver }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func itemKey(id string) string          { return fmt.Sprintf("item:%s", id) }
func childrenKey(id string) string      { return fmt.Sprintf("item:%s:children", id) }
func itemPackagesKey(id string) string  { return fmt.Sprintf("item:%s:packages", id) }
func storeItemsKey(store string) string { return fmt.Sprintf("items:store:%s", store) }
func packageKey(id string) string       { return fmt.Sprintf("package:%s", id) }
func storePackagesKey(s string) string  { return fmt.Sprintf("packages:store:%s", s) }

const (
	allItemsKey    = "items"
	allPackagesKey = "packages"
)

// loadDocs fetches the JSON documents stored under keys in one round trip.
// Keys that no longer exist are skipped.
func loadDocs[T any](ctx context.Context, client *redis.Client, keys []string) ([]*T, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	pipe := client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	docs := make([]*T, 0, len(keys))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		var doc T
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", cmd.Args()[1], err)
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

func loadDoc[T any](ctx context.Context, client *redis.Client, key string) (*T, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &doc, nil
}

func exists(ctx context.Context, client *redis.Client, key string) (bool, error) {
	n, err := client.Exists(ctx, key).Result()
	return n > 0, err
}

func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, redis.Nil) {
		return apperr.NotFound("%s not found", what)
	}
	return apperr.Unexpected("Storage failure", err)
}

func keysOf(prefix func(string) string, ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = prefix(id)
	}
	return keys
}

func sortByCreation[T any](docs []*T, created func(*T) (int64, string)) {
	sort.SliceStable(docs, func(i, j int) bool {
		ti, idi := created(docs[i])
		tj, idj := created(docs[j])
		if ti != tj {
			return ti < tj
		}
		return idi < idj
	})
}
