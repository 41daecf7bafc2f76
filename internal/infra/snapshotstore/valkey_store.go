package snapshotstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/concoursapp/catalogsync/internal/domain/catalog"
)

// ValkeyStore caches the published category list in a Valkey-compatible
// database so several service instances can share one warmed cache.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new cache backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "catalog"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// Load implements catalog.SnapshotCache.
func (s *ValkeyStore) Load(ctx context.Context) ([]catalog.Category, bool, error) {
	cmd := s.client.B().Get().Key(s.key()).Build()
	payload, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var categories []catalog.Category
	if err := json.Unmarshal([]byte(payload), &categories); err != nil {
		return nil, false, err
	}
	return categories, true, nil
}

// Save implements catalog.SnapshotCache.
func (s *ValkeyStore) Save(ctx context.Context, categories []catalog.Category, ttl time.Duration) error {
	payload, err := json.Marshal(categories)
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(s.key()).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) key() string {
	return s.prefix + ":categories"
}

var _ catalog.SnapshotCache = (*ValkeyStore)(nil)
