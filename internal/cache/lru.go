package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUStore is an in-process store with per-entry TTL.
type LRUStore struct {
	lru *expirable.LRU[string, []byte]
}

// NewLRUStore keeps at most size entries for ttl each.
func NewLRUStore(size int, ttl time.Duration) *LRUStore {
	if size < 1 {
		size = 1
	}
	return &LRUStore{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (s *LRUStore) Get(_ context.Context, key string) ([]byte, bool) {
	return s.lru.Get(key)
}

func (s *LRUStore) Set(_ context.Context, key string, value []byte) error {
	s.lru.Add(key, value)
	return nil
}

func (s *LRUStore) Purge(context.Context) error {
	s.lru.Purge()
	return nil
}

// Len reports the number of live entries.
func (s *LRUStore) Len() int { return s.lru.Len() }
