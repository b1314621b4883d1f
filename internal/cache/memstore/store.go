// Package memstore is an in-process LRU tier for rendered tiles.
package memstore

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultSize = 1024

type Store struct {
	lru *expirable.LRU[string, []byte]
}

// New sizes the LRU to n entries. Entries expire after ttl; zero keeps them
// until evicted.
func New(n int, ttl time.Duration) *Store {
	if n <= 0 {
		n = DefaultSize
	}
	return &Store{lru: expirable.NewLRU[string, []byte](n, nil, ttl)}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, ok := s.lru.Get(key)
	return v, ok, nil
}

// Set ignores the per-key ttl; the LRU applies one expiry to all entries.
func (s *Store) Set(ctx context.Context, key string, val []byte, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.lru.Add(key, val)
	return nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, k := range keys {
		s.lru.Remove(k)
	}
	return nil
}

// DelPrefix removes every key starting with prefix.
func (s *Store) DelPrefix(ctx context.Context, prefix string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	for _, k := range s.lru.Keys() {
		if strings.HasPrefix(k, prefix) && s.lru.Remove(k) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Len() int { return s.lru.Len() }
