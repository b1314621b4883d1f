package kafkaconsumer

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// tsDedupe drops events that are not newer than the last applied event
// for the same key.
type tsDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, time.Time]
}

func newTSDedupe(size int) *tsDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, time.Time](size)
	return &tsDedupe{lru: c}
}

func (d *tsDedupe) seen(key string, ts time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lru.Get(key)
	return ok && !ts.After(last)
}

func (d *tsDedupe) record(key string, ts time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && !ts.After(last) {
		return
	}
	d.lru.Add(key, ts)
}
