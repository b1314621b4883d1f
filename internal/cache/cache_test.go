package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohammed-shakir/vtile-mapcss/internal/cache/memstore"
)

type brokenStore struct{ err error }

func (b brokenStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, b.err }
func (b brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return b.err
}
func (b brokenStore) Del(context.Context, ...string) error { return b.err }

func TestTiered_BackfillsFasterTier(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New(8, 0)
	shared := memstore.New(8, 0)
	tc := NewTiered(nil, Tier{Name: "memory", Store: mem}, Tier{Name: "redis", Store: shared})

	if err := shared.Set(ctx, "k", []byte("png"), 0); err != nil {
		t.Fatal(err)
	}
	val, tier, ok := tc.Lookup(ctx, "k", time.Minute)
	if !ok || tier != "redis" || string(val) != "png" {
		t.Fatalf("lookup = %q %q %v", val, tier, ok)
	}
	if _, ok, _ := mem.Get(ctx, "k"); !ok {
		t.Fatal("memory tier was not backfilled")
	}
	if _, tier, _ := tc.Lookup(ctx, "k", time.Minute); tier != "memory" {
		t.Fatalf("second lookup served by %q", tier)
	}
}

func TestTiered_BrokenTierIsAMiss(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("down")
	mem := memstore.New(8, 0)
	tc := NewTiered(nil, Tier{Name: "memory", Store: mem}, Tier{Name: "redis", Store: brokenStore{boom}}, Tier{Name: "nil"})

	if tc.Len() != 2 {
		t.Fatalf("nil store should be dropped, len=%d", tc.Len())
	}
	if _, _, ok := tc.Lookup(ctx, "k", 0); ok {
		t.Fatal("expected miss")
	}

	err := tc.Set(ctx, "k", []byte("v"), 0)
	if !errors.Is(err, boom) {
		t.Fatalf("Set err=%v want %v", err, boom)
	}
	// the healthy tier still got the write
	if v, ok, _ := tc.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("Get = %q %v", v, ok)
	}
	if err := tc.Del(ctx, "k"); !errors.Is(err, boom) {
		t.Fatalf("Del err=%v", err)
	}
	if _, ok, _ := mem.Get(ctx, "k"); ok {
		t.Fatal("memory tier not cleared")
	}
	if err := tc.Del(ctx); err != nil {
		t.Fatalf("Del with no keys: %v", err)
	}
}

func TestTiered_DelPrefixSkipsPlainStores(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New(8, 0)
	_ = mem.Set(ctx, "p:1", []byte("a"), 0)
	_ = mem.Set(ctx, "q:1", []byte("b"), 0)
	tc := NewTiered(nil, Tier{Name: "memory", Store: mem}, Tier{Name: "plain", Store: brokenStore{errors.New("unused")}})

	n, err := tc.DelPrefix(ctx, "p:")
	if err != nil || n != 1 {
		t.Fatalf("DelPrefix = %d, %v", n, err)
	}
	if _, ok, _ := mem.Get(ctx, "q:1"); !ok {
		t.Fatal("q:1 removed")
	}
}
