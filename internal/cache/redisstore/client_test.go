package redisstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/vtile-mapcss/internal/core/observability"
	"github.com/mohammed-shakir/vtile-mapcss/internal/metrics"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr(), WithPoolSize(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestSetGetDel_HappyPath(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	png := []byte{0x89, 'P', 'N', 'G', 0, 1, 2}
	if err := rc.Set(ctx, "vtile:1", png, 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := rc.Get(ctx, "vtile:1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != string(png) {
		t.Fatalf("binary value mangled: %v", got)
	}

	_, ok, err = rc.Get(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}

	if err := rc.Del(ctx, "vtile:1", "missing"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if err := rc.Del(ctx); err != nil {
		t.Fatalf("Del with no keys: %v", err)
	}
	if _, ok, _ := rc.Get(ctx, "vtile:1"); ok {
		t.Fatal("key still present after Del")
	}
}

func TestNew_RequiresAddrAndReachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := New(ctx, ""); err == nil {
		t.Fatal("expected error for empty address")
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()
	if _, err := New(ctx, addr, WithDialTimeout(100*time.Millisecond)); err == nil {
		t.Fatal("expected ping error for closed server")
	}
}

func TestContextDeadline_IsRespected(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, _, err := rc.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error on Get with canceled context")
	}
	if err := rc.Del(ctx, "k"); err == nil {
		t.Fatalf("expected error on Del with canceled context")
	}
}

func TestMetrics_Incremented(t *testing.T) {
	p := metrics.Init(metrics.Config{})
	if err := observability.Init(p.Registerer()); err != nil {
		t.Fatalf("observability init: %v", err)
	}

	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = rc.Set(ctx, "m1", []byte("x"), time.Minute)
	_, _, _ = rc.Get(ctx, "m1")
	_ = rc.Del(ctx, "m1")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, op := range []string{"set", "get", "del"} {
		if !strings.Contains(body, `cache_op_total{op="`+op+`",result="ok"}`) {
			t.Fatalf("missing cache_op_total for %s; got:\n%s", op, body)
		}
	}
	if !strings.Contains(body, `redis_operation_duration_seconds_bucket{op="set"`) {
		t.Fatalf("missing redis_operation_duration_seconds histogram; got:\n%s", body)
	}
}

func TestDelPrefix_OnlyMatchingKeys(t *testing.T) {
	rc, mr := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := range 1200 {
		_ = mr.Set(fmt.Sprintf("vtile:old:%d", i), "x")
	}
	_ = mr.Set("vtile:new:1", "y")

	n, err := rc.DelPrefix(ctx, "vtile:old:")
	if err != nil {
		t.Fatalf("DelPrefix: %v", err)
	}
	if n != 1200 {
		t.Fatalf("deleted=%d want 1200", n)
	}
	if !mr.Exists("vtile:new:1") {
		t.Fatal("key outside the prefix was deleted")
	}
	if keys := mr.Keys(); len(keys) != 1 {
		t.Fatalf("left keys=%d", len(keys))
	}
}
