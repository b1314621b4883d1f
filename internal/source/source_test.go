package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb/maptile"
)

func TestTile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		z, x, y int
		ok      bool
	}{
		{"root", 0, 0, 0, true},
		{"last column", 3, 7, 7, true},
		{"x overflow", 3, 8, 0, false},
		{"y overflow", 3, 0, 8, false},
		{"negative", 2, -1, 0, false},
		{"zoom over limit", 15, 0, 0, false},
		{"negative zoom", -1, 0, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Tile(tc.z, tc.x, tc.y, 14)
			if tc.ok {
				if err != nil {
					t.Fatalf("unexpected err: %v", err)
				}
				if got != maptile.New(uint32(tc.x), uint32(tc.y), maptile.Zoom(tc.z)) {
					t.Fatalf("got %v", got)
				}
				return
			}
			if !errors.Is(err, ErrInvalidTile) {
				t.Fatalf("err=%v want ErrInvalidTile", err)
			}
		})
	}
}

func TestHTTP_FetchStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/tiles/2/1/3.mvt":
			_, _ = w.Write([]byte("tile-bytes"))
		case "/tiles/2/0/0.mvt":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("kaput"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src, err := NewHTTP(srv.Client(), srv.URL+"/tiles/{z}/{x}/{y}.mvt", WithHeader("X-Api-Key", "secret"))
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	ctx := context.Background()

	b, err := src.Fetch(ctx, maptile.New(1, 3, 2))
	if err != nil || string(b) != "tile-bytes" {
		t.Fatalf("fetch = %q, %v", b, err)
	}
	if _, err := src.Fetch(ctx, maptile.New(2, 2, 2)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
	_, err = src.Fetch(ctx, maptile.New(0, 0, 2))
	if err == nil || !strings.Contains(err.Error(), "upstream status 500: kaput") {
		t.Fatalf("err=%v", err)
	}
}

func TestNewHTTP_TemplateNeedsPlaceholders(t *testing.T) {
	if _, err := NewHTTP(nil, "http://example.com/{z}/{x}.pbf"); err == nil {
		t.Fatal("expected error for template without {y}")
	}
	h, err := NewHTTP(nil, "http://example.com/{z}/{x}/{y}.pbf?v={z}")
	if err != nil {
		t.Fatal(err)
	}
	if got := h.URL(maptile.New(5, 6, 7)); got != "http://example.com/7/5/6.pbf?v=7" {
		t.Fatalf("url=%s", got)
	}
}

func TestDir_FetchProbesExtensions(t *testing.T) {
	root := t.TempDir()
	write := func(rel, body string) {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("4/3/2.mvt", "mvt")
	write("4/3/5.pbf", "pbf")

	d, err := NewDir(root)
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	ctx := context.Background()
	for tile, want := range map[maptile.Tile]string{
		maptile.New(3, 2, 4): "mvt",
		maptile.New(3, 5, 4): "pbf",
	} {
		b, err := d.Fetch(ctx, tile)
		if err != nil || string(b) != want {
			t.Fatalf("%v: got %q, %v", tile, b, err)
		}
	}
	if _, err := d.Fetch(ctx, maptile.New(0, 0, 4)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestOpen_PicksKind(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Dir); !ok {
		t.Fatalf("got %T want *Dir", s)
	}
	s, err = Open("https://tiles.example.com/{z}/{x}/{y}.mvt", http.DefaultClient)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*HTTP); !ok {
		t.Fatalf("got %T want *HTTP", s)
	}
	if _, err := Open("  ", nil); err == nil {
		t.Fatal("expected error for empty location")
	}
	if _, err := Open(filepath.Join(root, "nope"), nil); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestParseTile(t *testing.T) {
	got, err := ParseTile(" 14/8800/5373 ", 18)
	if err != nil || got != maptile.New(8800, 5373, 14) {
		t.Fatalf("ParseTile = %v, %v", got, err)
	}
	for _, bad := range []string{"14/8800", "a/b/c", "3/8/0", "19/0/0"} {
		if _, err := ParseTile(bad, 18); !errors.Is(err, ErrInvalidTile) {
			t.Errorf("ParseTile(%q) err=%v want ErrInvalidTile", bad, err)
		}
	}
}
