package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestNewOutbound_Options(t *testing.T) {
	c := NewOutbound()
	if c.Timeout != DefaultTimeout {
		t.Fatalf("timeout=%v want %v", c.Timeout, DefaultTimeout)
	}

	c = NewOutbound(WithTimeout(2*time.Second), WithMaxIdlePerHost(8), WithTimeout(0))
	if c.Timeout != 2*time.Second {
		t.Fatalf("timeout=%v want 2s", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport is %T", c.Transport)
	}
	if tr.MaxIdleConnsPerHost != 8 {
		t.Fatalf("idle per host=%d want 8", tr.MaxIdleConnsPerHost)
	}
}
