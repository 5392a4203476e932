package restapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/asgard/mavhub/internal/hub"
	"github.com/asgard/mavhub/internal/mavlink"
)

func TestMessageCacheRoundTrip(t *testing.T) {
	c := newMessageCache()
	raw := append([]byte{mavlink.StartByteV2, 0, 0, 0, 5, 1, 1, 0, 0, 0}, 0, 0)
	msg := mavlink.NewProtocol("test", mavlink.NewPacket(raw))
	c.update(msg)

	all := c.all()
	if len(all) != 1 {
		t.Fatalf("expected one cached message, got %d", len(all))
	}

	entry, ok := c.byName(mavlink.MessageName(0))
	if !ok {
		t.Fatalf("expected cached entry for message 0")
	}
	if entry.Sequence != 5 {
		t.Fatalf("unexpected sequence %d", entry.Sequence)
	}
}

func TestInfoEndpointReturnsBuildInfo(t *testing.T) {
	h := hub.New(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	rest := NewDriver("rest")
	router := NewRouter(h, rest, BuildInfo{Name: "mavhub", Version: "test"})

	req := httptest.NewRequest(http.MethodGet, "/info", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp infoResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Service.Name != "mavhub" {
		t.Fatalf("unexpected service name %q", resp.Service.Name)
	}
}

func TestInjectBeforeRunReturnsError(t *testing.T) {
	rest := NewDriver("rest")
	if err := rest.Inject(1, 1, 0, 0, nil); err == nil {
		t.Fatal("expected error injecting before the driver has started")
	}
}

func TestPostMavlinkRejectsMalformedBody(t *testing.T) {
	h := hub.New(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	rest := NewDriver("rest")
	router := NewRouter(h, rest, BuildInfo{})

	req := httptest.NewRequest(http.MethodPost, "/mavlink", strings.NewReader("not json"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rr.Code)
	}
}
