package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/goforj/tiercache"
	"github.com/goforj/tiercache/tierfake"
)

type video struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func videoID(v video) string { return v.ID }

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestStore(local *tierfake.Local[video], remote *tierfake.Remote[video]) *tiercache.CacheBackedStore[video] {
	return tiercache.New[video](local, remote)
}

func doGet(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetItemServesReadThrough(t *testing.T) {
	local := tierfake.NewLocal[video](videoID)
	remote := tierfake.NewRemote[video](videoID).Put("42", video{ID: "42", Title: "answer"})
	router := New[video](newTestStore(local, remote))

	rec := doGet(t, router, "/items/42", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var got video
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Title != "answer" {
		t.Fatalf("unexpected item: %+v", got)
	}
	local.AssertCalled(t, tierfake.OpPersist, "42", 1)

	rec = doGet(t, router, "/items/42", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on local hit, got %d", rec.Code)
	}
	remote.AssertCalled(t, tierfake.OpFetch, "42", 1)
}

func TestGetItemErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		local  error
		remote error
		status int
		tier   string
		kind   string
	}{
		{"not found", nil, tiercache.NewRemoteError(tiercache.RemoteNotFound, nil), http.StatusNotFound, "remote", "not_found"},
		{"timeout", nil, tiercache.NewRemoteError(tiercache.RemoteTimeout, context.DeadlineExceeded), http.StatusGatewayTimeout, "remote", "timeout"},
		{"transport", nil, tiercache.NewRemoteError(tiercache.RemoteTransport, errors.New("refused")), http.StatusBadGateway, "remote", "transport"},
		{"untyped remote", nil, errors.New("boom"), http.StatusBadGateway, "remote", "unknown"},
		{"local", tiercache.NewLocalError(tiercache.LocalLookupFailed, errors.New("disk")), nil, http.StatusServiceUnavailable, "local", "lookup_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			local := tierfake.NewLocal[video](videoID).FailWith(tc.local)
			remote := tierfake.NewRemote[video](videoID)
			if tc.remote != nil {
				remote.FailWith(tc.remote)
			}
			rec := doGet(t, New[video](newTestStore(local, remote)), "/items/7", nil)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d body=%s", tc.status, rec.Code, rec.Body.String())
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if body["tier"] != tc.tier || body["kind"] != tc.kind || body["error"] == "" {
				t.Fatalf("unexpected error body: %v", body)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	router := New[video](newTestStore(tierfake.NewLocal[video](videoID), tierfake.NewRemote[video](videoID)))

	rec := doGet(t, router, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}

	rec = doGet(t, router, "/items/missing", http.Header{RequestIDHeader: []string{"abc-123"}})
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}
