package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hanpama/graphdesk/internal/fetcher"
	"github.com/hanpama/graphdesk/internal/storage"
	"github.com/hanpama/graphdesk/internal/workbench"
)

func echoFetcher(result any) fetcher.Fetcher {
	return func(ctx context.Context, params fetcher.Params, opts fetcher.Opts) (fetcher.Response, error) {
		return fetcher.Single{Result: result}, nil
	}
}

func newTestHandler(t *testing.T, opts ...Option) (*Handler, *workbench.Store) {
	t.Helper()
	store, err := workbench.New(workbench.Options{
		Fetcher:      echoFetcher(map[string]any{"data": map[string]any{"hello": "world"}}),
		Storage:      storage.NewAPI(storage.NewMemStore()),
		DefaultQuery: "{ hello }",
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(store.Close)
	return New(store, opts...), store
}

func do(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	var res stateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return res
}

func TestStateSnapshot(t *testing.T) {
	h, _ := newTestHandler(t)
	w := do(t, h, "GET", "/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	res := decodeState(t, w)
	if len(res.Tabs) != 1 || res.ActiveIndex != 0 {
		t.Fatalf("fresh state should have one active tab: %+v", res)
	}
	if res.Query != "{ hello }" {
		t.Fatalf("query %q", res.Query)
	}
}

func TestTabLifecycle(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, "POST", "/tabs/add", "")
	if w.Code != http.StatusOK {
		t.Fatalf("add status %d", w.Code)
	}
	res := decodeState(t, w)
	if len(res.Tabs) != 2 || res.ActiveIndex != 1 {
		t.Fatalf("after add: %+v", res)
	}

	w = do(t, h, "POST", "/tabs/change", `{"index":0}`)
	res = decodeState(t, w)
	if res.ActiveIndex != 0 {
		t.Fatalf("after change: %+v", res)
	}

	w = do(t, h, "POST", "/tabs/close", `{"index":5}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range close status %d", w.Code)
	}

	w = do(t, h, "POST", "/tabs/close", `{"index":1}`)
	res = decodeState(t, w)
	if len(res.Tabs) != 1 {
		t.Fatalf("after close: %+v", res)
	}
}

func TestEditorsUpdateDerivesOperationName(t *testing.T) {
	h, _ := newTestHandler(t)
	w := do(t, h, "POST", "/editors", `{"query":"query Greet { hello }"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	res := decodeState(t, w)
	if res.OperationName != "Greet" {
		t.Fatalf("operation name %q", res.OperationName)
	}
}

func TestRunProducesResponse(t *testing.T) {
	h, store := newTestHandler(t)
	w := do(t, h, "POST", "/run", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if strings.Contains(store.ResponseEditor().GetValue(), "world") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("response never arrived: %q", store.ResponseEditor().GetValue())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestThemeEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, "POST", "/theme", `{"theme":"sepia"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown theme status %d", w.Code)
	}

	w = do(t, h, "POST", "/theme", `{"theme":"dark"}`)
	res := decodeState(t, w)
	if res.Theme != "dark" {
		t.Fatalf("theme %q", res.Theme)
	}
}

func TestRouting(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, "GET", "/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown path status %d", w.Code)
	}

	w = do(t, h, "GET", "/run", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method status %d", w.Code)
	}
}

func TestCORSAndPreflight(t *testing.T) {
	h, _ := newTestHandler(t, WithCORS("*"))

	req := httptest.NewRequest("GET", "/state", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	pre := httptest.NewRequest("OPTIONS", "/state", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	if pw.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", pw.Code)
	}
	if pw.Header().Get("Access-Control-Allow-Headers") != "X-Test" {
		t.Fatalf("preflight missing allow headers")
	}
}

func TestMaxBodyBytes(t *testing.T) {
	h, _ := newTestHandler(t, WithMaxBodyBytes(10))
	w := do(t, h, "POST", "/editors", `{"query":"12345678901234567890"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status %d", w.Code)
	}
}
