package ecmwf

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/rtm0/erawp/internal/mars"
)

// fakeArchive mimics the request lifecycle of the web API.
type fakeArchive struct {
	t       *testing.T
	payload []byte
	polls   int // number of polls answered with "active"
	reject  bool

	mu        sync.Mutex
	submitted []map[string]string
	headers   http.Header
	polled    int
	deleted   int
}

func (a *fakeArchive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/datasets/interim/requests":
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.t.Errorf("could not decode submitted request: %v", err)
		}
		a.submitted = append(a.submitted, req)
		a.headers = r.Header.Clone()
		w.Header().Set("Location", "/v1/datasets/interim/requests/job-1")
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"name":"job-1","status":"queued","messages":["queued by test"]}`)
	case r.Method == http.MethodGet && r.URL.Path == "/v1/datasets/interim/requests/job-1":
		a.polled++
		if a.reject {
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, `{"name":"job-1","status":"rejected","reason":"bad param"}`)
			return
		}
		if a.polled <= a.polls {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusAccepted)
			io.WriteString(w, `{"name":"job-1","status":"active"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"name":   "job-1",
			"status": "complete",
			"result": map[string]any{"href": "/data/job-1.nc", "size": len(a.payload)},
		})
	case r.Method == http.MethodDelete && r.URL.Path == "/v1/datasets/interim/requests/job-1":
		a.deleted++
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && r.URL.Path == "/data/job-1.nc":
		w.Write(a.payload)
	default:
		a.t.Errorf("unexpected call %s %s", r.Method, r.URL)
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(logger, Config{URL: srv.URL + "/v1", Key: "secret", Email: "me@example.com"}, Options{PollInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestRetrieve(t *testing.T) {
	a := &fakeArchive{t: t, payload: []byte("CDF\x01netcdf bytes"), polls: 2}
	srv := httptest.NewServer(a)
	defer srv.Close()
	c := newTestClient(t, srv)

	req, err := mars.Preset("sfc")
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(t.TempDir(), "test_sfc.nc")
	req = req.With(mars.KeyTarget, target)

	res, err := c.Retrieve(context.Background(), req)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(a.submitted) != 1 {
		t.Fatalf("request submitted %d times, want exactly once", len(a.submitted))
	}
	want := map[string]string(req)
	if !reflect.DeepEqual(a.submitted[0], want) {
		t.Errorf("unexpected submitted request:\ngot  %v\nwant %v", a.submitted[0], want)
	}
	if got := a.headers.Get("X-ECMWF-KEY"); got != "secret" {
		t.Errorf("unexpected key header %q", got)
	}
	if got := a.headers.Get("From"); got != "me@example.com" {
		t.Errorf("unexpected From header %q", got)
	}
	if a.polled != 3 {
		t.Errorf("unexpected number of polls: got %d, want 3", a.polled)
	}
	if a.deleted != 1 {
		t.Errorf("server side request deleted %d times, want 1", a.deleted)
	}
	if res.Size != int64(len(a.payload)) {
		t.Errorf("unexpected result size %d", res.Size)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("target not written: %v", err)
	}
	if string(got) != string(a.payload) {
		t.Errorf("unexpected target contents %q", got)
	}
}

func TestRetrieveRejected(t *testing.T) {
	a := &fakeArchive{t: t, reject: true}
	srv := httptest.NewServer(a)
	defer srv.Close()
	c := newTestClient(t, srv)

	target := filepath.Join(t.TempDir(), "x.nc")
	req := mars.Request{"dataset": "interim", "target": target}
	_, err := c.Retrieve(context.Background(), req)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected an APIError, got %v", err)
	}
	if apiErr.Status != "rejected" || apiErr.Reason != "bad param" {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Errorf("target must not exist after a rejected request")
	}
	if len(a.submitted) != 1 {
		t.Errorf("request submitted %d times, want exactly once", len(a.submitted))
	}
}

func TestRetrieveHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":"invalid key"}`)
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	_, err := c.Retrieve(context.Background(), mars.Request{"dataset": "interim", "target": filepath.Join(t.TempDir(), "x.nc")})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected an APIError, got %v", err)
	}
	if apiErr.Code != http.StatusForbidden || apiErr.Reason != "invalid key" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestRetrieveShortTransfer(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/datasets/interim/requests":
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, `{"status":"complete","result":{"href":"`+srv.URL+`/data.nc","size":100}}`)
		case "/data.nc":
			io.WriteString(w, "short")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	target := filepath.Join(t.TempDir(), "x.nc")
	if _, err := c.Retrieve(context.Background(), mars.Request{"dataset": "interim", "target": target}); err == nil {
		t.Fatal("expected an error for an incomplete transfer")
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Errorf("partial target must be removed")
	}
}

func TestRetrieveCanceled(t *testing.T) {
	a := &fakeArchive{t: t, polls: 1 << 30}
	srv := httptest.NewServer(a)
	defer srv.Close()
	c := newTestClient(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Retrieve(ctx, mars.Request{"dataset": "interim", "target": filepath.Join(t.TempDir(), "x.nc")})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRetrieveMissingDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call %s %s", r.Method, r.URL)
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	if _, err := c.Retrieve(context.Background(), mars.Request{"target": "x.nc"}); err == nil {
		t.Fatal("expected an error for a request without dataset")
	}
}

func TestNewClientInvalidURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := NewClient(logger, Config{URL: "api.ecmwf.int"}, Options{}); err == nil {
		t.Fatal("expected an error for a relative url")
	}
}

func TestByteCount(t *testing.T) {
	f := func(n int64, want string) {
		t.Helper()
		if got := ByteCount(n).String(); got != want {
			t.Errorf("ByteCount(%d): got %q, want %q", n, got, want)
		}
	}

	f(12, "12B")
	f(1023, "1023B")
	f(1536, "1KiB")
	f(4096, "4KiB")
	f(5<<20, "5MiB")
	f(3<<30, "3GiB")
}

func TestRetrievePollInterval(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			mu.Lock()
			polls++
			mu.Unlock()
		}
		w.Header().Set("Location", "/v1/datasets/interim/requests/job-1")
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"status":"active"}`)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(logger, Config{URL: srv.URL + "/v1", Key: "secret"}, Options{PollInterval: 100 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 350*time.Millisecond)
	defer cancel()
	if _, err := c.Retrieve(ctx, mars.Request{"dataset": "interim", "target": filepath.Join(t.TempDir(), "x.nc")}); err == nil {
		t.Fatal("expected the retrieval to time out")
	}

	mu.Lock()
	defer mu.Unlock()
	if polls > 4 {
		t.Errorf("Retry-After: 0 must not shorten the poll interval: %d polls in 350ms", polls)
	}
}

func TestRetrieveCompleteWithoutResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.Header().Set("Location", "/v1/datasets/interim/requests/job-1")
			w.WriteHeader(http.StatusAccepted)
			io.WriteString(w, `{"status":"queued"}`)
		case http.MethodGet:
			io.WriteString(w, `{"status":"complete"}`)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.Retrieve(ctx, mars.Request{"dataset": "interim", "target": filepath.Join(t.TempDir(), "x.nc")})
	if err == nil {
		t.Fatal("expected an error for a complete request without result")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("retrieval kept polling a complete request: %v", err)
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2016, 2, 1, 12, 0, 0, 0, time.UTC)
	f := func(v string, want time.Duration, wantOK bool) {
		t.Helper()
		got, ok := retryAfter(v, now)
		if ok != wantOK || got != want {
			t.Errorf("retryAfter(%q): got (%v, %v), want (%v, %v)", v, got, ok, want, wantOK)
		}
	}

	f("", 0, false)
	f("0", 0, true)
	f("30", 30*time.Second, true)
	f("-1", 0, false)
	f("soon", 0, false)
	f("Mon, 01 Feb 2016 12:01:00 GMT", time.Minute, true)
}

func TestClampPoll(t *testing.T) {
	c := &Client{pollInterval: 5 * time.Second}
	f := func(d, want time.Duration) {
		t.Helper()
		if got := c.clampPoll(d); got != want {
			t.Errorf("clampPoll(%v): got %v, want %v", d, got, want)
		}
	}

	f(0, 5*time.Second)
	f(-time.Minute, 5*time.Second)
	f(30*time.Second, 30*time.Second)
	f(time.Hour, maxPollInterval)
}
