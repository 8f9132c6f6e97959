package footballapi_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"football/internal/footballapi"
)

// fakeClock advances only when slept on.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func newClient(t *testing.T, baseURL string, clock footballapi.Clock, calls, maxRetries int) *footballapi.Client {
	t.Helper()
	c, err := footballapi.NewClient(footballapi.Config{
		BaseURL:    baseURL,
		APIKey:     "secret",
		Calls:      calls,
		Period:     time.Minute,
		MaxRetries: maxRetries,
		BaseDelay:  2 * time.Second,
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func equalDurations(a, b []time.Duration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGet_SendsAuthHeaderAndParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Auth-Token"); got != "secret" {
			t.Errorf("X-Auth-Token = %q", got)
		}
		if r.URL.Path != "/competitions" || r.URL.Query().Get("plan") != "TIER_ONE" {
			t.Errorf("unexpected request %s", r.URL)
		}
		fmt.Fprint(w, `{"count": 1, "competitions": [{"id": 2001}]}`)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, newFakeClock(), 10, 5)
	doc, err := c.Competitions(context.Background(), "TIER_ONE")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := doc["competitions"].([]any); !ok {
		t.Errorf("competitions missing from %v", doc)
	}
}

func TestGet_RateLimitedBacksOffThenFails(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	clock := newFakeClock()
	c := newClient(t, srv.URL, clock, 100, 3)

	_, err := c.Get(context.Background(), "competitions", nil)
	if !errors.Is(err, footballapi.ErrRateLimitExhausted) {
		t.Fatalf("expected ErrRateLimitExhausted, got %v", err)
	}
	if got := hits.Load(); got != 4 {
		t.Errorf("hits = %d, want 4 (1 send + 3 retries)", got)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if got := clock.Sleeps(); !equalDurations(got, want) {
		t.Errorf("sleeps = %v, want %v", got, want)
	}
}

func TestGet_RateLimitedThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"matches": []}`)
	}))
	defer srv.Close()

	clock := newFakeClock()
	c := newClient(t, srv.URL, clock, 100, 5)

	if _, err := c.MatchesToday(context.Background()); err != nil {
		t.Fatalf("get: %v", err)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if got := clock.Sleeps(); !equalDurations(got, want) {
		t.Errorf("sleeps = %v, want %v", got, want)
	}
}

func TestGet_RetriesPassThroughLimiter(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	clock := newFakeClock()
	c := newClient(t, srv.URL, clock, 1, 5)

	if _, err := c.Get(context.Background(), "matches", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	// 2s backoff, then the quota of one call per minute holds the retry
	// until the first call leaves the window.
	want := []time.Duration{2 * time.Second, 58 * time.Second}
	if got := clock.Sleeps(); !equalDurations(got, want) {
		t.Errorf("sleeps = %v, want %v", got, want)
	}
}

func TestGet_PermanentErrorsFailImmediately(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, footballapi.ErrUnauthorized},
		{http.StatusNotFound, footballapi.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				http.Error(w, `{"message": "nope"}`, tc.status)
			}))
			defer srv.Close()

			clock := newFakeClock()
			c := newClient(t, srv.URL, clock, 10, 5)

			_, err := c.Get(context.Background(), "competitions/1", nil)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !footballapi.IsPermanent(err) {
				t.Error("expected permanent error")
			}
			if hits.Load() != 1 {
				t.Errorf("hits = %d, want 1", hits.Load())
			}
			if len(clock.Sleeps()) != 0 {
				t.Errorf("expected no delay, got %v", clock.Sleeps())
			}
		})
	}
}

func TestGet_OtherStatusIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, newFakeClock(), 10, 5)
	_, err := c.Get(context.Background(), "competitions", nil)

	var statusErr *footballapi.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected StatusError 500, got %v", err)
	}
	if !footballapi.IsPermanent(err) {
		t.Error("5xx is not retried")
	}
}

func TestGet_NetworkErrorReturnedImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	clock := newFakeClock()
	c := newClient(t, url, clock, 10, 5)

	_, err := c.Get(context.Background(), "competitions", nil)
	if !errors.Is(err, footballapi.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if len(clock.Sleeps()) != 0 {
		t.Errorf("expected no retry delay, got %v", clock.Sleeps())
	}
}

func TestGetPaginated_StopsOnFailingPage(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			items := ""
			for i := 0; i < 10; i++ {
				if i > 0 {
					items += ","
				}
				items += fmt.Sprintf(`{"id": %d}`, i)
			}
			fmt.Fprintf(w, `{"content": [%s], "next": "%s/items?page=2"}`, items, srv.URL)
		case "2":
			http.Error(w, "down", http.StatusBadGateway)
		case "3":
			t.Error("page 3 must not be requested")
			fmt.Fprint(w, `{"content": [{"id": 99}]}`)
		}
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, newFakeClock(), 10, 5)
	items, err := c.GetPaginated(context.Background(), "items", nil)
	if err != nil {
		t.Fatalf("expected partial result without error, got %v", err)
	}
	if len(items) != 10 {
		t.Errorf("items = %d, want 10", len(items))
	}
}

func TestGetPaginated_FollowsNextUntilAbsent(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			fmt.Fprintf(w, `{"content": [1, 2], "next": "%s/items?page=2"}`, srv.URL)
		case "2":
			fmt.Fprintf(w, `{"content": [3], "next": "%s/items?page=3"}`, srv.URL)
		case "3":
			fmt.Fprint(w, `{"content": [4, 5]}`)
		}
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, newFakeClock(), 10, 5)
	items, err := c.GetPaginated(context.Background(), "items", nil)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("items = %v", items)
	}
	for i, item := range items {
		if fmt.Sprint(item) != fmt.Sprint(i+1) {
			t.Errorf("items[%d] = %v, want %d", i, item, i+1)
		}
	}
}

func TestGet_ZeroMaxRetriesDisablesRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	clock := newFakeClock()
	_, err := newClient(t, srv.URL, clock, 100, 0).Get(context.Background(), "competitions", nil)
	if !errors.Is(err, footballapi.ErrRateLimitExhausted) {
		t.Fatalf("expected ErrRateLimitExhausted, got %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("hits = %d, want 1", got)
	}
	if len(clock.Sleeps()) != 0 {
		t.Errorf("sleeps = %v, want none", clock.Sleeps())
	}
}

func TestGet_OversizedBodyIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 16<<20+1))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL, newFakeClock(), 10, 5).Get(context.Background(), "competitions", nil)
	if !errors.Is(err, footballapi.ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", err)
	}
}

func TestGetPaginated_StopsOnRepeatedPage(t *testing.T) {
	var hits atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprintf(w, `{"content": [1], "next": "%s/items?page=2"}`, srv.URL)
	}))
	defer srv.Close()

	items, err := newClient(t, srv.URL, newFakeClock(), 10, 5).GetPaginated(context.Background(), "items", nil)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if len(items) != 2 || hits.Load() != 2 {
		t.Errorf("items = %v, hits = %d, want 2 each", items, hits.Load())
	}
}

func TestGetPaginated_RefusesForeignHost(t *testing.T) {
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("foreign host called with token %q", r.Header.Get("X-Auth-Token"))
		fmt.Fprint(w, `{"content": [99]}`)
	}))
	defer foreign.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"content": [1, 2], "next": "%s/items?page=2"}`, foreign.URL)
	}))
	defer srv.Close()

	items, err := newClient(t, srv.URL, newFakeClock(), 10, 5).GetPaginated(context.Background(), "items", nil)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("items = %v, want the first page only", items)
	}
}

func TestGetPaginated_PageLimit(t *testing.T) {
	var hits atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		fmt.Fprintf(w, `{"content": [%d], "next": "%s/items?page=%d"}`, n, srv.URL, n+1)
	}))
	defer srv.Close()

	items, err := newClient(t, srv.URL, newFakeClock(), 1000, 5).GetPaginated(context.Background(), "items", nil)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if got := hits.Load(); got != 1000 || len(items) != 1000 {
		t.Errorf("hits = %d, items = %d, want 1000", got, len(items))
	}
}

func TestGetPaginated_FailingFirstPageIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	items, err := newClient(t, srv.URL, newFakeClock(), 10, 5).GetPaginated(context.Background(), "items", nil)
	if !errors.Is(err, footballapi.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if items != nil {
		t.Errorf("items = %v, want none", items)
	}
}
