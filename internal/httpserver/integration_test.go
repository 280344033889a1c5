package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/go-microservice-template/internal/apihttp"
	"github.com/keithlinneman/go-microservice-template/internal/health"
	"github.com/keithlinneman/go-microservice-template/internal/httpmw"
	"github.com/keithlinneman/go-microservice-template/internal/httpserver"
	"github.com/keithlinneman/go-microservice-template/internal/log"
	"github.com/keithlinneman/go-microservice-template/internal/metrics"
	"github.com/keithlinneman/go-microservice-template/internal/platformclient"
	"github.com/keithlinneman/go-microservice-template/internal/ratelimit"
	"github.com/keithlinneman/go-microservice-template/internal/version"
)

// peer records the headers of every request and answers 404 for item 9
type peer struct {
	mu   sync.Mutex
	seen []http.Header
}

func (p *peer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.seen = append(p.seen, r.Header.Clone())
	p.mu.Unlock()

	if r.URL.Path == "/items/9" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"id":"`+strings.TrimPrefix(r.URL.Path, "/items/")+`"}`)
}

func (p *peer) last() http.Header {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen[len(p.seen)-1]
}

// TestIntegration_FullStack wires NewHandler the way main does (metrics,
// rate limiter, platform client factory, application routes) against a
// live peer service.
func TestIntegration_FullStack(t *testing.T) {
	pr := &peer{}
	peerSrv := httptest.NewServer(pr)
	t.Cleanup(peerSrv.Close)

	m := metrics.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	limiter := ratelimit.New(ctx, ratelimit.WithRate(1000, 1000))

	factory := platformclient.NewFactory(platformclient.FactoryOptions{
		AllowList: []string{"miauserid", "x-request-id"},
		Observer:  m,
	})

	var gate health.ShutdownGate
	api := apihttp.NewAPI(log.Nop(), version.Get())

	handler := httpserver.NewHandler(httpserver.Options{
		Logger:      log.Nop(),
		Readiness:   gate.Probe(),
		Factory:     factory,
		MetricsMW:   m.Middleware,
		RateLimitMW: limiter.Middleware,
		OnPanic:     m.IncHttpPanic,
		APIRoutes: func(r chi.Router) {
			api.RegisterRoutes(r)
			// forwards to the peer with the request's platform client
			r.Get("/proxy/items/{id}", func(w http.ResponseWriter, r *http.Request) {
				c := platformclient.FromContext(r.Context())
				resp, err := c.GetByID(r.Context(), peerSrv.URL+"/items", chi.URLParam(r, "id"))
				if err != nil {
					var se *platformclient.StatusError
					if errors.As(err, &se) {
						httpmw.WriteError(w, http.StatusBadGateway, err.Error())
						return
					}
					httpmw.WriteError(w, http.StatusInternalServerError, err.Error())
					return
				}
				defer resp.Body.Close()
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.Copy(w, resp.Body)
			})
		},
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	get := func(t *testing.T, path string, hdr map[string]string) (int, string) {
		t.Helper()
		req, _ := http.NewRequest(http.MethodGet, srv.URL+path, http.NoBody)
		for k, v := range hdr {
			req.Header.Set(k, v)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	t.Run("healthz", func(t *testing.T) {
		code, body := get(t, httpmw.PathHealthz, nil)
		if code != http.StatusOK || strings.TrimSpace(body) != `{"statusOk":true}` {
			t.Fatalf("status = %d body = %q", code, body)
		}
	})

	t.Run("hello", func(t *testing.T) {
		code, body := get(t, "/", nil)
		if code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		var msg apihttp.MessageResponse
		if err := json.Unmarshal([]byte(body), &msg); err != nil || msg.Message != "Hello World!" {
			t.Fatalf("body = %q (%v)", body, err)
		}
	})

	t.Run("forwards allow-listed headers only", func(t *testing.T) {
		code, body := get(t, "/proxy/items/1", map[string]string{
			"miauserid":     "abc",
			"miausergroups": "g1",
			"x-request-id":  "r1",
		})
		if code != http.StatusOK || body != `{"id":"1"}` {
			t.Fatalf("status = %d body = %q", code, body)
		}

		seen := pr.last()
		if got := seen.Get("miauserid"); got != "abc" {
			t.Errorf("peer miauserid = %q, want abc", got)
		}
		if got := seen.Get("x-request-id"); got != "r1" {
			t.Errorf("peer x-request-id = %q, want r1", got)
		}
		if got := seen.Get("miausergroups"); got != "" {
			t.Errorf("peer miausergroups = %q, want it excluded", got)
		}
	})

	t.Run("peer 404 surfaces verb url and status", func(t *testing.T) {
		code, body := get(t, "/proxy/items/9", nil)
		if code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", code)
		}
		for _, want := range []string{"GET BY ID", peerSrv.URL + "/items/9", "404"} {
			if !strings.Contains(body, want) {
				t.Errorf("body %q missing %q", body, want)
			}
		}
	})

	t.Run("metrics observe routes and platform calls", func(t *testing.T) {
		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		out := rec.Body.String()
		for _, want := range []string{
			`http_requests_total{method="GET",route="/proxy/items/{id}",status="200"} 1`,
			`platform_client_requests_total{status="404",verb="GET BY ID"} 1`,
		} {
			if !strings.Contains(out, want) {
				t.Errorf("scrape missing %s", want)
			}
		}
	})

	t.Run("generated request id is not forwarded", func(t *testing.T) {
		code, _ := get(t, "/proxy/items/2", map[string]string{"miauserid": "abc"})
		if code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		seen := pr.last()
		if got, ok := seen["X-Request-Id"]; ok {
			t.Fatalf("peer x-request-id = %q, want it absent", got)
		}
		if got := seen.Get("miauserid"); got != "abc" {
			t.Errorf("peer miauserid = %q, want abc", got)
		}
	})

	t.Run("oversized request id forwarded as sent", func(t *testing.T) {
		long := strings.Repeat("r", 200)
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/proxy/items/3", http.NoBody)
		req.Header.Set("x-request-id", long)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if got := pr.last().Get("x-request-id"); got != long {
			t.Fatalf("peer x-request-id has len %d, want the caller's %d byte value", len(got), len(long))
		}
		// the service logs and echoes its own id
		if echoed := resp.Header.Get("x-request-id"); echoed == long || len(echoed) != 36 {
			t.Fatalf("echoed id = %q, want a generated uuid", echoed)
		}
	})

	t.Run("ready fails once draining", func(t *testing.T) {
		gate.Close("shutting down")
		code, body := get(t, httpmw.PathReady, nil)
		if code != http.StatusServiceUnavailable || !strings.Contains(body, "shutting down") {
			t.Fatalf("status = %d body = %q", code, body)
		}
		// liveness is unaffected
		if code, _ := get(t, httpmw.PathHealthz, nil); code != http.StatusOK {
			t.Fatalf("healthz while draining = %d", code)
		}
	})
}
