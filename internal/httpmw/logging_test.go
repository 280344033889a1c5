package httpmw

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/go-microservice-template/internal/log"
)

func serveLogged(t *testing.T, spy *spyLogger, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	Chain(h, RequestID(), WithLogger(spy), AccessLog()).ServeHTTP(rec, req)
	return rec
}

var closingLine = regexp.MustCompile(`^GET /items 201 \d+\.\d{6}$`)

func TestAccessLog_StartAndEndLines(t *testing.T) {
	spy := newSpyLogger()
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	})

	serveLogged(t, spy, h, httptest.NewRequest(http.MethodGet, "/items", nil))

	lines := spy.all()
	if len(lines) != 2 {
		t.Fatalf("lines = %+v", lines)
	}
	if lines[0].level != "debug" || lines[0].msg != "GET /items" {
		t.Fatalf("start line = %+v", lines[0])
	}
	if lines[1].level != "debug" || !closingLine.MatchString(lines[1].msg) {
		t.Fatalf("end line = %+v", lines[1])
	}
	if v, _ := fieldValue(lines[1].fields, "http.response.status_code"); v != http.StatusCreated {
		t.Fatalf("status field = %v", v)
	}
	if v, _ := fieldValue(lines[1].fields, "http.response.body.size"); v != int64(2) {
		t.Fatalf("bytes field = %v", v)
	}
}

func TestAccessLog_DefaultStatus(t *testing.T) {
	spy := newSpyLogger()
	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	serveLogged(t, spy, h, httptest.NewRequest(http.MethodGet, "/", nil))

	lines := spy.all()
	if len(lines) != 2 || !regexp.MustCompile(`^GET / 200 `).MatchString(lines[1].msg) {
		t.Fatalf("lines = %+v", lines)
	}
}

func TestAccessLog_SkipsProbes(t *testing.T) {
	for _, p := range []string{PathHealthz, PathReady, PathCheckUp} {
		t.Run(p, func(t *testing.T) {
			spy := newSpyLogger()
			called := false
			h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

			serveLogged(t, spy, h, httptest.NewRequest(http.MethodGet, p, nil))

			if !called {
				t.Fatal("handler not called")
			}
			if n := len(spy.all()); n != 0 {
				t.Fatalf("probe produced %d log lines", n)
			}
		})
	}
}

func TestAccessLog_PanicStillLogs(t *testing.T) {
	spy := newSpyLogger()
	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	rec := httptest.NewRecorder()

	Chain(h, Recover(spy, nil), WithLogger(spy), AccessLog()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/explode", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	lines := spy.all()
	if len(lines) != 3 {
		t.Fatalf("lines = %+v", lines)
	}
	if !regexp.MustCompile(`^POST /explode 500 \d+\.\d{6}$`).MatchString(lines[1].msg) {
		t.Fatalf("closing line = %q", lines[1].msg)
	}
	if lines[2].level != "error" || lines[2].msg != "http panic recovered" {
		t.Fatalf("recover line = %+v", lines[2])
	}
}

func TestAccessLog_PanicAfterHeadersKeepsStatus(t *testing.T) {
	spy := newSpyLogger()
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late boom")
	})

	Chain(h, Recover(spy, nil), WithLogger(spy), AccessLog()).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/late", nil))

	lines := spy.all()
	if len(lines) < 2 {
		t.Fatalf("lines = %+v", lines)
	}
	if !regexp.MustCompile(`^PUT /late 202 \d+\.\d{6}$`).MatchString(lines[1].msg) {
		t.Fatalf("closing line = %q", lines[1].msg)
	}
	if v, _ := fieldValue(lines[1].fields, "http.response.status_code"); v != http.StatusAccepted {
		t.Fatalf("status field = %v", v)
	}
}

func TestAccessLog_RoutePattern(t *testing.T) {
	spy := newSpyLogger()
	r := chi.NewRouter()
	r.Use(WithLogger(spy), AccessLog())
	r.Get("/items/{id}", func(http.ResponseWriter, *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))

	lines := spy.all()
	if v, _ := fieldValue(lines[len(lines)-1].fields, "http.route"); v != "/items/{id}" {
		t.Fatalf("http.route = %v", v)
	}
}

func TestWithLogger_AttachesRequestFields(t *testing.T) {
	spy := newSpyLogger()
	var fromCtx log.Logger
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = log.FromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("x-request-id", "req-1")
	serveLogged(t, spy, h, req)

	if fromCtx != spy {
		t.Fatalf("context logger = %T", fromCtx)
	}
	with := spy.lastWith()
	if v, _ := fieldValue(with, "request_id"); v != "req-1" {
		t.Fatalf("request_id = %v", v)
	}
	if v, _ := fieldValue(with, "url.path"); v != "/x" {
		t.Fatalf("url.path = %v", v)
	}
}

func TestScope(t *testing.T) {
	spy := newSpyLogger()
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), WithLogger(spy), Scope("hello"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if v, _ := fieldValue(spy.lastWith(), "handler"); v != "hello" {
		t.Fatalf("handler = %v", v)
	}
}
