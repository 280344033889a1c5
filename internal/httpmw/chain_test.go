package httpmw

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestChain_OrderOuterToInner(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+"-before")
				next.ServeHTTP(w, r)
				order = append(order, name+"-after")
			})
		}
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	})

	Chain(handler, mw("A"), nil, mw("B")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", http.NoBody))

	want := []string{"A-before", "B-before", "handler", "B-after", "A-after"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestChain_NoMiddleware(t *testing.T) {
	called := false
	Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", http.NoBody))
	if !called {
		t.Fatal("handler not called")
	}
}

func TestIsProbePath(t *testing.T) {
	tests := map[string]bool{
		"/-/healthz":   true,
		"/-/ready":     true,
		"/-/check-up":  true,
		"/":            false,
		"/-/healthz/x": false,
		"/healthz":     false,
	}
	for p, want := range tests {
		if got := IsProbePath(p); got != want {
			t.Errorf("IsProbePath(%q) = %v, want %v", p, got, want)
		}
	}
}
