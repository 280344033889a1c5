package httpmw

import (
	"net/http"

	"github.com/keithlinneman/go-microservice-template/internal/headers"
	"github.com/keithlinneman/go-microservice-template/internal/log"
	"github.com/keithlinneman/go-microservice-template/internal/platformclient"
)

// WithPlatformClient captures the inbound headers and attaches a platform
// client built from them. It must run inside WithLogger so the client logs
// with the request's fields.
func WithPlatformClient(f *platformclient.Factory) Middleware {
	return func(next http.Handler) http.Handler {
		if f == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			c := f.New(headers.FromHTTP(r.Header), log.FromContext(ctx))
			next.ServeHTTP(w, r.WithContext(platformclient.WithContext(ctx, c)))
		})
	}
}
