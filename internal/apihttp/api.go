// Package apihttp holds the application routes mounted on the service
// listener next to the probes.
package apihttp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/go-microservice-template/internal/httpmw"
	"github.com/keithlinneman/go-microservice-template/internal/log"
	"github.com/keithlinneman/go-microservice-template/internal/version"
)

// API serves the application routes. New endpoints go here; each handler
// pulls its logger and platform client from the request context.
type API struct {
	logger  log.Logger
	openapi []byte
}

// NewAPI builds the route set. logger is only used when a request arrives
// without one attached (handlers mounted outside httpserver).
func NewAPI(logger log.Logger, info version.Info) *API {
	if logger == nil {
		logger = log.Nop()
	}
	doc, err := json.Marshal(openAPIDocument(info))
	if err != nil {
		// static document, cannot fail
		panic(err)
	}
	return &API{logger: logger, openapi: doc}
}

func (api *API) RegisterRoutes(r chi.Router) {
	r.With(httpmw.Scope("hello")).Get("/", api.HandleHello)
	r.Get(PathOpenAPI, api.HandleOpenAPI)
}

// MessageResponse is the smallest response body a route can return.
type MessageResponse struct {
	Message string `json:"message"`
}

func (api *API) HandleHello(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	api.loggerFor(ctx).Debug(ctx, "hello world endpoint called")
	api.writeJSON(ctx, w, http.StatusOK, MessageResponse{Message: "Hello World!"})
}

func (api *API) HandleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.openapi)
}

func (api *API) loggerFor(ctx context.Context) log.Logger {
	if L, ok := log.Lookup(ctx); ok {
		return L
	}
	return api.logger
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.loggerFor(ctx).Warn(ctx, "failed to encode JSON response", "error", err)
	}
}
