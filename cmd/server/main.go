package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/keithlinneman/go-microservice-template/internal/apihttp"
	"github.com/keithlinneman/go-microservice-template/internal/cfg"
	"github.com/keithlinneman/go-microservice-template/internal/headers"
	"github.com/keithlinneman/go-microservice-template/internal/health"
	"github.com/keithlinneman/go-microservice-template/internal/httpmw"
	"github.com/keithlinneman/go-microservice-template/internal/httpserver"
	"github.com/keithlinneman/go-microservice-template/internal/log"
	"github.com/keithlinneman/go-microservice-template/internal/metrics"
	"github.com/keithlinneman/go-microservice-template/internal/opshttp"
	"github.com/keithlinneman/go-microservice-template/internal/otelx"
	"github.com/keithlinneman/go-microservice-template/internal/platformclient"
	"github.com/keithlinneman/go-microservice-template/internal/prof"
	"github.com/keithlinneman/go-microservice-template/internal/ratelimit"
	v "github.com/keithlinneman/go-microservice-template/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Get build/version info
	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags, dotenv files and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s %s (commit=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Version, vi.Commit, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	dotenv, err := cfg.LoadDotenv(cfg.DotenvFiles...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Fill in config from environment variables (no prefix) and validate
	cfg.FillFromEnv(flag.CommandLine, "", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid stacktrace level %s: %v\n", conf.StacktraceLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"dotenv_files", dotenv,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"header_keys_to_proxy", conf.AllowList(),
		"client_timeout", conf.ClientTimeout.String(),
		"checkup_peers", conf.Peers(),
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"enable_rate_limit", conf.EnableRateLimit,
		"trusted_hops", conf.TrustedHops,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
		"pyro_server", conf.PyroServer,
		"pyro_tenant", conf.PyroTenantID,
	)

	m := metrics.New()
	m.SetBuildInfo(vi)

	// Setup pyroscope profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":     v.AppName,
			"version": vi.Version,
			"commit":  vi.Commit,
			"source":  "go-agent",
		},
		OnActive: m.SetProfilingActive,
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer stopProf()

	// Setup otel for tracing
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  conf.OTLPInsecure,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Version:   vi.Version,
		UserAgent: v.UserAgent(),
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed, tracing disabled")
		shutdownOTEL, _ = otelx.Init(ctx, otelx.Options{})
	}

	// one factory per process; each request gets its own client from it
	factory := platformclient.NewFactory(platformclient.FactoryOptions{
		AllowList: conf.AllowList(),
		Timeout:   conf.ClientTimeout,
		Observer:  m,
	})

	// setup toggle for server shutdown
	var gate health.ShutdownGate

	// check-up passes when every configured peer answers its liveness probe
	peerClient := platformclient.New(headers.Set{}, L.With("component", "checkup"), nil,
		platformclient.WithDefaultTimeout(conf.CheckupTimeout),
		platformclient.WithObserver(m),
	)
	var peers []health.Probe
	for _, p := range conf.Peers() {
		peers = append(peers, health.Named(p, health.Timeout(conf.CheckupTimeout,
			health.CheckFunc(peerClient.Probe(p+httpmw.PathHealthz)))))
	}
	checkUp := health.All(peers...)

	var rateLimitMW httpmw.Middleware
	if conf.EnableRateLimit {
		limiter := ratelimit.New(ctx,
			ratelimit.WithRate(conf.RateLimitRPS, conf.RateLimitBurst),
			// increment prometheus counter on each denied request
			ratelimit.WithOnDenied(func(string) { m.IncRateLimitDenied() }),
			// only log the first denial per caller until its bucket is evicted
			ratelimit.WithOnFirstDenied(func(key string) {
				L.Warn(ctx, "rate limit triggered", "key", key)
			}),
			ratelimit.WithOnCapacity(func() {
				m.IncRateLimitCapacity()
				L.Warn(ctx, "rate limit capacity reached, rejecting new callers until some are evicted")
			}),
		)
		rateLimitMW = limiter.Middleware
	}

	api := apihttp.NewAPI(L, vi)

	// start service http server
	appHTTPStop, err := httpserver.Start(ctx, httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		Health:       health.Fixed(true, ""),
		Readiness:    gate.Probe(),
		CheckUp:      checkUp,
		APIRoutes:    api.RegisterRoutes,
		Factory:      factory,
		MetricsMW:    m.Middleware,
		RateLimitMW:  rateLimitMW,
		OnPanic:      m.IncHttpPanic,
		MaxBodyBytes: conf.MaxBodyBytes,
		TrustedHops:  conf.TrustedHops,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start http listener")
		os.Exit(1)
	}

	// admin listener: metrics, pprof and probe copies, never exposed publicly
	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   gate.Probe(),
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		_ = appHTTPStop(context.Background())
		os.Exit(1)
	}

	// wait for ctrl+c / sigterm
	<-ctx.Done()
	stop()

	L.Info(context.Background(), "shutdown signal received")

	// fail readiness so the orchestrator stops routing new requests here
	gate.Close("draining")
	L.Info(context.Background(), "shutdown gate closed", "drain", conf.ShutdownDrain.String())

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(conf.ShutdownDrain):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error { return appHTTPStop(shutdownCtx) })
	g.Go(func() error { return opsHTTPStop(shutdownCtx) })
	if err := g.Wait(); err != nil {
		L.Error(context.Background(), err, "http server shutdown")
	}

	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}

	stopProf()

	L.Info(context.Background(), "shutdown complete")
}
