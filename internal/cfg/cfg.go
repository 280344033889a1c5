// Package cfg defines the service configuration. Every setting is a flag
// that can also be supplied through the environment (flag "http-port" is
// env HTTP_PORT) or a dotenv file.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/keithlinneman/go-microservice-template/internal/headers"
	"github.com/keithlinneman/go-microservice-template/internal/log"
)

// EnvHeaderKeys names the variable holding the forwarded header allow-list.
const EnvHeaderKeys = "HEADER_KEYS_TO_PROXY"

// DotenvFiles are loaded in order; earlier files and the real environment win.
var DotenvFiles = []string{".env", "default.env"}

type App struct {
	HTTPPort  int
	AdminPort int

	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	HeaderKeysToProxy string
	ClientTimeout     time.Duration
	CheckupPeers      string
	CheckupTimeout    time.Duration

	EnablePprof     bool
	EnableTracing   bool
	OTLPEndpoint    string
	OTLPInsecure    bool
	TraceSample     float64
	EnablePyroscope bool
	PyroServer      string
	PyroTenantID    string

	TrustedHops     int
	EnableRateLimit bool
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxBodyBytes    int64
	ShutdownDrain   time.Duration
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.IntVar(&c.HTTPPort, "http-port", 3000, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port for metrics and pprof (1..65535)")

	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "debug", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", false, "include per-wrap source locations in error logs")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 8, "max error chain depth (1..64)")

	fs.StringVar(&c.HeaderKeysToProxy, "header-keys-to-proxy", "", "comma separated inbound headers forwarded on outbound calls (required)")
	fs.DurationVar(&c.ClientTimeout, "client-timeout", 30*time.Second, "default timeout for outbound platform calls")
	fs.StringVar(&c.CheckupPeers, "checkup-peers", "", "comma separated base URLs whose /-/healthz gates /-/check-up")
	fs.DurationVar(&c.CheckupTimeout, "checkup-timeout", 2*time.Second, "per-peer timeout for /-/check-up")

	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "enable pprof (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "enable OTLP tracing and push to otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.BoolVar(&c.OTLPInsecure, "otlp-insecure", true, "plaintext gRPC to the collector")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "push profiles to the server set in -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")

	fs.IntVar(&c.TrustedHops, "trusted-hops", 0, "proxies in front of the service appending to X-Forwarded-For (0 ignores the header)")
	fs.BoolVar(&c.EnableRateLimit, "enable-rate-limit", false, "rate limit requests per caller identity")
	fs.Float64Var(&c.RateLimitRPS, "rate-limit-rps", 50, "sustained requests per second per caller")
	fs.IntVar(&c.RateLimitBurst, "rate-limit-burst", 100, "burst size per caller")
	fs.Int64Var(&c.MaxBodyBytes, "max-body-bytes", 1<<20, "max request body size, 0 disables")
	fs.DurationVar(&c.ShutdownDrain, "shutdown-drain", 5*time.Second, "time between failing readiness and stopping listeners")
}

// LoadDotenv loads the given dotenv files into the process environment.
// Missing files are skipped and variables already set are never replaced.
// It returns the files that were loaded.
func LoadDotenv(files ...string) ([]string, error) {
	var loaded []string
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return loaded, fmt.Errorf("load %s: %w", f, err)
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := EnvKey(prefix, f.Name)
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			_ = fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

func EnvKey(prefix, flagName string) string {
	return prefix + strings.ReplaceAll(strings.ToUpper(flagName), "-", "_")
}

// AllowList is the normalized forwarded header allow-list.
func (c App) AllowList() []string { return headers.ParseAllowList(c.HeaderKeysToProxy) }

// Peers returns the check-up peer base URLs without trailing slashes.
func (c App) Peers() []string {
	var out []string
	for _, p := range strings.Split(c.CheckupPeers, ",") {
		if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}
	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
	}

	// Platform client
	if len(c.AllowList()) == 0 {
		errs = append(errs, fmt.Errorf("%s is required (comma separated header names)", EnvHeaderKeys))
	}
	if c.ClientTimeout <= 0 {
		errs = append(errs, fmt.Errorf("CLIENT_TIMEOUT must be positive (got %s)", c.ClientTimeout))
	}
	for _, p := range c.Peers() {
		if u, err := url.Parse(p); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("CHECKUP_PEERS entry must be a URL (got %q)", p))
		}
	}
	if len(c.Peers()) > 0 && c.CheckupTimeout <= 0 {
		errs = append(errs, fmt.Errorf("CHECKUP_TIMEOUT must be positive (got %s)", c.CheckupTimeout))
	}

	// Tracing sample
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	// OTLP tracing (grpc exporter wants host:port, no scheme)
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	// Pyroscope
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// Request limits
	if c.TrustedHops < 0 || c.TrustedHops > 10 {
		errs = append(errs, fmt.Errorf("TRUSTED_HOPS must be 0..10 (got %d)", c.TrustedHops))
	}
	if c.EnableRateLimit {
		if c.RateLimitRPS <= 0 {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be positive (got %g)", c.RateLimitRPS))
		}
		if c.RateLimitBurst < 1 {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST must be at least 1 (got %d)", c.RateLimitBurst))
		}
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("MAX_BODY_BYTES must not be negative (got %d)", c.MaxBodyBytes))
	}
	if c.ShutdownDrain < 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_DRAIN must not be negative (got %s)", c.ShutdownDrain))
	}

	return errors.Join(errs...)
}
