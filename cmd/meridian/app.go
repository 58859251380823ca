package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authservice "meridian/internal/auth/service"
	"meridian/internal/credentials"
	"meridian/internal/credentials/storage"
	"meridian/internal/credentials/storage/bolt"
	"meridian/internal/notify"
	"meridian/internal/platform/config"
	"meridian/internal/platform/logger"
	"meridian/internal/platform/metrics"
	"meridian/internal/platform/tracer"
	"meridian/internal/registration"
	"meridian/internal/tenant/resolver"
	tenantservice "meridian/internal/tenant/service"
	"meridian/internal/transport/apiclient"
)

// globalFlags are shared by every command.
type globalFlags struct {
	location    string
	logLevel    string
	metricsAddr string
	trace       bool
}

// app holds the wired client for the duration of one command.
type app struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
	flags  globalFlags

	cfg      config.Client
	log      *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	tracer   tracer.Tracer

	db        *bolt.Store
	creds     *credentials.Store
	queue     *notify.Queue
	renderer  notify.Renderer
	resolver  *resolver.Resolver
	api       *apiclient.Client
	auth      *authservice.Service
	tenants   *tenantservice.Service
	registrar *registration.Registrar

	metricsSrv *http.Server
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	a := &app{in: bufio.NewReader(in), out: out, errOut: errOut}
	if f, ok := out.(*os.File); ok {
		a.renderer = notify.NewTerminalRenderer(f)
	} else {
		a.renderer = notify.NewWriterRenderer(out, false)
	}
	return a
}

// open wires every component from the environment and boots the session.
func (a *app) open(ctx context.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if a.flags.location != "" {
		cfg.Location = a.flags.location
	}
	if a.flags.logLevel != "" {
		cfg.LogLevel = a.flags.logLevel
	}
	a.cfg = cfg
	a.log = logger.NewWithWriter(a.errOut, cfg.LogLevel, cfg.LogFormat)

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	a.tracer = tracer.NewNoop()
	if a.flags.trace {
		a.tracer = tracer.NewOTel()
	}

	path, err := cfg.StatePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	a.db, err = bolt.Open(path)
	if err != nil {
		return err
	}
	if err := a.wire(a.db); err != nil {
		return err
	}
	if a.flags.metricsAddr != "" {
		a.serveMetrics()
	}
	return a.auth.Boot(ctx, cfg.Location)
}

// wire builds the client components on top of st.
func (a *app) wire(st storage.Storage, apiOpts ...apiclient.Option) error {
	cfg := a.cfg
	a.creds = credentials.New(st, credentials.WithLogger(a.log))
	a.queue = notify.New(notify.WithLogger(a.log), notify.WithMetrics(a.metrics))

	source, err := resolver.ParseSource(cfg.TenantSource)
	if err != nil {
		return err
	}
	a.resolver, err = resolver.New(resolver.Config{
		Source:     source,
		RootDomain: cfg.RootDomain,
		Mapping:    cfg.TenantMap,
	}, a.creds, resolver.WithLogger(a.log), resolver.WithMetrics(a.metrics))
	if err != nil {
		return err
	}

	a.api, err = apiclient.New(apiclient.Config{
		Scheme:          cfg.Scheme,
		APIHost:         cfg.APIHost,
		PublicBaseURL:   cfg.PublicBaseURL,
		DevMode:         cfg.DevMode,
		DevHost:         cfg.DevHost,
		DevPort:         cfg.DevPort,
		PublicEndpoints: cfg.PublicEndpoints,
		Timeout:         cfg.RequestTimeout,
	}, a.creds, append([]apiclient.Option{
		apiclient.WithTenantLocator(a.resolver),
		apiclient.WithNotifier(a.queue),
		apiclient.WithLogger(a.log),
		apiclient.WithMetrics(a.metrics),
		apiclient.WithTracer(a.tracer),
		apiclient.WithUserAgent("meridian-cli"),
	}, apiOpts...)...)
	if err != nil {
		return err
	}

	a.auth = authservice.New(a.creds, a.resolver, a.api, a.queue, authservice.WithLogger(a.log))
	a.tenants = tenantservice.New(a.api, a.creds, a.queue,
		tenantservice.WithLogger(a.log), tenantservice.WithTracer(a.tracer))
	a.registrar = registration.New(a.api, a.queue,
		registration.WithLogger(a.log),
		registration.WithTracer(a.tracer),
		registration.WithMetrics(a.metrics),
		registration.WithPostalBaseURL(cfg.PostalBaseURL),
	)
	return nil
}

func (a *app) serveMetrics() {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	a.metricsSrv = &http.Server{
		Addr:              a.flags.metricsAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server error", "error", err)
		}
	}()
	a.log.Info("serving metrics", "addr", a.flags.metricsAddr)
}

// flush prints pending notifications.
func (a *app) flush() {
	if a.queue != nil {
		a.queue.Drain(a.renderer)
	}
}

func (a *app) close(ctx context.Context) {
	a.flush()
	if a.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = a.metricsSrv.Shutdown(shutdownCtx)
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("close credential store", "error", err)
		}
	}
}

// prompt prints label and reads one line. current is shown and kept when the
// answer is empty.
func (a *app) prompt(label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(a.out, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(a.out, "%s: ", label)
	}
	line, err := a.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	line = trimNewline(line)
	if line == "" {
		return current, nil
	}
	return line, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
