package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	pages "github.com/researchspace/semantic-pages"
	"github.com/researchspace/semantic-pages/components"
	"github.com/researchspace/semantic-pages/config"
	"github.com/researchspace/semantic-pages/markup"
	"github.com/researchspace/semantic-pages/security"
)

func LoggerMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info("HTTP request", "method", r.Method, "url", r.URL)
		next.ServeHTTP(w, r)
	})
}

func main() {
	configPath := flag.String("config", os.Getenv("SEMANTIC_PAGES_CONFIG"), "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath, os.Getenv)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	markupMetrics := markup.NewMetrics(reg)

	boundaries := markup.NewBoundaryRegistry(logger, markupMetrics)
	store := markup.NewStore(logger, boundaries)
	if err := components.Register(store); err != nil {
		return fmt.Errorf("register components: %w", err)
	}

	natives := markup.NewNativeRegistry()
	for _, name := range cfg.UI.NativeElements {
		if err := natives.Define(name); err != nil {
			return err
		}
	}

	policy, err := security.NewPolicy(cfg.Security.Permissions)
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}

	parser := markup.NewParser(store, markup.NewGate(cfg, policy))
	parser.Natives = natives
	parser.Logger = logger
	parser.Metrics = markupMetrics

	ph := &pages.Handler{
		FileSystem:  os.DirFS(cfg.Pages.Dir),
		Parser:      parser,
		Live:        cfg.Pages.Live,
		OnErrorPage: cfg.Pages.ErrorPage,
		Logger:      logger,
		Metrics:     pages.NewMetrics(reg),
	}

	mux := http.NewServeMux()
	if cfg.Server.MetricsPath != "" {
		mux.Handle(cfg.Server.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", LoggerMiddleware(ph, logger))

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	logger.Info("Starting HTTP server", "address", "http://"+addr, "components", store.Tags())

	err = http.ListenAndServe(addr, mux)

	logger.Error("HTTP server error", "error", err)
	return err
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
