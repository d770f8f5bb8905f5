package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/beacon"
	"github.com/patrickwarner/slotengine/internal/bidclient"
	"github.com/patrickwarner/slotengine/internal/config"
	"github.com/patrickwarner/slotengine/internal/device"
	"github.com/patrickwarner/slotengine/internal/dom"
	"github.com/patrickwarner/slotengine/internal/engine"
	"github.com/patrickwarner/slotengine/internal/geoip"
	"github.com/patrickwarner/slotengine/internal/identity"
	"github.com/patrickwarner/slotengine/internal/macros"
	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
	"github.com/patrickwarner/slotengine/internal/render"
	"github.com/patrickwarner/slotengine/internal/viewability"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("engine error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inPath := flag.String("in", "-", "host HTML document ('-' for stdin)")
	outPath := flag.String("out", "-", "rendered output path ('-' for stdout)")
	simulate := flag.Bool("simulate", false, "dispatch load and full-visibility events after rendering")
	flag.Parse()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TraceEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	observability.RegisterMetrics()
	metrics := observability.NewPrometheusRegistry()
	go serveMetrics(cfg.MetricsAddr, logger)

	geoSvc, err := geoip.Init(cfg.GeoIPDB)
	if err != nil {
		logger.Warn("geoip unavailable, geo fields will be empty", zap.Error(err))
	}
	defer func() { _ = geoSvc.Close() }()

	in := io.Reader(os.Stdin)
	if *inPath != "-" {
		f, err := os.Open(*inPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	doc, err := dom.ParseDocument(in)
	if err != nil {
		return err
	}

	provider := device.NewAsync(func() models.DeviceContext {
		return device.Resolve(geoSvc, device.Facts{
			UserAgent: cfg.UserAgent,
			ClientIP:  cfg.ClientIP,
			IPv6:      cfg.IPv6,
			Carrier:   cfg.Carrier,
		})
	})

	gate := identity.NewClient(cfg.IdentityURL, cfg.BidTimeout, logger, metrics)
	bids := bidclient.NewClient(cfg.DecisionURL, cfg.BidTimeout, logger, metrics)
	beacons := beacon.NewDispatcher(cfg.JourneyURL, logger, metrics)
	macroEngine := macros.New(logger, metrics)
	tracker := viewability.NewTracker(cfg.ViewabilityThreshold, cfg.ViewabilityDwell, logger, metrics)
	defer tracker.Shutdown()

	renderer := render.NewRenderer(beacons, tracker, macroEngine, render.Options{
		CDNBaseURL:   cfg.CDNBaseURL,
		NavigateWait: cfg.NavigateWait,
	}, logger, metrics)

	eng := engine.New(cfg, provider, gate, bids, renderer, logger, metrics)
	summary, err := eng.Run(ctx, doc)
	if err != nil {
		return err
	}
	logger.Info("run complete",
		zap.Int("slots", summary.Slots),
		zap.Int("rendered", summary.Rendered),
		zap.Int("failed", summary.Failed))

	if *simulate {
		simulateLifecycle(doc, tracker, cfg.ViewabilityDwell)
	}

	// Give fire-and-forget beacons a chance to leave before we exit.
	beacons.Flush(2 * time.Second)

	out := io.Writer(os.Stdout)
	if *outPath != "-" {
		f, err := os.Create(*outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	return doc.Render(out)
}

// simulateLifecycle stands in for a live page: every rendered media element
// gets a load event and a fully-visible sample, then the dwell elapses so
// billable impressions fire.
func simulateLifecycle(doc *dom.Document, tracker *viewability.Tracker, dwell time.Duration) {
	for _, ph := range doc.Placeholders() {
		content := ph.Content()
		if content == nil {
			continue
		}
		for _, tag := range []string{"img", "video"} {
			el := content.Find(tag)
			if el == nil {
				continue
			}
			if tag == "video" {
				el.Dispatch(dom.EventLoadedData)
			} else {
				el.Dispatch(dom.EventLoad)
			}
			tracker.Report(el, 1.0, true)
		}
	}
	time.Sleep(dwell + 100*time.Millisecond)
}

func serveMetrics(addr string, logger *zap.Logger) {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: r, ReadTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics listener stopped", zap.Error(err))
	}
}
