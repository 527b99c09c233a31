package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fks/market-data/internal/httpapi"
	"github.com/fks/market-data/internal/providers"
	"github.com/fks/market-data/internal/quality"
	"github.com/fks/market-data/internal/scheduler"
	"github.com/fks/market-data/internal/streaming"
	"github.com/fks/market-data/internal/types"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API, WebSocket feed, and scheduled collectors",
		RunE:  runServe,
	}
}

// defaultWatchlist seeds the scheduler and quality loop when no
// FKS_WATCHLIST override is set; spec.md names no canonical symbol
// list, so this is cmd-level wiring, not resolved configuration.
var defaultWatchlist = []string{"BTCUSD", "ETHUSD"}

func watchlistFromEnv() []string {
	v := os.Getenv("FKS_WATCHLIST")
	if v == "" {
		return defaultWatchlist
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultWatchlist
	}
	return out
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(log.Logger)
	if err != nil {
		return err
	}

	repo, repoErr := a.repository()
	if repoErr != nil {
		log.Warn().Err(repoErr).Msg("serve: running without Postgres persistence")
	}

	// REST surface (C11): futures pass-through mounts the Polygon
	// adapter, per spec.md §4.10 naming Polygon as the futures source.
	var futures httpapi.FuturesAdapter
	if p, ok := a.adapters["polygon"]; ok {
		futures = p
	}

	handlers := httpapi.NewHandlers(
		a.mgr,
		a.cacheSt,
		futures,
		providers.Names(),
		httpapi.WebhookSecrets{Binance: a.cfg.Webhooks.Binance, Polygon: a.cfg.Webhooks.Polygon},
		log.Logger,
	)

	httpCfg := httpapi.DefaultConfig()
	httpCfg.Host = a.cfg.HTTPHost
	httpCfg.Port = a.cfg.HTTPPort
	httpCfg.RateLimitRPS = 20
	httpCfg.RateLimitBurst = 40

	server := httpapi.NewServer(httpCfg, handlers, log.Logger)

	// Streaming (C12): one Upstream per streaming-capable provider,
	// fanned out to clients through the Hub, mounted at /ws alongside
	// the REST surface. Only Kraken has a Codec today; other providers
	// join the router as their Codec lands.
	var hub *streaming.Hub
	krakenUpstream := streaming.NewUpstream("kraken", streaming.NewKrakenCodec(1), func(msg streaming.ServerMessage) { hub.Broadcast(msg) }, log.Logger)
	router := streaming.NewRouter(map[string]*streaming.Upstream{"kraken": krakenUpstream}, log.Logger)
	hub = streaming.NewHub(router, log.Logger)
	server.Mount("/ws", hub)

	registry := prometheus.NewRegistry()
	metricsRegistry := quality.NewMetricsRegistry(registry)
	server.Mount("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Scheduler (C6): periodic OHLCV collection plus a quality check
	// pass over the same watchlist, per spec.md §4.4/§4.8.
	sched := scheduler.New(4, log.Logger)
	watchlist := watchlistFromEnv()
	intervals := []string{"1m", "1h"}

	if repoErr == nil {
		for _, task := range scheduler.FanOut(watchlist, intervals, 500, a.mgr, repo.OHLCV) {
			if err := sched.AddTask(context.Background(), "@every 1m", task); err != nil {
				log.Error().Err(err).Str("task", task.Name()).Msg("serve: failed to register scheduled task")
			}
		}
	}

	scorer := quality.NewScorer()
	collector := quality.NewCollector(scorer, metricsRegistry, nil, log.Logger)
	qualityTask := &qualityCheckTask{symbols: watchlist, fetcher: a.mgr, collector: collector}
	if err := sched.AddTask(context.Background(), "@every 5m", qualityTask); err != nil {
		log.Error().Err(err).Msg("serve: failed to register quality task")
	}

	sched.Start()
	defer sched.Stop()

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("serve: http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// qualityCheckTask runs a quality.Collector pass over every watched
// symbol on the scheduler's cron tick, implementing scheduler.Task.
type qualityCheckTask struct {
	symbols   []string
	fetcher   scheduler.Fetcher
	collector *quality.Collector
}

func (t *qualityCheckTask) Name() string { return "quality_check" }

func (t *qualityCheckTask) Run(ctx context.Context) (scheduler.Result, error) {
	now := time.Now().UTC()
	for _, symbol := range t.symbols {
		result, _, err := t.fetcher.Fetch(ctx, types.FetchRequest{Symbol: symbol, Interval: "1h", Limit: 100})
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("quality_check: fetch failed")
			continue
		}
		if _, err := t.collector.Check(ctx, quality.Sample{Symbol: symbol, Frequency: "1h", Bars: result.Bars, Timestamp: now}); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("quality_check: scoring failed")
		}
	}
	return scheduler.Result{Status: "ok", Timestamp: now}, nil
}
