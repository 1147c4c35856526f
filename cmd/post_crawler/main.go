package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"post-crawler/internal/middleware/logger"
	"post-crawler/internal/post_crawler/api"
	"post-crawler/internal/post_crawler/fetcher"
	"post-crawler/internal/post_crawler/ident"
	"post-crawler/internal/post_crawler/metrics"
	"post-crawler/internal/post_crawler/processor"
	"post-crawler/internal/post_crawler/scheduler"
	"post-crawler/internal/post_crawler/scraper"
	"post-crawler/internal/post_crawler/store"
	"post-crawler/internal/post_crawler/store/memstore"
	"post-crawler/internal/post_crawler/store/mongostore"
	"post-crawler/internal/post_crawler/store/pgstore"
	"post-crawler/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the yaml config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(log)

	if err := run(cfg, log); err != nil {
		log.Error("Post crawler exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting post crawler...",
		zap.String("store", cfg.Store.Driver),
		zap.String("fetcher", cfg.Fetcher.Mode),
		zap.String("base_url", cfg.Site.BaseURL),
	)

	// 1) store and fetcher
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Warn("Failed to close store", zap.Error(err))
		}
	}()

	f, closeFetcher := newFetcher(cfg.Fetcher, log)
	defer closeFetcher()

	// 2) ingestion pipeline
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sc := scraper.New(cfg.Site.BaseURL, f, log, m)
	coord := processor.NewCoordinator(log, st, sc, ident.NewUUID(), m)
	coord.RetryBackoff = cfg.Scheduler.DetailBackoff
	coord.InsertAttempts = cfg.Scheduler.InsertAttempts

	if cfg.Scheduler.BackfillIDs {
		if _, err := coord.BackfillSummaryIDs(ctx); err != nil {
			return fmt.Errorf("backfill summary ids: %w", err)
		}
	}

	// 3) walks run until they finish or the process is signalled
	var wg sync.WaitGroup
	startWalks(ctx, &wg, cfg.Scheduler, st, sc, coord, log, m)

	// 4) HTTP API
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &api.Server{
		Log:        log,
		Store:      st,
		Scraper:    sc,
		Ingest:     coord,
		Gatherer:   reg,
		CORSOrigin: cfg.CORSOrigins,
	}
	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Post crawler API is running", zap.String("address", cfg.Server.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case err := <-errCh:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("serve http: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shut down http server", zap.Error(err))
	}
	log.Info("Waiting for walks to stop...")
	wg.Wait()
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case "postgres":
		return pgstore.New(ctx, pgstore.Config{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
	case "memory":
		log.Warn("Using in-memory store, data is lost on exit")
		return memstore.New(), nil
	default:
		var cred *options.Credential
		if cfg.Mongo.Username != "" {
			cred = &options.Credential{
				Username:   cfg.Mongo.Username,
				Password:   cfg.Mongo.Password,
				AuthSource: cfg.Mongo.AuthSource,
			}
		}
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return mongostore.Connect(connectCtx, cfg.Mongo.MongoURI(), cfg.Mongo.DBName, cred)
	}
}

func newFetcher(cfg config.FetcherConfig, log *zap.Logger) (fetcher.Fetcher, func()) {
	if cfg.Mode == "static" {
		return fetcher.NewStatic(fetcher.StaticConfig{
			UserAgent:         cfg.UserAgent,
			Timeout:           cfg.NavigationTimeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, log), func() {}
	}
	h := fetcher.NewHeadless(fetcher.HeadlessConfig{
		UserAgent:         cfg.UserAgent,
		SettleDelay:       cfg.SettleDelay,
		NavigationTimeout: cfg.NavigationTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, log)
	return h, h.Close
}

func startWalks(ctx context.Context, wg *sync.WaitGroup, cfg config.SchedulerConfig, st store.Store, sc *scraper.Scraper, coord *processor.Coordinator, log *zap.Logger, m *metrics.Metrics) {
	var listing *scheduler.ListingWalk
	if cfg.ListingEnabled {
		listing = scheduler.NewListingWalk(scheduler.ListingConfig{
			StartPage:      cfg.StartPage,
			MaxPage:        cfg.MaxPage,
			Limit:          cfg.PageLimit,
			Interval:       cfg.ListingInterval,
			OnFailure:      scheduler.FailurePolicy(cfg.OnFailure),
			MaxPageRetries: cfg.MaxPageRetries,
		}, sc, coord, log, m)
		wg.Add(1)
		go func() {
			defer wg.Done()
			listing.Run(ctx)
		}()
	}
	if cfg.SweepEnabled {
		sweep := scheduler.NewDetailSweep(cfg.SweepInterval, st, coord, log, m)
		if cfg.FollowListing && listing != nil {
			sweep.Follow = listing
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweep.Run(ctx)
		}()
	}
}
