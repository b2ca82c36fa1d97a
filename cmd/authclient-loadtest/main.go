package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/api"
	"github.com/MrEthical07/authclient/internal/devserver"
	"github.com/MrEthical07/authclient/metrics/export/prometheus"
	"github.com/MrEthical07/authclient/refresh"
	"github.com/MrEthical07/authclient/session"
	"github.com/MrEthical07/authclient/tokenstore"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(context.Background(), cfg, newLogger(cfg.Env)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "local":
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case "debug":
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	backend, err := devserver.New(devserver.Options{AccessTTL: cfg.AccessTTL, Logger: logger})
	if err != nil {
		return fmt.Errorf("start devserver: %w", err)
	}
	backend.SetRefreshDelay(cfg.RefreshDelay)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	httpServer := &http.Server{Handler: backend.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = httpServer.Serve(ln) }()
	defer func() { _ = httpServer.Shutdown(context.Background()) }()
	baseURL := "http://" + ln.Addr().String()

	rdb, cleanup, err := openRedis(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := tokenstore.NewRedis(rdb, tokenstore.RedisConfig{Prefix: cfg.RedisPrefix, TTL: 24 * time.Hour})
	if err != nil {
		return err
	}
	if _, err := store.Ping(ctx); err != nil {
		return err
	}
	sessions, err := session.NewManager(store, session.WithLogger(logger))
	if err != nil {
		return err
	}
	endpoint, err := refresh.NewEndpoint(refresh.Config{URL: baseURL + "/api/v1/auth/refresh", Timeout: cfg.Timeout})
	if err != nil {
		return err
	}

	clientCfg := authclient.DefaultConfig()
	clientCfg.BaseURL = baseURL
	clientCfg.Transport.RequestTimeout = cfg.Timeout
	clientCfg.Metrics.Enabled = true
	clientCfg.Metrics.EnableLatencyHistograms = true
	clientCfg.Audit.Enabled = cfg.Audit

	builder := authclient.New().
		WithConfig(clientCfg).
		WithTokenStore(store).
		WithRefreshEndpoint(endpoint).
		WithSessionTerminator(sessions).
		WithLogger(logger)
	if cfg.Audit {
		builder = builder.WithAuditSink(authclient.NewSlogSink(logger.With("component", "audit")))
	}
	client, err := builder.Build()
	if err != nil {
		return err
	}
	defer client.Close()

	client.OnBackendUnavailable(func() { logger.Warn("backend unavailable") })

	services := api.New(client, sessions)
	if _, err := services.Auth.Login(ctx, cfg.Username, devserver.DefaultPassword); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if _, err := services.Achievements.Create(ctx, api.AchievementInput{AchievementType: "competition", Title: "Load test seed"}); err != nil {
		logger.Info("seed achievement skipped", "error", err)
	}

	stopExpiry := expireLoop(backend, cfg.ExpireEvery)
	stats := runPhase(ctx, services, cfg.Requests, cfg.Workers)
	stopExpiry()

	snapshot := client.MetricsSnapshot()
	fmt.Println("---- results ----")
	printStats("requests", stats)
	fmt.Printf("refresh: cycles=%d server_calls=%d success=%d failure=%d queued=%d retried=%d\n",
		client.Coordinator().Cycles(),
		backend.RefreshCalls(),
		snapshot.Counters[authclient.MetricRefreshSuccess],
		snapshot.Counters[authclient.MetricRefreshFailure],
		snapshot.Counters[authclient.MetricRefreshQueued],
		snapshot.Counters[authclient.MetricRequestRetried],
	)
	fmt.Printf("session: state=%s\n", sessions.State())

	if cfg.PrintMetrics {
		fmt.Print(prometheus.NewPrometheusExporter(client).Render())
	}
	return nil
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

// expireLoop invalidates every access token at interval until the returned
// stop func is called.
func expireLoop(backend *devserver.Server, interval time.Duration) func() {
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				backend.ExpireAccessTokens()
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

func runPhase(ctx context.Context, services *api.API, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}

				t0 := time.Now()
				var err error
				switch i % 3 {
				case 0:
					_, err = services.Auth.Profile(ctx)
				case 1:
					_, err = services.Achievements.List(ctx, api.ListOptions{Limit: 20})
				default:
					_, err = services.Reports.Statistics(ctx)
				}
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return computeStats(time.Since(start), latencies, failures)
}
