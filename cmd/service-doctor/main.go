// service-doctor probes every dependency of the payment platform and prints
// a pass/fail report. Exit code 1 when anything is unreachable.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"

	"qpesapay/internal/config"
)

const probeTimeout = 15 * time.Second

// slower than this gets flagged even when the probe succeeds
const slowThreshold = 2 * time.Second

type probe struct {
	name string
	run  func(ctx context.Context) error
}

type result struct {
	name    string
	err     error
	elapsed time.Duration
}

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	probes := []probe{
		{"payment-gateway", httpProbe("localhost:" + cfg.Server.Port + "/healthz")},
		{"postgres", func(ctx context.Context) error { return pingPostgres(ctx, cfg.Postgres.DSN) }},
		{"redis", func(ctx context.Context) error { return pingRedis(ctx, cfg.Redis.Addr) }},
		{"kafka", func(ctx context.Context) error { return pingKafka(ctx, cfg.Kafka.BootstrapServers) }},
		{"clickhouse", func(ctx context.Context) error { return pingClickHouse(ctx, cfg.ClickHouse.Addr) }},
		{"compliance-service", httpProbe(cfg.Compliance.URL + "/healthz")},
		{"settlement-service", httpProbe(cfg.Settlement.URL + "/healthz")},
		{"chain-gateway", httpProbe(cfg.Chain.GatewayURL + "/healthz")},
	}
	if cfg.OIDC.URL != "" {
		probes = append(probes, probe{"oidc-provider", httpProbe(cfg.OIDC.URL + "/health/ready")})
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	fmt.Printf("🩺 probing %d dependencies...\n\n", len(probes))

	results := make(chan result, len(probes))
	for _, p := range probes {
		go func(p probe) {
			start := time.Now()
			err := p.run(ctx)
			results <- result{name: p.name, err: err, elapsed: time.Since(start)}
		}(p)
	}

	collected := make([]result, 0, len(probes))
	for range probes {
		collected = append(collected, <-results)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].name < collected[j].name })

	failed := 0
	for _, r := range collected {
		switch {
		case r.err != nil:
			failed++
			fmt.Printf("❌ %-20s %8s  %v\n", r.name, r.elapsed.Round(time.Millisecond), r.err)
		case r.elapsed > slowThreshold:
			fmt.Printf("🐢 %-20s %8s  reachable but slow\n", r.name, r.elapsed.Round(time.Millisecond))
		default:
			fmt.Printf("✅ %-20s %8s\n", r.name, r.elapsed.Round(time.Millisecond))
		}
	}

	if failed > 0 {
		fmt.Printf("\n%d of %d probes failed\n", failed, len(collected))
		os.Exit(1)
	}
	fmt.Println("\nall dependencies healthy")
}

func httpProbe(url string) func(ctx context.Context) error {
	if !strings.HasPrefix(url, "http") {
		url = "http://" + url
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("status %s", resp.Status)
		}
		return nil
	}
}

func pingPostgres(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	return conn.Ping(ctx)
}

func pingRedis(ctx context.Context, addr string) error {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	return rdb.Ping(ctx).Err()
}

func pingKafka(ctx context.Context, bootstrapServers string) error {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(bootstrapServers, ",")...),
		kgo.DialTimeout(5*time.Second),
	)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Ping(ctx)
}

func pingClickHouse(ctx context.Context, addr string) error {
	if addr == "" {
		return fmt.Errorf("address not configured")
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr:        []string{addr},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Ping(ctx)
}
