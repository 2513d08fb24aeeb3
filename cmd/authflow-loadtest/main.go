// Command authflow-loadtest measures orchestrator flow throughput against a
// stub provider.
//
// Two phases run back to back: complete login flows (start, identification,
// password) through the engine, and snapshot-cache writes against Redis
// (miniredis by default, or a real instance via -redis-addr / REDIS_ADDR).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authflow "github.com/Lasse-numerous/prisme-saas"
	"github.com/Lasse-numerous/prisme-saas/session"
)

func main() {
	var (
		flows       = flag.Int("flows", 20000, "number of login flows to complete")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		cacheOps    = flag.Int("cache-ops", 100000, "snapshot cache writes")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *flows <= 0 || *concurrency <= 0 || *cacheOps <= 0 {
		fmt.Fprintln(os.Stderr, "flows, concurrency, and cache-ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	provider := httptest.NewServer(stubProvider())
	defer provider.Close()

	cfg := authflow.DefaultConfig()
	cfg.API.BaseURL = provider.URL
	cfg.Audit.Enabled = false

	auth, err := authflow.New().WithConfig(cfg).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	defer auth.Close()

	flowStats := runFlowPhase(ctx, auth, *flows, *concurrency)

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	var cleanup func()
	if addr == "" {
		mr, merr := miniredis.Run()
		if merr != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", merr)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	cache := session.NewCache(rdb, "loadtest", time.Hour)
	cacheStats := runCachePhase(ctx, cache, *cacheOps, *concurrency)

	fmt.Println("---- results ----")
	printStats("login-flow", flowStats)
	printStats("cache-put", cacheStats)
}

func runFlowPhase(ctx context.Context, auth *authflow.Authenticator, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := runOneFlow(ctx, auth)
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

func runOneFlow(ctx context.Context, auth *authflow.Authenticator) error {
	engine, err := auth.NewFlow(authflow.FlowLogin)
	if err != nil {
		return err
	}
	if err := engine.Start(ctx); err != nil {
		return err
	}
	if err := engine.SubmitIdentifier(ctx, "load@example.com", "load-password"); err != nil {
		return err
	}
	if engine.State() != authflow.StateCompleted {
		return fmt.Errorf("flow ended in %s", engine.State())
	}
	return nil
}

func runCachePhase(ctx context.Context, cache *session.Cache, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
	)

	ident := &session.Identity{
		ID:       1,
		Email:    "load@example.com",
		Username: "load",
		Roles:    []string{"member"},
		Active:   true,
	}

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1))
				if i > ops {
					return
				}
				t0 := time.Now()
				err := cache.Put(ctx, uint64(i), ident)
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

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// stubProvider answers the login flow contract with a fixed account and no
// persistence beyond the flow table.
func stubProvider() http.Handler {
	var (
		mu    sync.Mutex
		next  int
		flows = map[string]bool{}
	)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/flow/login/start", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		next++
		token := fmt.Sprintf("flow-%d", next)
		flows[token] = true
		mu.Unlock()
		fmt.Fprintf(w, `{"flow_token":%q,"challenge":{"type":"identification"}}`, token)
	})
	mux.HandleFunc("POST /api/auth/flow/login/submit", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FlowToken string         `json:"flow_token"`
			Data      map[string]any `json:"data"`
		}
		if err := jsonDecode(r, &req); err != nil {
			http.Error(w, `{"detail":"bad request"}`, http.StatusBadRequest)
			return
		}
		mu.Lock()
		ok := flows[req.FlowToken]
		mu.Unlock()
		if !ok {
			http.Error(w, `{"detail":"unknown flow"}`, http.StatusNotFound)
			return
		}
		if _, found := req.Data["uid_field"]; found {
			fmt.Fprint(w, `{"completed":false,"challenge":{"type":"password"}}`)
			return
		}
		fmt.Fprint(w, `{"completed":true,"user":{"id":1,"email":"load@example.com","username":"load","roles":["member"],"is_active":true}}`)
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":1,"email":"load@example.com","username":"load","roles":["member"],"is_active":true}`)
	})
	return mux
}

func jsonDecode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
