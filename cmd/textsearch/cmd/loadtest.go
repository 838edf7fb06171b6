package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
)

var defaultLoadQueries = []string{
	"information retrieval",
	"search engine",
	"inverted index",
	"fast search",
	"efficient retrieval",
	"indexing documents",
	"query processing",
	"ranking",
	"cache",
	"the of and",
}

type loadConfig struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	queries     []string
	limit       int
}

type loadStats struct {
	total     atomic.Int64
	success   atomic.Int64
	errors    atomic.Int64
	cacheHits atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
	}
}

func (s *loadStats) record(d time.Duration, status int, cacheHit bool, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.errors.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statusCodes[status]++
	s.mu.Unlock()
}

func newLoadTestCmd() *cobra.Command {
	var cfg loadConfig
	var seed bool

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Send concurrent search queries to a running search node",
		Long: `Runs --concurrency workers that issue GET /api/v1/search against --url
for --duration, cycling through the query list, and prints throughput,
latency percentiles, cache hit rate and status codes.

With --seed the demo corpus is posted and an index build is triggered first.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.queries = defaultLoadQueries
			if len(args) > 0 {
				cfg.queries = args
			}
			client := &http.Client{
				Timeout: 10 * time.Second,
				Transport: &http.Transport{
					MaxIdleConns:        cfg.concurrency * 2,
					MaxIdleConnsPerHost: cfg.concurrency * 2,
					IdleConnTimeout:     90 * time.Second,
				},
			}
			out := cmd.OutOrStdout()
			if seed {
				if err := seedCorpus(cmd.Context(), client, cfg.baseURL); err != nil {
					return err
				}
				fmt.Fprintf(out, "Seeded %d documents\n", len(demoCorpus))
			}
			fmt.Fprintf(out, "Target:      %s\nConcurrency: %d\nDuration:    %s\nQueries:     %d unique\n\n",
				cfg.baseURL, cfg.concurrency, cfg.duration, len(cfg.queries))

			stats := runLoad(cmd.Context(), client, cfg)
			return printLoadReport(out, stats, cfg.duration)
		},
	}
	cmd.Flags().StringVar(&cfg.baseURL, "url", "http://localhost:8080", "Base URL of the search node")
	cmd.Flags().IntVarP(&cfg.concurrency, "concurrency", "c", 10, "Number of concurrent workers")
	cmd.Flags().DurationVarP(&cfg.duration, "duration", "d", 30*time.Second, "Test duration")
	cmd.Flags().IntVarP(&cfg.limit, "limit", "n", 10, "Result limit sent with each query")
	cmd.Flags().BoolVar(&seed, "seed", false, "Post the demo corpus and build before the run")
	return cmd
}

func seedCorpus(ctx context.Context, client *http.Client, baseURL string) error {
	post := func(path string, body []byte) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("POST %s: %w", path, err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 300 {
			return fmt.Errorf("POST %s: unexpected status %d", path, resp.StatusCode)
		}
		return nil
	}
	for i, text := range demoCorpus {
		body, err := json.Marshal(map[string]any{"id": i + 1, "text": text})
		if err != nil {
			return err
		}
		if err := post("/api/v1/documents", body); err != nil {
			return err
		}
	}
	return post("/api/v1/index/build", nil)
}

func runLoad(parent context.Context, client *http.Client, cfg loadConfig) *loadStats {
	stats := newLoadStats()
	ctx, cancel := context.WithTimeout(parent, cfg.duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				query := cfg.queries[next%len(cfg.queries)]
				next++
				searchURL := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d",
					cfg.baseURL, url.QueryEscape(query), cfg.limit)

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
				if err != nil {
					stats.record(0, 0, false, err)
					return
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.record(elapsed, 0, false, err)
					}
					continue
				}
				var body struct {
					CacheHit bool `json:"cache_hit"`
				}
				json.NewDecoder(resp.Body).Decode(&body)
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(elapsed, resp.StatusCode, body.CacheHit, nil)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func printLoadReport(w io.Writer, stats *loadStats, duration time.Duration) error {
	total := stats.total.Load()
	success := stats.success.Load()
	errs := stats.errors.Load()

	var b strings.Builder
	fmt.Fprintln(&b, "=== Results ===")
	fmt.Fprintf(&b, "Total Requests:  %d\n", total)
	fmt.Fprintf(&b, "Successful:      %d\n", success)
	fmt.Fprintf(&b, "Errors:          %d\n", errs)
	if total > 0 {
		fmt.Fprintf(&b, "Error Rate:      %.2f%%\n", float64(errs)/float64(total)*100)
		fmt.Fprintf(&b, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}
	if success > 0 {
		fmt.Fprintf(&b, "Cache Hit Rate:  %.2f%%\n", float64(stats.cacheHits.Load())/float64(success)*100)
	}

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	counts := make([]int64, len(codes))
	for i, code := range codes {
		counts[i] = stats.statusCodes[code]
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		var sumSquared float64
		for _, l := range latencies {
			diff := float64(l - avg)
			sumSquared += diff * diff
		}

		fmt.Fprintln(&b, "\n=== Latency ===")
		fmt.Fprintf(&b, "Min:    %s\n", latencies[0])
		fmt.Fprintf(&b, "Avg:    %s\n", avg)
		fmt.Fprintf(&b, "P50:    %s\n", latencyPercentile(latencies, 50))
		fmt.Fprintf(&b, "P90:    %s\n", latencyPercentile(latencies, 90))
		fmt.Fprintf(&b, "P99:    %s\n", latencyPercentile(latencies, 99))
		fmt.Fprintf(&b, "Max:    %s\n", latencies[len(latencies)-1])
		fmt.Fprintf(&b, "StdDev: %s\n", time.Duration(math.Sqrt(sumSquared/float64(len(latencies)))))
	}

	fmt.Fprintln(&b, "\n=== Status Codes ===")
	for i, code := range codes {
		fmt.Fprintf(&b, "  %d: %d\n", code, counts[i])
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	if success == 0 {
		return fmt.Errorf("no successful requests, is the search node running at the target URL?")
	}
	return nil
}

func latencyPercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
