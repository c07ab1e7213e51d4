package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	accounts    int64
	workload    string
)

// Metrics
var (
	totalRequests uint64
	success200    uint64 // Collected
	fail409       uint64 // Already collected
	fail422       uint64 // Ineligible
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.Int64Var(&accounts, "accounts", 50, "Account id range to target")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		id := pickAccount()
		url := fmt.Sprintf("%s/api/v1/accounts/%d/payouts/weekly/collect", targetURL, id)

		resp, err := client.Post(url, "application/json", nil)
		atomic.AddUint64(&totalRequests, 1)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			atomic.AddUint64(&success200, 1)
		case http.StatusConflict:
			atomic.AddUint64(&fail409, 1)
		case http.StatusUnprocessableEntity:
			atomic.AddUint64(&fail422, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
	}
}

// pickAccount selects a target. Hotspot mode hammers one account to
// stress the per-row lock path.
func pickAccount() int64 {
	if workload == "hotspot" {
		return 1
	}
	return rand.Int63n(accounts) + 1
}

func printResults(elapsed time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	fmt.Println("--- Benchmark Results ---")
	fmt.Printf("Elapsed:            %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Total Requests:     %d (%.0f req/s)\n", total, float64(total)/elapsed.Seconds())
	fmt.Printf("Collected (200):    %d\n", atomic.LoadUint64(&success200))
	fmt.Printf("Conflicts (409):    %d\n", atomic.LoadUint64(&fail409))
	fmt.Printf("Ineligible (422):   %d\n", atomic.LoadUint64(&fail422))
	fmt.Printf("Other failures:     %d\n", atomic.LoadUint64(&failOther))
}
