package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type worker struct {
	baseURL string
	network string
	token   string
	client  *http.Client
}

func (w *worker) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.token)
	return w.client.Do(req)
}

// createAccount opens the worker's client account. The first call per tenant
// spawns its ledger actor, so it is timed separately from the order load.
func (w *worker) createAccount(ctx context.Context) (string, error) {
	resp, err := w.post(ctx, "/accounts", map[string]string{"network": w.network, "name": "load-tester"})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create account: status %d", resp.StatusCode)
	}
	var out struct {
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.AccountID, nil
}

func randomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the tradedesk API")
	network := flag.String("network", "Localnet", "Ledger network to trade on")
	market := flag.String("market", "BTC/USD", "Market for generated limit orders")
	concurrency := flag.Int("c", 10, "Number of concurrent workers, one tenant each")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 200, "Requests per second limit")
	flag.Parse()

	log.Printf("Starting load test on %s", *baseURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var successCount, errorCount, spawnNanos atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 50)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w := &worker{
				baseURL: *baseURL,
				network: *network,
				token:   randomToken(),
				client:  &http.Client{Timeout: 10 * time.Second},
			}

			start := time.Now()
			accountID, err := w.createAccount(ctx)
			if err != nil {
				log.Printf("worker %d: %v", workerID, err)
				errorCount.Add(1)
				return
			}
			spawnNanos.Add(int64(time.Since(start)))

			for n := 0; ; n++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				side := "BUY"
				if n%2 == 1 {
					side = "SELL"
				}
				body := map[string]any{
					"network":    w.network,
					"account_id": accountID,
					"commit":     true,
					"order": map[string]any{
						"type":   "LimitOrder",
						"market": *market,
						"uuid":   uuid.NewString(),
						"side":   side,
						"amount": 1 + n%10,
						"price":  100 + n%7,
					},
				}

				resp, err := w.post(ctx, "/orders", body)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					errorCount.Add(1)
					continue
				}
				if resp.StatusCode == http.StatusCreated {
					successCount.Add(1)
				} else {
					errorCount.Add(1)
				}
				resp.Body.Close()
			}
		}(i)
	}

	wg.Wait()

	totalRequests := successCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Successful (201 Created): %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
	if *concurrency > 0 {
		log.Printf("Mean first-account latency: %s", time.Duration(spawnNanos.Load()/int64(*concurrency)))
	}
}
