package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"

	"github.com/nulzo/llm-relay/internal/cli"
)

const (
	mockPort = 9091
	appPort  = 8081
)

const benchConfig = `
server:
  port: "8081"
  env: production
  api_keys:
    - bench-key-12345
database:
  dsn: "file:bench.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000"
rate_limit:
  requests_per_second: 10000
  burst: 20000
health:
  interval_seconds: 5
  probe_timeout_seconds: 2
  failure_threshold: 3
dispatch:
  attempt_timeout_seconds: 10
providers:
  - name: ollama
    type: ollama
    kind: local
    display_name: "Ollama (mock)"
    endpoint: "http://localhost:9091"
    cost_model: free
    priority: 1
    enabled: true
    models:
      - name: bench-model
        capabilities: [general]
`

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	chaos := flag.Bool("chaos", false, "Simulate random client disconnections")
	flag.Parse()

	go startMockProvider()

	fmt.Println("Building application...")
	buildCmd := exec.Command("go", "build", "-o", "bin/server", "./cmd/server")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	configFile := "bench_config.yaml"
	if err := os.WriteFile(configFile, []byte(benchConfig), 0644); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}
	defer os.Remove(configFile)

	fmt.Println("Starting application...")
	app := exec.Command("./bin/server")
	app.Env = append(os.Environ(), fmt.Sprintf("CONFIG_FILE=%s", configFile))
	app.Env = append(app.Env, "LOG_LEVEL=error")

	logFile, _ := os.Create("bench_server.log")
	defer logFile.Close()
	app.Stdout = logFile
	app.Stderr = logFile

	if err := app.Start(); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}
	defer func() {
		if app.Process != nil {
			app.Process.Kill()
		}
	}()

	waitForApp(fmt.Sprintf("http://localhost:%d/health", appPort))

	done := make(chan struct{})

	fmt.Printf("Running benchmark: %s duration, %d req/s\n", *duration, *rate)

	body := `{"prompt": "Hello", "task_type": "general", "max_tokens": 50}`
	targeter := func(t *vegeta.Target) error {
		t.Method = "POST"
		t.URL = fmt.Sprintf("http://localhost:%d/v1/generate", appPort)
		t.Body = []byte(body)
		t.Header = http.Header{
			"Content-Type":  []string{"application/json"},
			"Authorization": []string{"Bearer bench-key-12345"},
		}
		return nil
	}

	if *chaos {
		fmt.Println("CHAOS MODE ENABLED: starting disrupters...")
		concurrency := *rate / 10
		if concurrency < 5 {
			concurrency = 5
		}
		if concurrency > 50 {
			concurrency = 50
		}
		go startChaosMonkey(fmt.Sprintf("http://localhost:%d/v1/generate", appPort), concurrency, done)
	}

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics

	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "Benchmark") {
		metrics.Add(res)
	}
	metrics.Close()

	close(done)

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", metrics.Latencies.P99)
	fmt.Println("Mean:            ", metrics.Latencies.Mean)
	fmt.Println("Max:             ", metrics.Latencies.Max)
	if metrics.Success >= 0.99 {
		fmt.Printf("Success:         %s %.2f%%\n", cli.CheckMark(), metrics.Success*100)
	} else {
		fmt.Printf("Success:         %s %.2f%%\n", cli.CrossMark(), metrics.Success*100)
	}
	fmt.Printf("Throughput:      %.2f req/s\n", metrics.Throughput)
	fmt.Println("--------------------------------------------------")

	if len(metrics.Errors) > 0 {
		fmt.Println(cli.Style("Error set (first 5 unique):", cli.Red))
		seen := make(map[string]bool)
		count := 0
		for _, msg := range metrics.Errors {
			if !seen[msg] && count < 5 {
				fmt.Println(msg)
				seen[msg] = true
				count++
			}
		}
	}

	os.Remove("bench.db")
}

// startChaosMonkey hammers the generate endpoint with requests that
// disconnect after 1-200ms, exercising the cancellation path under load.
func startChaosMonkey(url string, concurrency int, done chan struct{}) {
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			client := &http.Client{
				Transport: &http.Transport{
					MaxIdleConns:        100,
					MaxIdleConnsPerHost: 100,
				},
			}

			payload := `{"prompt": "Chaos request", "task_type": "general"}`

			for {
				select {
				case <-done:
					return
				default:
					timeout := time.Duration(rand.Intn(200)+1) * time.Millisecond

					ctx, cancel := context.WithTimeout(context.Background(), timeout)
					req, _ := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(payload))
					req.Header.Set("Content-Type", "application/json")
					req.Header.Set("Authorization", "Bearer bench-key-12345")

					resp, err := client.Do(req)
					if err == nil {
						resp.Body.Close()
					}
					cancel()

					time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
				}
			}
		}()
	}
}

// startMockProvider serves an ollama-shaped backend so the benchmark
// measures the relay, not a real model.
func startMockProvider() {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model":      "bench-model",
			"response":   "Benchmark safe response",
			"done":       true,
			"eval_count": 12,
		})
	})

	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"models": []map[string]interface{}{
				{"name": "bench-model", "size": 4_500_000_000},
			},
		})
	})

	if err := http.ListenAndServe(fmt.Sprintf(":%d", mockPort), mux); err != nil {
		log.Fatalf("Mock provider failed: %v", err)
	}
}

func waitForApp(url string) {
	for i := 0; i < 50; i++ {
		resp, err := http.Get(url)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	log.Fatal("App did not become ready in time")
}
