// Breakerwatch observes a running circuit breaker service by polling its
// /breakers endpoint, printing every state change it sees, and finishing
// with a summary from /metrics.
//
// Usage:
//
//	go run breakerwatch.go -url http://localhost:8080 -duration 15s
//
// Run it next to the service while the demo traffic is active to watch the
// circuit move between CLOSED, OPEN and HALF-OPEN.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type breakerStatus struct {
	State      string        `json:"state"`
	Failures   int           `json:"failures"`
	RetryAfter time.Duration `json:"retry_after"`
}

func main() {
	var (
		serviceURL = flag.String("url", "http://localhost:8080", "Circuit breaker service URL")
		interval   = flag.Duration("interval", 200*time.Millisecond, "Poll interval")
		duration   = flag.Duration("duration", 15*time.Second, "How long to watch")
	)
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	fmt.Println(colorCyan + "╔════════════════════════════════════════════════════════════════╗" + colorReset)
	fmt.Println(colorCyan + "║                  CIRCUIT BREAKER WATCH                         ║" + colorReset)
	fmt.Println(colorCyan + "╚════════════════════════════════════════════════════════════════╝" + colorReset)
	fmt.Println()

	// PHASE 1: Verify the service is reachable
	fmt.Println(colorBlue + "━━━ PHASE 1: Connectivity ━━━" + colorReset)
	fmt.Printf("Checking %s/breakers...\n", *serviceURL)

	breakers, err := getBreakers(client, *serviceURL)
	if err != nil {
		fmt.Printf(colorRed+"  ✗ Could not reach the service: %v\n"+colorReset, err)
		os.Exit(1)
	}
	fmt.Printf(colorGreen+"  ✓ Service is up, %d breaker(s) registered\n"+colorReset, len(breakers))
	fmt.Println()

	// PHASE 2: Watch state changes
	fmt.Println(colorBlue + "━━━ PHASE 2: Watching State Changes ━━━" + colorReset)
	fmt.Printf("Polling every %v for %v...\n\n", *interval, *duration)

	lastState := make(map[string]string)
	statesSeen := make(map[string]bool)
	for name, status := range breakers {
		lastState[name] = status.State
		statesSeen[status.State] = true
		fmt.Printf("  %s → %s (failures: %d)\n", name, colorState(status.State), status.Failures)
	}

	deadline := time.Now().Add(*duration)
	for time.Now().Before(deadline) {
		time.Sleep(*interval)

		breakers, err = getBreakers(client, *serviceURL)
		if err != nil {
			fmt.Printf(colorYellow+"  Poll failed: %v\n"+colorReset, err)
			continue
		}

		for name, status := range breakers {
			statesSeen[status.State] = true
			if status.State == lastState[name] {
				continue
			}

			if status.State == "OPEN" {
				fmt.Printf("  %s → %s (failures: %d, retry after %v)\n",
					name, colorState(status.State), status.Failures, status.RetryAfter.Round(time.Millisecond))
			} else {
				fmt.Printf("  %s → %s (failures: %d)\n", name, colorState(status.State), status.Failures)
			}
			lastState[name] = status.State
		}
	}
	fmt.Println()

	// PHASE 3: Final metrics
	fmt.Println(colorBlue + "━━━ PHASE 3: Metrics Summary ━━━" + colorReset)
	fmt.Println("Checking /metrics endpoint...")

	metrics, err := getMetrics(client, *serviceURL+"/metrics")
	if err != nil {
		fmt.Printf(colorYellow+"  Could not fetch metrics: %v\n"+colorReset, err)
	} else {
		fmt.Println()
		if perBreaker, ok := metrics["breakers"].(map[string]interface{}); ok {
			names := make([]string, 0, len(perBreaker))
			for name := range perBreaker {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				bm, ok := perBreaker[name].(map[string]interface{})
				if !ok {
					continue
				}

				state, _ := bm["state"].(string)
				successes := asInt(bm["successes"])
				failures := asInt(bm["failures"])
				transitions := asInt(bm["transitions"])

				rejected := 0
				if rejections, ok := bm["rejections"].(map[string]interface{}); ok {
					for _, count := range rejections {
						rejected += asInt(count)
					}
				}

				fmt.Printf("  %s → %s\n", name, colorState(state))
				fmt.Printf("    successes: %d, failures: %d, rejected: %d, transitions: %d\n",
					successes, failures, rejected, transitions)
			}
		}
	}
	fmt.Println()

	// Summary
	fmt.Println(colorCyan + "╔════════════════════════════════════════════════════════════════╗" + colorReset)
	fmt.Println(colorCyan + "║                     WATCH COMPLETE                             ║" + colorReset)
	fmt.Println(colorCyan + "╚════════════════════════════════════════════════════════════════╝" + colorReset)
	fmt.Println()
	fmt.Println("States observed:")
	for _, state := range []string{"CLOSED", "OPEN", "HALF-OPEN"} {
		if statesSeen[state] {
			fmt.Printf("  %s %s\n", colorGreen+"✓"+colorReset, state)
		} else {
			fmt.Printf("  %s %s\n", colorYellow+"–"+colorReset, state)
		}
	}
	fmt.Println()
	fmt.Println("Check the service logs for per-call circuit breaker activity.")
}

func colorState(state string) string {
	switch state {
	case "CLOSED":
		return colorGreen + state + colorReset
	case "OPEN":
		return colorRed + state + colorReset
	case "HALF-OPEN":
		return colorYellow + state + colorReset
	default:
		return state
	}
}

func getBreakers(client *http.Client, serviceURL string) (map[string]breakerStatus, error) {
	resp, err := client.Get(serviceURL + "/breakers")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var breakers map[string]breakerStatus
	if err := json.Unmarshal(body, &breakers); err != nil {
		return nil, err
	}

	return breakers, nil
}

func getMetrics(client *http.Client, url string) (map[string]interface{}, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var metrics map[string]interface{}
	if err := json.Unmarshal(body, &metrics); err != nil {
		return nil, err
	}

	return metrics, nil
}

func asInt(v interface{}) int {
	f, _ := v.(float64)
	return int(f)
}
